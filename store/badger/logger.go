package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// logAdapter routes Badger's printf-style logging into slog.
type logAdapter struct {
	logger *slog.Logger
}

func newLogAdapter(logger *slog.Logger) *logAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &logAdapter{logger: logger.With("component", "badger")}
}

func (l *logAdapter) Errorf(format string, args ...any) {
	l.logger.Error(line(format, args))
}

func (l *logAdapter) Warningf(format string, args ...any) {
	l.logger.Warn(line(format, args))
}

func (l *logAdapter) Infof(format string, args ...any) {
	l.logger.Info(line(format, args))
}

func (l *logAdapter) Debugf(format string, args ...any) {
	l.logger.Debug(line(format, args))
}

func line(format string, args []any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
