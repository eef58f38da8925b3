// Command grove-lambda serves grove from AWS Lambda. GROVE_HANDLER selects
// the function:
//
//	api        API Gateway HTTP API (payload v2) requests
//	bootstrap  Cognito post-confirmation trigger
//	reaper     DynamoDB stream of the reap_jobs table
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/grove/api"
	"github.com/jacentio/grove/internal/backend"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/internal/logging"
	"github.com/jacentio/grove/reaper"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/stream"
	"github.com/jacentio/grove/tree"
)

const (
	handlerAPI       = "api"
	handlerBootstrap = "bootstrap"
	handlerReaper    = "reaper"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(os.Getenv("GROVE_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger, _, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	db, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	fn, err := handler(os.Getenv("GROVE_HANDLER"), db, cfg, logger)
	if err != nil {
		logger.Error("select handler", "error", err)
		os.Exit(1)
	}
	lambda.Start(fn)
}

// handler returns the Lambda handler function for name.
func handler(name string, db store.DB, cfg *config.Config, logger *slog.Logger) (any, error) {
	switch name {
	case handlerAPI:
		return api.NewHandler(tree.New(db, cfg.Tree, logger), logger).Handle, nil
	case handlerBootstrap:
		return api.NewHandler(tree.New(db, cfg.Tree, logger), logger).HandlePostConfirmation, nil
	case handlerReaper:
		return stream.NewHandler(reaper.New(db, cfg.Reaper, logger), logger).HandleReapJobs, nil
	default:
		return nil, fmt.Errorf("unknown GROVE_HANDLER %q (want %s, %s or %s)", name, handlerAPI, handlerBootstrap, handlerReaper)
	}
}
