package tree

import (
	"context"
	"fmt"
)

// Violation is an aggregate that disagrees with the subtree below it.
type Violation struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
	Stored int64  `json:"stored"`
	Actual int64  `json:"actual"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s is %d, expected %d", v.NodeID, v.Field, v.Stored, v.Actual)
}

// VerifyReport is the result of Verify.
type VerifyReport struct {
	RootID      string      `json:"root_id"`
	Directories int         `json:"directories"`
	Files       int         `json:"files"`
	Violations  []Violation `json:"violations,omitempty"`
}

// OK reports whether no violations were found.
func (r *VerifyReport) OK() bool {
	return len(r.Violations) == 0
}

// Verify walks the subtree below dirID and recomputes every Directory's
// counts and cumulative size. The walk is not a snapshot, so it should run
// while the tree is quiet.
func (s *Service) Verify(ctx context.Context, owner, dirID string) (*VerifyReport, error) {
	if err := validateInput(owner, DeleteInput{ID: dirID}); err != nil {
		return nil, err
	}
	dir, err := getDirectory(ctx, s.db, dirID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(dir, owner); err != nil {
		return nil, err
	}

	report := &VerifyReport{RootID: dirID}
	if _, err := s.verifyDir(ctx, report, dir, 0); err != nil {
		return nil, err
	}
	s.logger.Info("verified subtree",
		"root", dirID,
		"directories", report.Directories,
		"files", report.Files,
		"violations", len(report.Violations),
	)
	return report, nil
}

// verifyDir checks dir and returns the actual cumulative size below it.
func (s *Service) verifyDir(ctx context.Context, report *VerifyReport, dir *Directory, depth int) (int64, error) {
	if depth >= s.config.MaxDepth {
		return 0, fmt.Errorf("%w: below %s", ErrDepthExceeded, dir.ID)
	}
	report.Directories++

	children, err := s.children(ctx, dir.ID)
	if err != nil {
		return 0, err
	}

	var files, dirs, size int64
	for _, child := range children {
		if child.Info().Owner != dir.Owner {
			report.Violations = append(report.Violations, Violation{NodeID: child.Info().ID, Field: "owner"})
		}
		switch c := child.(type) {
		case *File:
			report.Files++
			files++
			size += c.Metadata.Size
		case *Directory:
			dirs++
			sub, err := s.verifyDir(ctx, report, c, depth+1)
			if err != nil {
				return 0, err
			}
			size += sub
		}
	}

	check := func(field string, stored, actual int64) {
		if stored != actual {
			report.Violations = append(report.Violations, Violation{
				NodeID: dir.ID,
				Field:  field,
				Stored: stored,
				Actual: actual,
			})
		}
	}
	check("file_count", dir.Metadata.FileCount, files)
	check("dir_count", dir.Metadata.DirCount, dirs)
	check("size", dir.Metadata.CumulativeSize, size)
	return size, nil
}
