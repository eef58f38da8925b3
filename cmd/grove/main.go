// Package main provides the grove CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/internal/backend"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/internal/logging"
	"github.com/jacentio/grove/reaper"
	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/tree"
)

// cli holds flags and the resources opened for one invocation.
type cli struct {
	configPath string
	owner      string
	jsonOut    bool

	cfg     *config.Config
	logger  *slog.Logger
	logFile io.Closer
	db      store.DB
	svc     *tree.Service
	reaper  *reaper.Reaper
	worker  *reaper.Worker
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "grove",
		Short:         "Per-owner namespace trees over a transactional document store",
		Long:          `grove manages namespaces of directories and files, keeping directory aggregates consistent on every mutation and reaping deleted subtrees in the background.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&c.owner, "owner", os.Getenv("GROVE_OWNER"), "Owner principal for tree operations (env GROVE_OWNER)")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "Output as JSON")

	root.AddCommand(
		c.nsCmd(),
		c.mkdirCmd(),
		c.addCmd(),
		c.mvCmd(),
		c.renameCmd(),
		c.rmCmd(),
		c.rmfileCmd(),
		c.statusCmd(),
		c.lsCmd(),
		c.statCmd(),
		c.ancestorsCmd(),
		c.verifyCmd(),
		c.reapCmd(),
		c.workerCmd(),
		c.tablesCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps tree error codes to distinct exit statuses.
func exitCode(err error) int {
	switch tree.Code(err) {
	case tree.CodeNotFound:
		return 3
	case tree.CodeAlreadyExists, tree.CodeAborted:
		return 4
	case tree.CodePermissionDenied:
		return 5
	case tree.CodeInvalidArgument, tree.CodeFailedPrecondition, tree.CodeUnimplemented:
		return 2
	default:
		return 1
	}
}

// setup loads configuration and opens the store. Commands that touch the tree
// call it from RunE so that help and flag errors never open a database.
func (c *cli) setup(ctx context.Context) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	logger, logFile, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	db, err := backend.Open(ctx, cfg.Store, logger)
	if err != nil {
		_ = logFile.Close()
		return err
	}

	c.cfg = cfg
	c.logger = logger
	c.logFile = logFile
	c.db = db
	c.reaper = reaper.New(db, cfg.Reaper, logger)
	c.worker = reaper.NewWorker(c.reaper, logger)

	treeCfg := cfg.Tree
	treeCfg.Notifier = c.worker
	c.svc = tree.New(db, treeCfg, logger)
	return nil
}

func (c *cli) close() {
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Warn("close store", "error", err)
		}
	}
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

// run wraps a command body with setup and teardown.
func (c *cli) run(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := c.setup(ctx); err != nil {
			return err
		}
		defer c.close()
		return fn(ctx, cmd, args)
	}
}

// requireOwner returns the configured owner or an error when none is set.
func (c *cli) requireOwner() (string, error) {
	if c.owner == "" {
		return "", fmt.Errorf("%w: --owner or GROVE_OWNER is required", tree.ErrInvalidArgument)
	}
	return c.owner, nil
}
