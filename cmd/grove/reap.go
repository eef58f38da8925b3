package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/internal/backend"
	"github.com/jacentio/grove/internal/config"
	"github.com/jacentio/grove/store/dynamo"
)

func (c *cli) reapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Process all pending reap jobs once",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		n, err := c.worker.Drain(ctx)
		if !c.jsonOut {
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d job(s)\n", n)
		}
		return err
	})
	return cmd
}

func (c *cli) workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the reaper until interrupted",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := c.worker.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return cmd
}

func (c *cli) tablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage DynamoDB tables",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.dynamoConfig()
			if err != nil {
				return err
			}
			if err := backend.InitTables(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tables ready")
			return nil
		},
	}

	var confirm bool
	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete all grove tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to drop tables without --yes")
			}
			cfg, err := c.dynamoConfig()
			if err != nil {
				return err
			}
			client, err := backend.DynamoClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			var collections []string
			for _, spec := range backend.Tables() {
				collections = append(collections, spec.Collection)
			}
			return dynamo.DeleteTables(cmd.Context(), client, cfg.Tables, collections)
		},
	}
	dropCmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")

	cmd.AddCommand(initCmd, dropCmd)
	return cmd
}

func (c *cli) dynamoConfig() (config.DynamoDBConfig, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.DynamoDBConfig{}, err
	}
	if cfg.Store.Type != config.StoreDynamoDB {
		return config.DynamoDBConfig{}, fmt.Errorf("store.type is %q, not %q", cfg.Store.Type, config.StoreDynamoDB)
	}
	return cfg.Store.DynamoDB, nil
}
