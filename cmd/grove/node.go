package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jacentio/grove/tree"
)

func (c *cli) mkdirCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "mkdir <parent-id> <name>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&id, "id", "", "Directory ID (generated when empty)")
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		dir, err := c.svc.CreateDirectory(ctx, owner, tree.CreateDirectoryInput{
			ID:       orNewID(id),
			ParentID: args[0],
			Name:     args[1],
		})
		if err != nil {
			return err
		}
		return c.print(cmd, dir, func(w io.Writer) { writeNode(w, dir) })
	})
	return cmd
}

func (c *cli) addCmd() *cobra.Command {
	var (
		id          string
		in          tree.CreateFileInput
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "add <parent-id> <name>",
		Short: "Record a file in a directory",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&id, "id", "", "File ID (generated when empty)")
	cmd.Flags().StringVar(&in.ContentHash, "hash", "", "Content hash")
	cmd.Flags().StringVar(&in.StorageHandle, "handle", "", "Storage handle of the content")
	cmd.Flags().Int64Var(&in.Size, "size", 0, "Size in bytes")
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type")
	_ = cmd.MarkFlagRequired("hash")
	_ = cmd.MarkFlagRequired("handle")
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		input := in
		input.ID = orNewID(id)
		input.ParentID = args[0]
		input.Name = args[1]
		input.ContentType = contentType
		f, err := c.svc.CreateFile(ctx, owner, input)
		if err != nil {
			return err
		}
		return c.print(cmd, f, func(w io.Writer) { writeNode(w, f) })
	})
	return cmd
}

func (c *cli) mvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <dir-id> <new-parent-id>",
		Short: "Move a directory under a new parent",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		dir, err := c.svc.MoveDirectory(ctx, owner, tree.MoveInput{ID: args[0], NewParentID: args[1]})
		if err != nil {
			return err
		}
		return c.print(cmd, dir, func(w io.Writer) { writeNode(w, dir) })
	})
	return cmd
}

func (c *cli) renameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <node-id> <name>",
		Short: "Rename a directory or file",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		n, err := c.svc.Rename(ctx, owner, tree.RenameInput{ID: args[0], Name: args[1]})
		if err != nil {
			return err
		}
		return c.print(cmd, n, func(w io.Writer) { writeNode(w, n) })
	})
	return cmd
}

func (c *cli) rmCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "rm <node-id>",
		Short: "Delete a directory or file",
		Long:  `Delete a directory or file. A non-empty directory is detached at once; its descendants are removed by the reaper.`,
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Reap the deleted subtree before returning")
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		if err := c.svc.Delete(ctx, owner, tree.DeleteInput{ID: args[0]}); err != nil {
			return err
		}
		return c.afterDelete(ctx, cmd, wait)
	})
	return cmd
}

func (c *cli) rmfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rmfile <file-id>",
		Short: "Delete a file, failing if the node is a directory",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		return c.svc.DeleteFile(ctx, owner, tree.DeleteInput{ID: args[0]})
	})
	return cmd
}

// afterDelete reaps queued subtrees inline when wait is set.
func (c *cli) afterDelete(ctx context.Context, cmd *cobra.Command, wait bool) error {
	if !wait {
		return nil
	}
	n, err := c.worker.Drain(ctx)
	if err != nil {
		return err
	}
	if !c.jsonOut {
		fmt.Fprintf(cmd.OutOrStdout(), "reaped %d job(s)\n", n)
	}
	return nil
}

func (c *cli) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <file-id> <status>",
		Short: "Set a file's processing status",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		f, err := c.svc.SetFileStatus(ctx, owner, tree.SetFileStatusInput{ID: args[0], Status: tree.FileStatus(args[1])})
		if err != nil {
			return err
		}
		return c.print(cmd, f, func(w io.Writer) { writeNode(w, f) })
	})
	return cmd
}

func (c *cli) lsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <dir-id>",
		Short: "List a directory's children",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		nodes, err := c.svc.List(ctx, owner, args[0])
		if err != nil {
			return err
		}
		return c.print(cmd, nodes, func(w io.Writer) { writeNodes(w, nodes) })
	})
	return cmd
}

func (c *cli) statCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat <node-id>",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		n, err := c.svc.Get(ctx, owner, args[0])
		if err != nil {
			return err
		}
		return c.print(cmd, n, func(w io.Writer) { writeNode(w, n) })
	})
	return cmd
}

func (c *cli) ancestorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ancestors <node-id>",
		Short: "Show the chain from a node up to its namespace root",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		chain, err := c.svc.Ancestors(ctx, owner, args[0])
		if err != nil {
			return err
		}
		return c.print(cmd, chain, func(w io.Writer) { writeNodes(w, chain) })
	})
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <dir-id>",
		Short: "Recompute a subtree's aggregates and report drift",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		report, err := c.svc.Verify(ctx, owner, args[0])
		if err != nil {
			return err
		}
		if err := c.print(cmd, report, func(w io.Writer) {
			fmt.Fprintf(w, "checked %d directories, %d files\n", report.Directories, report.Files)
			for _, v := range report.Violations {
				fmt.Fprintln(w, v.String())
			}
		}); err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%d aggregate violation(s) under %s", len(report.Violations), report.RootID)
		}
		return nil
	})
	return cmd
}

func orNewID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
