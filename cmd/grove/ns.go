package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/tree"
)

func (c *cli) nsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ns",
		Short: "Namespace commands",
	}
	cmd.AddCommand(c.nsCreateCmd(), c.nsRenameCmd(), c.nsRmCmd(), c.nsLsCmd(), c.nsBootstrapCmd())
	return cmd
}

func (c *cli) nsCreateCmd() *cobra.Command {
	var id, nsType string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a namespace with an empty root directory",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&id, "id", "", "Namespace ID (generated when empty)")
	cmd.Flags().StringVar(&nsType, "type", tree.NamespaceTypeDocument, "Namespace type")
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		ns, err := c.svc.CreateNamespace(ctx, owner, tree.CreateNamespaceInput{ID: id, Name: args[0], Type: nsType})
		if err != nil {
			return err
		}
		return c.print(cmd, ns, func(w io.Writer) { writeNamespace(w, ns) })
	})
	return cmd
}

func (c *cli) nsRenameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename <namespace-id> <name>",
		Short: "Rename a namespace",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		ns, err := c.svc.RenameNamespace(ctx, owner, tree.RenameNamespaceInput{ID: args[0], Name: args[1]})
		if err != nil {
			return err
		}
		return c.print(cmd, ns, func(w io.Writer) { writeNamespace(w, ns) })
	})
	return cmd
}

func (c *cli) nsRmCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "rm <namespace-id>",
		Short: "Delete a namespace and its tree",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Reap the deleted tree before returning")
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		if err := c.svc.DeleteNamespace(ctx, owner, tree.DeleteNamespaceInput{ID: args[0]}); err != nil {
			return err
		}
		return c.afterDelete(ctx, cmd, wait)
	})
	return cmd
}

func (c *cli) nsLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the owner's namespaces",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		list, err := c.svc.ListNamespaces(ctx, owner)
		if err != nil {
			return err
		}
		return c.print(cmd, list, func(w io.Writer) {
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tROOT")
			for _, ns := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ns.ID, ns.Name, ns.Type, ns.RootNodeID)
			}
			_ = tw.Flush()
		})
	})
	return cmd
}

func (c *cli) nsBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Provision the owner's default namespace if missing",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.run(func(ctx context.Context, cmd *cobra.Command, args []string) error {
		owner, err := c.requireOwner()
		if err != nil {
			return err
		}
		ns, created, err := c.svc.BootstrapOwner(ctx, owner)
		if err != nil {
			return err
		}
		c.logger.Info("owner bootstrapped", "owner", owner, "namespace_id", ns.ID, "created", created)
		return c.print(cmd, ns, func(w io.Writer) { writeNamespace(w, ns) })
	})
	return cmd
}
