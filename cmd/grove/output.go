package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacentio/grove/tree"
)

func (c *cli) print(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func writeNode(w io.Writer, n tree.Node) {
	switch n := n.(type) {
	case *tree.Directory:
		fmt.Fprintf(w, "id:        %s\n", n.ID)
		fmt.Fprintf(w, "name:      %s\n", n.Name)
		fmt.Fprintf(w, "type:      %s\n", n.Type)
		fmt.Fprintf(w, "parent:    %s\n", n.ParentID)
		fmt.Fprintf(w, "revision:  %d\n", n.Revision)
		fmt.Fprintf(w, "files:     %d\n", n.Metadata.FileCount)
		fmt.Fprintf(w, "dirs:      %d\n", n.Metadata.DirCount)
		fmt.Fprintf(w, "size:      %d\n", n.Metadata.CumulativeSize)
	case *tree.File:
		fmt.Fprintf(w, "id:        %s\n", n.ID)
		fmt.Fprintf(w, "name:      %s\n", n.Name)
		fmt.Fprintf(w, "type:      %s\n", n.Type)
		fmt.Fprintf(w, "parent:    %s\n", n.ParentID)
		fmt.Fprintf(w, "revision:  %d\n", n.Revision)
		fmt.Fprintf(w, "status:    %s\n", n.Status)
		fmt.Fprintf(w, "size:      %d\n", n.Metadata.Size)
		fmt.Fprintf(w, "hash:      %s\n", n.ContentHash)
		fmt.Fprintf(w, "handle:    %s\n", n.StorageHandle)
	}
}

func writeNodes(w io.Writer, nodes []tree.Node) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tID\tNAME\tSIZE\tREV")
	for _, n := range nodes {
		h := n.Info()
		var size int64
		switch n := n.(type) {
		case *tree.Directory:
			size = n.Metadata.CumulativeSize
		case *tree.File:
			size = n.Metadata.Size
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", h.Type, h.ID, h.Name, size, h.Revision)
	}
	_ = tw.Flush()
}

func writeNamespace(w io.Writer, ns *tree.Namespace) {
	fmt.Fprintf(w, "id:    %s\n", ns.ID)
	fmt.Fprintf(w, "name:  %s\n", ns.Name)
	fmt.Fprintf(w, "type:  %s\n", ns.Type)
	fmt.Fprintf(w, "root:  %s\n", ns.RootNodeID)
}
