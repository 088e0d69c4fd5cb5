package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/pkg/dag"
	"github.com/matzehuels/postroc/pkg/render"
)

func (c *CLI) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect the reference graph of a snapshot",
	}
	cmd.AddCommand(c.graphOrderCommand())
	cmd.AddCommand(c.graphAdjacencyCommand("deps", "Print the nodes a node references", dag.Dependencies))
	cmd.AddCommand(c.graphAdjacencyCommand("dependents", "Print the nodes that reference a node", dag.Dependents))
	cmd.AddCommand(c.graphCheckCommand())
	cmd.AddCommand(c.graphWouldCycleCommand())
	cmd.AddCommand(c.graphDrawCommand("dot"))
	cmd.AddCommand(c.graphDrawCommand("svg"))
	return cmd
}

// graphOf loads ref and builds its reference graph.
func (c *CLI) graphOf(ctx context.Context, ref string) (*loaded, dag.Graph, error) {
	l, err := c.load(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	g, err := dag.Build(l.nodes)
	if err != nil {
		l.close(ctx)
		return nil, nil, err
	}
	return l, g, nil
}

func (c *CLI) graphOrderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "order <snapshot>",
		Short: "Print node ids in resolution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, g, err := c.graphOf(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)
			for _, id := range dag.Order(g) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func (c *CLI) graphAdjacencyCommand(use, short string, adj func(string, dag.Graph) []string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <snapshot> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, g, err := c.graphOf(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)
			if _, err := l.node(args[1]); err != nil {
				return err
			}
			for _, id := range adj(args[1], g) {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func (c *CLI) graphCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <snapshot>",
		Short: "Fail if the references form a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, g, err := c.graphOf(ctx, args[0])
			var cycle *dag.CyclicDependencyError
			if errors.As(err, &cycle) {
				printError("%s", cycle.Error())
				return err
			}
			if err != nil {
				return err
			}
			defer l.close(ctx)
			printSuccess("No cycles in %d nodes", len(g))
			return nil
		},
	}
}

func (c *CLI) graphWouldCycleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "would-cycle <snapshot> <source> <target>",
		Short: "Report whether source referencing target would close a cycle",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, g, err := c.graphOf(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), dag.WouldCreateCycle(args[1], args[2], g))
			return nil
		},
	}
}

func (c *CLI) graphDrawCommand(format string) *cobra.Command {
	var output string
	var detailed bool
	cmd := &cobra.Command{
		Use:   format + " <snapshot>",
		Short: "Draw the reference graph as " + format,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := c.load(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)

			data := []byte(render.DOT(l.nodes, render.Options{Detailed: detailed}))
			if format == "svg" {
				if data, err = render.SVG(ctx, string(data)); err != nil {
					return err
				}
			}
			if output == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include id, field count and export type in labels")
	return cmd
}
