package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/dag"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/resolve"
)

func (c *CLI) previewCommand() *cobra.Command {
	var id string
	var seed int64
	cmd := &cobra.Command{
		Use:   "preview <snapshot> --id <node>",
		Short: "Render one node with placeholders for references and fetches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := c.load(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)
			n, err := l.node(id)
			if err != nil {
				return err
			}
			ropts, release := c.resolverOptions(ctx, &engineFlags{seed: seed, offline: true})
			defer release()
			return writeJSON(cmd.OutOrStdout(), resolve.New(ropts...).Preview(n))
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "node to preview")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for generated values")
	cmd.MarkFlagRequired("id")
	return cmd
}

type generateOpts struct {
	engineFlags
	id    string
	field string
	count int
}

func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{count: 5}
	cmd := &cobra.Command{
		Use:   "generate <snapshot> --id <node> --field <key>",
		Short: "Generate several independent values for one field",
		Long: `Generate resolves one top-level field repeatedly, ignoring its literal value,
and prints the values as a JSON array. Nodes the field references are
resolved first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd, args[0], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.id, "id", "", "node holding the field")
	cmd.Flags().StringVar(&opts.field, "field", "", "top-level field key")
	cmd.Flags().IntVarP(&opts.count, "count", "n", opts.count, "number of values")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("field")
	return cmd
}

func (c *CLI) runGenerate(cmd *cobra.Command, ref string, opts *generateOpts) error {
	ctx := cmd.Context()
	if opts.count < 0 {
		return perrors.New(perrors.ErrCodeInvalidInput, "count cannot be negative")
	}
	l, err := c.load(ctx, ref)
	if err != nil {
		return err
	}
	defer l.close(ctx)
	n, err := l.node(opts.id)
	if err != nil {
		return err
	}
	f, ok := topLevelField(n, opts.field)
	if !ok {
		return perrors.New(perrors.ErrCodeNotFound, "node %q has no field %q", n.ID, opts.field)
	}

	e, err := c.environment(l.snap, &opts.engineFlags)
	if err != nil {
		return err
	}
	ropts, release := c.resolverOptions(ctx, &opts.engineFlags)
	defer release()
	r := resolve.New(ropts...)

	deps, err := dependencyClosure(l.nodes, n.ID)
	if err != nil {
		return err
	}
	outputs, err := r.ResolveAll(ctx, deps, e)
	if err != nil {
		return err
	}
	table := resolve.NewTable()
	for _, o := range outputs {
		if err := table.Put(o); err != nil {
			return err
		}
	}

	values := r.GenerateMultiple(ctx, f, opts.count, resolve.Context{Resolved: table, Environment: e})
	return writeJSON(cmd.OutOrStdout(), values)
}

func topLevelField(n custom.Node, key string) (custom.Field, bool) {
	for _, f := range n.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return custom.Field{}, false
}

// dependencyClosure returns the nodes id references, directly or through
// other nodes, excluding id itself.
func dependencyClosure(nodes []custom.Node, id string) ([]custom.Node, error) {
	g, err := dag.Build(nodes)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range dag.Dependencies(cur, g) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	var out []custom.Node
	for _, n := range nodes {
		if n.ID != id && seen[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}
