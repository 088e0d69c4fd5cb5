package cli

import (
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/pkg/resolve"
)

type resolveOpts struct {
	engineFlags
	id       string
	exported bool
	output   string
}

func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts
	cmd := &cobra.Command{
		Use:   "resolve <snapshot>",
		Short: "Resolve every node of a snapshot and print the outputs as JSON",
		Long: `Resolve loads a snapshot (a JSON/YAML file or mongo:<name>), resolves its nodes
in dependency order and prints a JSON object keyed by node id.

Field failures never abort: they are reported as warnings on stderr and in
each output's "warnings" list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, args[0], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.id, "id", "", "print only this node")
	cmd.Flags().BoolVar(&opts.exported, "exported", false, "print exported data instead of full outputs")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *CLI) runResolve(cmd *cobra.Command, ref string, opts *resolveOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	l, err := c.load(ctx, ref)
	if err != nil {
		return err
	}
	defer l.close(ctx)
	if opts.id != "" {
		if _, err := l.node(opts.id); err != nil {
			return err
		}
	}

	e, err := c.environment(l.snap, &opts.engineFlags)
	if err != nil {
		return err
	}
	ropts, release := c.resolverOptions(ctx, &opts.engineFlags)
	defer release()

	prog := newProgress(logger)
	outputs, err := resolve.New(ropts...).ResolveAll(ctx, l.nodes, e)
	if err != nil {
		return err
	}
	prog.done("resolved nodes", "count", len(outputs), "environment", e.Name)
	reportWarnings(outputs)

	var result any
	if opts.id != "" {
		result = view(outputs[opts.id], opts.exported)
	} else {
		all := make(map[string]any, len(outputs))
		for id, o := range outputs {
			all[id] = view(o, opts.exported)
		}
		result = all
	}
	return c.emit(cmd.OutOrStdout(), opts.output, result)
}

func view(o *resolve.Output, exported bool) any {
	if exported {
		return o.Exported
	}
	return o
}

// reportWarnings prints field warnings grouped by node, sorted by node id.
func reportWarnings(outputs map[string]*resolve.Output) {
	for _, id := range slices.Sorted(maps.Keys(outputs)) {
		o := outputs[id]
		for _, w := range o.Warnings {
			printWarning("%s: %s", o.NodeName, w)
		}
	}
}

// emit writes v as JSON to path, or to w when path is empty.
func (c *CLI) emit(w io.Writer, path string, v any) error {
	if path == "" {
		return writeJSON(w, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printFile(path)
	return nil
}
