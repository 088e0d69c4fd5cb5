package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/pkg/custom"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/populate"
)

type populateOpts struct {
	engineFlags
	id       string
	field    string
	endpoint string
	dryRun   bool
}

func (c *CLI) populateCommand() *cobra.Command {
	var opts populateOpts
	cmd := &cobra.Command{
		Use:   "populate <snapshot> --id <node> (--field <key> | --endpoint <url>)",
		Short: "Build fields from a sample API response",
		Long: `Populate calls an API once and turns the response into field templates.

With --field the response is stored on that fetch field, so later resolves
can run offline. With --endpoint the fields of the returned record are
merged into the node's top-level fields; existing keys are kept.

The snapshot is saved in place unless --dry-run is given, in which case the
updated node is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.field == "") == (opts.endpoint == "") {
				return perrors.New(perrors.ErrCodeInvalidInput, "exactly one of --field and --endpoint is required")
			}
			return c.runPopulate(cmd, args[0], &opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.id, "id", "", "node to populate")
	cmd.Flags().StringVar(&opts.field, "field", "", "fetch field whose endpoint to capture")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "endpoint whose record fields to merge")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the updated node instead of saving")
	cmd.MarkFlagRequired("id")
	return cmd
}

func (c *CLI) runPopulate(cmd *cobra.Command, ref string, opts *populateOpts) error {
	ctx := cmd.Context()
	l, err := c.load(ctx, ref)
	if err != nil {
		return err
	}
	defer l.close(ctx)
	n, err := l.node(opts.id)
	if err != nil {
		return err
	}
	e, err := c.environment(l.snap, &opts.engineFlags)
	if err != nil {
		return err
	}
	fr, release := c.fetcher(ctx, opts.refresh)
	defer release()

	var updated custom.Node
	if opts.field != "" {
		updated, err = populate.Field(ctx, fr, e, n, opts.field)
	} else {
		updated, err = populate.Endpoint(ctx, fr, e, n, opts.endpoint)
	}
	if err != nil {
		return err
	}

	if opts.dryRun {
		return writeJSON(cmd.OutOrStdout(), custom.NewDocument(updated))
	}
	nodes := make([]custom.Node, len(l.nodes))
	for i, existing := range l.nodes {
		nodes[i] = existing
		if existing.ID == updated.ID {
			nodes[i] = updated
		}
	}
	l.snap.SetNodes(nodes)
	if err := l.src.Save(ctx, l.snap); err != nil {
		return err
	}
	printSuccess("Populated %s (%d fields)", updated.DisplayName(), len(updated.Fields))
	printDetail("Snapshot: %s", ref)
	return nil
}
