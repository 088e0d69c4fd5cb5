package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/pkg/custom"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/resolve"
	"github.com/matzehuels/postroc/pkg/transform"
)

func (c *CLI) transformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Work with export transform expressions",
	}
	cmd.AddCommand(c.transformValidateCommand())
	cmd.AddCommand(c.transformApplyCommand())
	cmd.AddCommand(c.transformFunctionsCommand())
	return cmd
}

func (c *CLI) transformValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <expression>",
		Short: "Check an expression without evaluating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := transform.Validate(args[0])
			if !v.Valid {
				printError("%s", v.Error)
				return perrors.New(perrors.ErrCodeInvalidExpression, "%s", v.Error)
			}
			printSuccess("Expression is valid")
			return nil
		},
	}
}

type applyOpts struct {
	engineFlags
	id   string
	expr string
}

func (c *CLI) transformApplyCommand() *cobra.Command {
	var opts applyOpts
	cmd := &cobra.Command{
		Use:   "apply <snapshot> --id <node>",
		Short: "Resolve a node and print its export, or the result of --expr",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			l, err := c.load(ctx, args[0])
			if err != nil {
				return err
			}
			defer l.close(ctx)
			n, err := l.node(opts.id)
			if err != nil {
				return err
			}

			var cfg custom.ExportConfig = n.Export
			if opts.expr != "" {
				if v := transform.Validate(opts.expr); !v.Valid {
					return perrors.New(perrors.ErrCodeInvalidExpression, "%s", v.Error)
				}
				cfg = custom.ExportTransform{Expression: opts.expr}
			}

			e, err := c.environment(l.snap, &opts.engineFlags)
			if err != nil {
				return err
			}
			ropts, release := c.resolverOptions(ctx, &opts.engineFlags)
			defer release()
			outputs, err := resolve.New(ropts...).ResolveAll(ctx, l.nodes, e)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), transform.Apply(outputs[n.ID].Raw, cfg))
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.id, "id", "", "node to transform")
	cmd.Flags().StringVar(&opts.expr, "expr", "", "expression to apply instead of the node's export")
	cmd.MarkFlagRequired("id")
	return cmd
}

func (c *CLI) transformFunctionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the functions expressions may call",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range transform.Functions() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
