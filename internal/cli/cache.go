package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/internal/config"
	"github.com/matzehuels/postroc/pkg/cache"
	perrors "github.com/matzehuels/postroc/pkg/errors"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the API response cache",
	}
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := c.cfg.Cache.Open(ctx)
			if err != nil {
				return err
			}
			defer rc.Close()
			cl, ok := rc.(cache.Clearer)
			if !ok {
				return perrors.New(perrors.ErrCodeUnsupported, "cache backend %q cannot be cleared", c.cfg.Cache.Backend)
			}
			if err := cl.Clear(ctx); err != nil {
				return err
			}
			printSuccess("Cleared %s cache", c.cfg.Cache.Backend)
			printDetail("%s", c.cacheLocation())
			return nil
		},
	}
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where responses are cached",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), c.cacheLocation())
		},
	}
}

// cacheLocation describes the configured backend: a directory, a redis
// address with prefix, or "disabled".
func (c *CLI) cacheLocation() string {
	switch c.cfg.Cache.Backend {
	case config.BackendNone:
		return "disabled"
	case config.BackendRedis:
		return fmt.Sprintf("redis://%s/%d (prefix %q)", c.cfg.Cache.Redis.Addr, c.cfg.Cache.Redis.DB, c.cfg.Cache.Redis.Prefix)
	default:
		if c.cfg.Cache.Dir != "" {
			return c.cfg.Cache.Dir
		}
		dir, err := config.CacheDir()
		if err != nil {
			return "unavailable: " + err.Error()
		}
		return dir
	}
}
