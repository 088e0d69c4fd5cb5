package cli

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/internal/config"
)

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := c.configPath
			if p == "" {
				var err error
				if p, err = config.Path(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as TOML, secrets blanked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			cfg.Cache.Redis.Password = ""
			cfg.Environment.Auth.Token = ""
			cfg.Environment.Auth.APIKeyValue = ""
			cfg.Environment.Auth.Password = ""
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})
	return cmd
}
