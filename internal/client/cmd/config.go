package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"proxylink/internal/client/cli"
	"proxylink/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage proxylink configuration.

Commands:
  init      Write a configuration file with default values
  show      Show the effective configuration`,
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file with default values",
	Long: `Write a configuration file with default values.

Example:
  proxylink config init                         # ./proxylink.yaml
  proxylink config init ~/.proxylink/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults, config file and
PROXYLINK_* environment variables are merged. Passwords are masked.`,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file without asking")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cli.NewOutput(cmd.OutOrStdout(), noColor)

	path := config.DefaultFileName
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		out.Warning("Configuration file already exists: %s", path)
		if !cli.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Overwrite?") {
			out.Info("Operation cancelled")
			return nil
		}
	}

	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	out.Success("Configuration written to %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Proxy.Password != "" {
		cfg.Proxy.Password = "******"
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n%s", path, data)
	return nil
}
