package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/rx-reader/internal/config"
	"github.com/menta2k/rx-reader/internal/utils"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Long: `Write the default configuration as YAML.

Without a path the file is written to ~/.config/rx-reader/config.yaml.
API keys are written as ${ENV_VAR} references.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if utils.FileExists(path) && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
