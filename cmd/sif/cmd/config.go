package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/sif/internal/config"
)

// configCmd groups the configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create configuration files",
	Long: `Inspect the effective configuration or write a default config file.

Configuration is read from sif.yaml in the search paths, from SIF_*
environment variables and from command line flags, in increasing order of
precedence.`,
	Annotations: map[string]string{lenientConfig: "true"},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration as YAML",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{lenientConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		data, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init [file]",
	Short:       "Write a default configuration file",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{lenientConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			filename = args[0]
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", filename)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:         "path",
	Short:       "Show where configuration is read from",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{lenientConfig: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		GetConfigLoader().PrintConfigInfo(cmd.OutOrStdout())
		if err := GetConfig().Validate(); err != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is invalid: %v\n", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathCmd)
}
