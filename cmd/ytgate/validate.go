package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Terry-Mathew/youtube-filter-sub001/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file, apply environment overrides and report
every validation problem found.

Examples:
  ytgate validate
  ytgate validate --config /etc/ytgate/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		fmt.Printf("Configuration is valid (warning: %s is not set, live calls will fail).\n",
			cfg.Provider.APIKeyEnv)
		return nil
	}
	fmt.Println("Configuration is valid.")
	return nil
}
