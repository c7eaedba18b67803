package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytgate",
	Short: "Quota-aware gateway for the YouTube Data API",
	Long: `ytgate sits between an application and the YouTube Data API and keeps
consumption inside the daily quota budget.

It reserves quota pessimistically before each call, rate-limits and
prioritizes outgoing requests, isolates provider outages behind a
circuit breaker, retries transient failures with jittered backoff, and
normalizes raw payloads into stable canonical records.

Quick start:
  ytgate serve      # Start the gateway and ops server
  ytgate quota      # Show the current quota budget
  ytgate validate   # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}
