package main

import (
	"github.com/spf13/cobra"

	"github.com/Terry-Mathew/youtube-filter-sub001/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway and ops server",
	Long: `Start the ytgate ops server.

The server will:
  - Load configuration from the --config file or YTGATE_* environment variables
  - Open the usage ledger (sqlite or in-memory)
  - Serve quota, circuit and usage status on the ops HTTP address

Environment variables (for Docker deployments):
  YTGATE_API_KEY            - Provider API key (required for live calls)
  YTGATE_QUOTA_DAILY_LIMIT  - Daily quota units (default: 10000)
  YTGATE_DATABASE_DSN       - Ledger database path
  YTGATE_SERVER_PORT        - Ops server port (default: 8080)
  YTGATE_LOG_LEVEL          - Log level: debug, info, warn, error

Examples:
  ytgate serve
  ytgate serve --config /etc/ytgate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.New(cfgFile)
	if err != nil {
		return err
	}
	return a.Run()
}
