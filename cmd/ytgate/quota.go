package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Terry-Mathew/youtube-filter-sub001/bootstrap"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show the current quota budget",
	Long: `Show the daily quota budget: units used, units remaining, the next
reset time and the warning level.

Examples:
  ytgate quota
  ytgate quota --config /etc/ytgate/config.yaml`,
	RunE: runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

func runQuota(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.New(cfgFile)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	snap := a.Gateway.QuotaStatus()
	fmt.Printf("Daily limit:   %d units\n", snap.DailyLimit)
	fmt.Printf("Used:          %d units\n", snap.Used)
	fmt.Printf("Remaining:     %d units\n", snap.Remaining)
	fmt.Printf("Resets at:     %s\n", snap.ResetAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Warning level: %s\n", snap.Warning)
	return nil
}
