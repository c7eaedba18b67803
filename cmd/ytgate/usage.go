package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Terry-Mathew/youtube-filter-sub001/bootstrap"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View the quota spending ledger",
	Long: `View recent entries from the quota spending ledger.

Examples:
  ytgate usage
  ytgate usage --limit=50`,
	RunE: runUsage,
}

var usageLimit int

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().IntVar(&usageLimit, "limit", 20, "number of entries to show")
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.New(cfgFile)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := a.Ledger.Recent(ctx, usageLimit)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No ledger entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tOPERATION\tESTIMATED\tCHARGED\tOUTCOME\tLATENCY")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%dms\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.Operation,
			r.EstimatedCost,
			r.CostCharged,
			r.Outcome,
			r.LatencyMs,
		)
	}
	return w.Flush()
}
