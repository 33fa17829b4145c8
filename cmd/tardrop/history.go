package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"tardrop/internal/history"

	"github.com/spf13/cobra"
)

var (
	historyDBPath string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upload history",
	Long: `Print the most recent upload outcomes from the local history database.

The receiver exposes no read capability over the network; this command is
the only way to inspect what it has processed.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBPath, "db", getEnvOrDefault("TARDROP_DB_PATH", "./uploads.db"), "Path to SQLite upload history")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	h, err := history.New(historyDBPath)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer h.Close()

	records, err := h.RecentUploads(context.Background(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to query history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No uploads recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tBYTES\tRELEASE\tERROR")
	for _, rec := range records {
		errMsg := ""
		if rec.ErrorMessage != nil {
			errMsg = *rec.ErrorMessage
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			rec.ID,
			rec.StartedAt.Local().Format(time.RFC3339),
			rec.Status,
			rec.SizeBytes,
			rec.Release,
			errMsg)
	}
	return w.Flush()
}
