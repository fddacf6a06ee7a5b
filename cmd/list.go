package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/report"
)

var listPlays bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored match cost runs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listPlays, "plays", false, "list stored recent plays instead of match runs")
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if listPlays {
		recs, err := db.ListPerformance(0, 0)
		if err != nil {
			return fmt.Errorf("list plays: %w", err)
		}
		if len(recs) == 0 {
			fmt.Fprintln(os.Stdout, "No plays stored yet. Run 'osumetrics recent <user> --save' to add one.")
			return nil
		}
		report.PrintPerformanceHistory(os.Stdout, recs)
		return nil
	}

	runs, err := db.ListMatchRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs stored yet. Run 'osumetrics matchcosts <match> --save' to add one.")
		return nil
	}
	report.PrintRunList(os.Stdout, runs)
	return nil
}
