package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/report"
)

var trendCmd = &cobra.Command{
	Use:   "trend <user-id>",
	Short: "Chronological match cost trend for a player",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrend,
}

func runTrend(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	hist, err := db.GetPlayerCostHistory(userID)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	plays, err := db.ListPerformance(userID, 20)
	if err != nil {
		return fmt.Errorf("query plays: %w", err)
	}
	if len(hist) == 0 && len(plays) == 0 {
		fmt.Println("no stored runs or plays found")
		return nil
	}

	if len(hist) > 0 {
		report.PrintCostTrendTable(os.Stdout, hist)
	}
	if len(plays) > 0 {
		fmt.Fprintln(os.Stdout)
		report.PrintPerformanceHistory(os.Stdout, plays)
	}
	return nil
}
