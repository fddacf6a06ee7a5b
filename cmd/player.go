package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/report"
)

var playerFormula string

// playerCmd is the cobra command for cross-run aggregate analysis of one or more players.
var playerCmd = &cobra.Command{
	Use:   "player <user-id> [<user-id>...]",
	Short: "Cross-run match cost totals for one or more players",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlayer,
}

func init() {
	playerCmd.Flags().StringVar(&playerFormula, "formula", string(costs.DefaultFormula), "formula of the runs to include")
}

// runPlayer totals every stored run of the formula that any given player appears in.
func runPlayer(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	formula, err := costs.ParseFormula(playerFormula)
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.QualifyingRuns(ids, string(formula), time.Time{}, 1)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stderr, "No stored %s runs for the given players\n", formula)
		return nil
	}
	runIDs := make([]string, len(runs))
	for i, r := range runs {
		runIDs[i] = r.ID
	}
	totals, err := db.RosterTotals(ids, runIDs)
	if err != nil {
		return fmt.Errorf("player totals: %w", err)
	}

	fmt.Fprintf(os.Stdout, "\n%d %s run(s), latest %s\n\n", len(runs), formula, runs[0].CreatedAt.Format("2006-01-02"))
	report.PrintPlayerTotals(os.Stdout, totals)
	return nil
}
