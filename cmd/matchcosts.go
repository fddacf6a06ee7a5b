package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/match"
	"github.com/pable/go-osu-metrics/internal/matchcost"
	"github.com/pable/go-osu-metrics/internal/osuapi"
	"github.com/pable/go-osu-metrics/internal/report"
	"github.com/pable/go-osu-metrics/internal/storage"
)

// matchcosts command flags.
var (
	mcFormula string
	mcWarmups int
	mcSave    bool
)

var matchCostsCmd = &cobra.Command{
	Use:     "matchcosts <match-url|id>",
	Aliases: []string{"mc"},
	Short:   "Rank the players of a multiplayer match by match cost",
	Long: `Fetches the full event history of an osu! multiplayer match, aggregates every
played game and ranks the players with one of the match cost formulas.

Formulas:
  osuplus     2/(n+2) x sum of score/average ratios
  bathbot     average ratio plus participation, lobby and mod bonuses (default)
  flashlight  median ratios with a participation factor

Examples:
  osumetrics matchcosts https://osu.ppy.sh/community/matches/111555364
  osumetrics matchcosts 111555364 --formula flashlight --warmups 2 --save`,
	Args: cobra.ExactArgs(1),
	RunE: runMatchCosts,
}

func init() {
	matchCostsCmd.Flags().StringVar(&mcFormula, "formula", string(costs.DefaultFormula), "osuplus, bathbot or flashlight")
	matchCostsCmd.Flags().IntVar(&mcWarmups, "warmups", 0, "number of leading games to ignore")
	matchCostsCmd.Flags().BoolVar(&mcSave, "save", false, "store the result in the history database")
}

func runMatchCosts(cmd *cobra.Command, args []string) error {
	matchID, err := osuapi.ParseMatchID(args[0])
	if err != nil {
		return err
	}
	formula, err := costs.ParseFormula(mcFormula)
	if err != nil {
		return err
	}
	if mcWarmups < 0 {
		return fmt.Errorf("--warmups must be >= 0, got %d", mcWarmups)
	}

	m, _ := newMetrics()
	api, err := newOsuClient(m)
	if err != nil {
		return err
	}
	svc := matchcost.NewService(api, m, logger)

	rep, err := svc.Compute(cmd.Context(), matchID, formula, matchcost.Options{Warmups: mcWarmups})
	if match.IsNotFound(err) {
		return fmt.Errorf("match %d does not exist or has been deleted: %w", matchID, err)
	}
	if err != nil {
		return fmt.Errorf("match %d: %w", matchID, err)
	}

	var runID string
	if mcSave {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err = db.InsertMatchRun(storage.MatchRun{
			MatchID:    rep.Match.ID,
			MatchName:  rep.Match.Name,
			Formula:    string(rep.Formula),
			TeamVersus: rep.TeamVersus,
			Tally:      rep.Tally,
			TotalGames: rep.TotalGames,
			Warmups:    rep.Warmups,
		}, rep.Results)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	report.PrintMatchSummary(os.Stdout, rep, runID)
	report.PrintMatchCosts(os.Stdout, rep.Results, rep.TeamVersus)
	return nil
}
