package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/performance"
	"github.com/pable/go-osu-metrics/internal/report"
	"github.com/pable/go-osu-metrics/internal/storage"
)

// recent command flags.
var (
	recentMode   string
	recentOffset int
	recentFails  bool
	recentSave   bool
)

var recentCmd = &cobra.Command{
	Use:     "recent <user>",
	Aliases: []string{"rs"},
	Short:   "Recompute a user's most recent play",
	Long: `Looks up a user's recent play by id or name, downloads the beatmap and
recomputes star rating, performance points, the full combo alternative and
how much of the map was completed.

Examples:
  osumetrics recent peppy
  osumetrics recent 2 --mode taiko --offset 3 --fails=false`,
	Args: cobra.ExactArgs(1),
	RunE: runRecent,
}

func init() {
	recentCmd.Flags().StringVar(&recentMode, "mode", "osu", "osu, taiko, fruits or mania")
	recentCmd.Flags().IntVar(&recentOffset, "offset", 0, "index into the recent plays, 0 is the latest")
	recentCmd.Flags().BoolVar(&recentFails, "fails", true, "include failed plays")
	recentCmd.Flags().BoolVar(&recentSave, "save", false, "store the result in the history database")
}

func runRecent(cmd *cobra.Command, args []string) error {
	mode, err := model.ParseMode(recentMode)
	if err != nil {
		return err
	}
	m, _ := newMetrics()
	api, err := newOsuClient(m)
	if err != nil {
		return err
	}
	svc := newPerformanceService(api, m)

	rep, err := svc.Recent(cmd.Context(), args[0], mode, performance.RecentOptions{
		Offset:       recentOffset,
		IncludeFails: recentFails,
	})
	if err != nil {
		return fmt.Errorf("recent %s: %w", args[0], err)
	}
	report.PrintPerformance(os.Stdout, rep)

	if !recentSave {
		return nil
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	id, err := db.InsertPerformance(storage.PerformanceRecord{
		UserID:    rep.User.ID,
		Username:  rep.User.Username,
		Mode:      rep.Mode,
		ScoreID:   rep.Score.ID,
		BeatmapID: rep.Score.Beatmap.ID,
		Title:     rep.Score.Beatmapset.Title,
		Version:   rep.Score.Beatmap.Version,
		Rank:      rep.Score.Rank,
		Mods:      rep.Score.Mods,
		Result:    rep.Result,
		PlayedAt:  rep.Score.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("save play: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Saved as %s\n", id)
	return nil
}
