package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-osu-metrics/internal/beatmap"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/model"
)

// beatmap command flags.
var (
	beatmapOut   string
	beatmapStars bool
	beatmapMods  []string
)

var beatmapCmd = &cobra.Command{
	Use:   "beatmap <beatmap-id>",
	Short: "Download and inspect a beatmap",
	Long: `Fetches a beatmap's metadata and .osu file, parses it and prints a summary.

Examples:
  osumetrics beatmap 129891
  osumetrics beatmap 129891 --out blue-zenith.osu
  osumetrics beatmap 129891 --stars --mods HD,DT`,
	Args: cobra.ExactArgs(1),
	RunE: runBeatmap,
}

func init() {
	beatmapCmd.Flags().StringVar(&beatmapOut, "out", "", "also write the .osu file to this path")
	beatmapCmd.Flags().BoolVar(&beatmapStars, "stars", false, "compute the star rating through the calculation service (osu! mode only)")
	beatmapCmd.Flags().StringSliceVar(&beatmapMods, "mods", nil, "mods for --stars, e.g. HD,DT")
}

func runBeatmap(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid beatmap id %q", args[0])
	}

	m, _ := newMetrics()
	api, err := newOsuClient(m)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	meta, err := api.GetBeatmap(ctx, id)
	if err != nil {
		return fmt.Errorf("beatmap %d: %w", id, err)
	}
	data, err := api.GetBeatmapFile(ctx, id)
	if err != nil {
		return fmt.Errorf("download beatmap %d: %w", id, err)
	}
	bm, err := beatmap.Parse(data)
	if err != nil {
		return fmt.Errorf("parse beatmap %d: %w", id, err)
	}

	fmt.Printf("%s - %s [%s] (by %s)\n", bm.Artist, bm.Title, bm.Version, bm.Creator)
	fmt.Printf("Mode: %s  Format: v%d  MD5: %s\n", bm.Mode, bm.FormatVersion, bm.Checksum)
	fmt.Printf("HP %.1f  CS %.1f  OD %.1f  AR %.1f\n",
		bm.HPDrainRate, bm.CircleSize, bm.OverallDifficulty, bm.ApproachRate)
	fmt.Printf("Objects: %d  Active: %s  Max combo: %d  Listed stars: %.2f\n",
		len(bm.HitObjects), time.Duration(bm.ActiveDuration())*time.Millisecond, meta.MaxCombo, meta.DifficultyRating)

	if beatmapStars {
		if bm.Mode != model.ModeOsu {
			return fmt.Errorf("star rating: %w: %s", difficulty.ErrUnsupportedMode, bm.Mode)
		}
		calc := difficulty.NewClient(cfg.Difficulty.URL, cfg.Difficulty.Timeout, m, logger)
		stars, err := calc.Stars(ctx, data, beatmapMods)
		if err != nil {
			return fmt.Errorf("star rating: %w", err)
		}
		fmt.Printf("Computed stars: %.2f\n", stars)
	}

	if beatmapOut != "" {
		if err := os.WriteFile(beatmapOut, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", beatmapOut, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", beatmapOut)
	}
	return nil
}
