// Package performance recomputes difficulty, performance points and map
// completion for a single play.
package performance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/beatmap"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
)

// BeatmapFiles fetches raw .osu files.
type BeatmapFiles interface {
	GetBeatmapFile(ctx context.Context, beatmapID int64) ([]byte, error)
}

// Play is the part of a score needed to recompute it.
type Play struct {
	BeatmapID  int64
	Mods       []string
	Combo      int
	MaxCombo   int // beatmap max combo, 0 when unknown
	Statistics model.Statistics
	Failed     bool
}

// PlayFromScore builds a Play from a recent score and the beatmap's max combo.
func PlayFromScore(s model.RecentScore, maxCombo int) Play {
	return Play{
		BeatmapID:  s.Beatmap.ID,
		Mods:       s.Mods,
		Combo:      s.MaxCombo,
		MaxCombo:   maxCombo,
		Statistics: s.Statistics,
		Failed:     s.Failed(),
	}
}

// Recomputer runs the per-play pipeline: fetch and parse the beatmap, rate
// it, score the play as played and as a full combo, then estimate completion.
type Recomputer struct {
	files   BeatmapFiles
	calcs   difficulty.Registry
	stars   difficulty.StarRater // may be nil
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRecomputer returns a Recomputer. stars may be nil, in which case no
// star rating is reported.
func NewRecomputer(files BeatmapFiles, calcs difficulty.Registry, stars difficulty.StarRater, m *metrics.Metrics, logger *zap.Logger) *Recomputer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recomputer{files: files, calcs: calcs, stars: stars, metrics: m, logger: logger}
}

// Compute recomputes play in mode. The beatmap is fetched and parsed on every call.
func (r *Recomputer) Compute(ctx context.Context, play Play, mode model.Mode) (*model.PerformanceResult, error) {
	res, err := r.compute(ctx, play, mode)
	if err != nil {
		r.metrics.ComputationFailed("performance")
		return nil, err
	}
	r.metrics.PerformanceComputed(string(mode))
	return res, nil
}

func (r *Recomputer) compute(ctx context.Context, play Play, mode model.Mode) (*model.PerformanceResult, error) {
	calc, err := r.calcs.For(mode)
	if err != nil {
		return nil, err
	}

	raw, err := r.files.GetBeatmapFile(ctx, play.BeatmapID)
	if err != nil {
		return nil, fmt.Errorf("beatmap %d: %w", play.BeatmapID, err)
	}
	bm, err := beatmap.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("beatmap %d: %w", play.BeatmapID, err)
	}

	res := &model.PerformanceResult{}
	if mode == model.ModeOsu && r.stars != nil {
		stars, err := r.stars.Stars(ctx, raw, play.Mods)
		if err != nil {
			return nil, fmt.Errorf("star rating: %w", err)
		}
		res.Stars = &stars
	}

	in := difficulty.Input{
		Beatmap:    raw,
		Mods:       play.Mods,
		Combo:      play.Combo,
		Statistics: play.Statistics,
	}
	if res.Played, err = calc.Performance(ctx, in); err != nil {
		return nil, fmt.Errorf("performance: %w", err)
	}
	if res.FullCombo, err = calc.Performance(ctx, in.FullCombo(play.MaxCombo)); err != nil {
		return nil, fmt.Errorf("full combo performance: %w", err)
	}

	if res.Completion, err = beatmap.Completion(bm.Timeline(), play.Statistics, play.Failed); err != nil {
		return nil, fmt.Errorf("beatmap %d: %w", play.BeatmapID, err)
	}

	r.logger.Debug("recomputed play",
		zap.Int64("beatmap_id", play.BeatmapID),
		zap.String("mode", string(mode)),
		zap.Int("objects", len(bm.HitObjects)),
		zap.Float64("pp", res.Played.PP),
		zap.Float64("fc_pp", res.FullCombo.PP),
		zap.Float64("completion", res.Completion))
	return res, nil
}
