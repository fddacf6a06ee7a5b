package performance

import (
	"context"
	"errors"
	"fmt"

	"github.com/pable/go-osu-metrics/internal/model"
)

// ErrNoRecentPlay means the user has no play at the requested offset.
var ErrNoRecentPlay = errors.New("no recent play")

// API is the subset of the osu! API the recent-play flow uses.
type API interface {
	GetUser(ctx context.Context, user string, mode model.Mode) (*model.User, error)
	GetRecentScores(ctx context.Context, userID int64, mode model.Mode, limit, offset int, includeFails bool) ([]model.RecentScore, error)
	GetBeatmap(ctx context.Context, beatmapID int64) (*model.BeatmapMeta, error)
}

// RecentOptions selects which recent play to recompute.
type RecentOptions struct {
	Offset       int
	IncludeFails bool
}

// Report is a recomputed recent play.
type Report struct {
	User   model.User
	Mode   model.Mode
	Score  model.RecentScore
	Meta   model.BeatmapMeta
	Result model.PerformanceResult
}

// Service resolves a user's recent play and recomputes it.
type Service struct {
	api        API
	recomputer *Recomputer
}

// NewService returns a Service.
func NewService(api API, recomputer *Recomputer) *Service {
	return &Service{api: api, recomputer: recomputer}
}

// Recent recomputes the play of user (id or name) at opts.Offset in mode.
func (s *Service) Recent(ctx context.Context, user string, mode model.Mode, opts RecentOptions) (*Report, error) {
	if opts.Offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0, got %d", opts.Offset)
	}
	u, err := s.api.GetUser(ctx, user, mode)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", user, err)
	}

	scores, err := s.api.GetRecentScores(ctx, u.ID, mode, 1, opts.Offset, opts.IncludeFails)
	if err != nil {
		return nil, fmt.Errorf("recent scores of %s: %w", u.Username, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%s (offset %d): %w", u.Username, opts.Offset, ErrNoRecentPlay)
	}
	score := scores[0]

	meta, err := s.api.GetBeatmap(ctx, score.Beatmap.ID)
	if err != nil {
		return nil, fmt.Errorf("beatmap %d: %w", score.Beatmap.ID, err)
	}

	res, err := s.recomputer.Compute(ctx, PlayFromScore(score, meta.MaxCombo), mode)
	if err != nil {
		return nil, err
	}
	return &Report{User: *u, Mode: mode, Score: score, Meta: *meta, Result: *res}, nil
}
