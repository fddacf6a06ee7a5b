// Package matchcost wires fetching, aggregation and scoring into the match
// cost computation.
package matchcost

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/aggregator"
	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/match"
	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
)

// API is what the computation needs from the osu! API.
type API interface {
	match.Lookup
	aggregator.UserLookup
}

// Options tunes a computation.
type Options struct {
	Warmups int // game events skipped from the start of the match
}

// Report is a ranked match.
type Report struct {
	Match      model.Match
	Formula    costs.Formula
	TeamVersus bool
	Tally      model.MatchTally
	TotalGames int
	Warmups    int
	Results    []model.CostResult
}

// MVP returns the top result, or nil for a match without players.
func (r *Report) MVP() *model.CostResult {
	if len(r.Results) == 0 {
		return nil
	}
	return &r.Results[0]
}

// Team returns the results of one team, in ranking order.
func (r *Report) Team(team model.Team) []model.CostResult {
	var out []model.CostResult
	for _, c := range r.Results {
		if c.Team == team {
			out = append(out, c)
		}
	}
	return out
}

// Service computes match costs.
type Service struct {
	fetcher    *match.Fetcher
	aggregator *aggregator.Aggregator
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewService returns a Service backed by api.
func NewService(api API, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:    match.NewFetcher(api, logger),
		aggregator: aggregator.New(api, logger),
		metrics:    m,
		logger:     logger,
	}
}

// Compute fetches the match, aggregates its games and ranks every player with formula.
func (s *Service) Compute(ctx context.Context, matchID int64, formula costs.Formula, opts Options) (*Report, error) {
	rep, pages, err := s.compute(ctx, matchID, formula, opts)
	if err != nil {
		s.metrics.ComputationFailed("matchcost")
		return nil, err
	}
	s.metrics.MatchCostComputed(string(formula), pages)
	return rep, nil
}

func (s *Service) compute(ctx context.Context, matchID int64, formula costs.Formula, opts Options) (*Report, int, error) {
	if opts.Warmups < 0 {
		return nil, 0, fmt.Errorf("warmups must be >= 0, got %d", opts.Warmups)
	}
	history, pages, err := s.fetcher.Fetch(ctx, matchID)
	if err != nil {
		return nil, pages, err
	}

	games := match.GameEvents(history.Events, opts.Warmups)
	agg, err := s.aggregator.Aggregate(ctx, games)
	if err != nil {
		return nil, pages, fmt.Errorf("aggregate match %d: %w", matchID, err)
	}

	results, err := costs.Compute(formula, agg)
	if err != nil {
		return nil, pages, err
	}

	rep := &Report{
		Match:      history.Match,
		Formula:    formula,
		TeamVersus: agg.TeamVersus != nil && *agg.TeamVersus,
		Tally:      agg.Tally,
		TotalGames: agg.TotalGames,
		Warmups:    opts.Warmups,
		Results:    results,
	}
	s.logger.Info("computed match costs",
		zap.Int64("match_id", matchID),
		zap.String("formula", string(formula)),
		zap.Int("pages", pages),
		zap.Int("games", agg.TotalGames),
		zap.Int("players", len(results)))
	return rep, pages, nil
}
