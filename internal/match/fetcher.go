// Package match assembles the full event history of a multiplayer lobby.
package match

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/osuapi"
)

// ErrIncompleteHistory means the remote history ran out before the
// match-created event was reached.
var ErrIncompleteHistory = fmt.Errorf("%w: incomplete match history", osuapi.ErrFetchFailure)

// Lookup returns one chronologically ordered page of match events.
// before = 0 requests the newest page.
type Lookup interface {
	GetMatch(ctx context.Context, matchID, before int64) (*model.MatchPage, error)
}

// Fetcher walks a match history backwards until its creation event.
type Fetcher struct {
	lookup Lookup
	logger *zap.Logger
}

// NewFetcher returns a Fetcher. A nil logger is replaced with a no-op one.
func NewFetcher(lookup Lookup, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{lookup: lookup, logger: logger}
}

// Fetch returns the complete event list of the match, oldest first, together
// with the number of pages requested. Errors from the lookup are returned
// unmodified; nothing is retried.
func (f *Fetcher) Fetch(ctx context.Context, matchID int64) (*model.MatchHistory, int, error) {
	page, err := f.lookup.GetMatch(ctx, matchID, 0)
	if err != nil {
		return nil, 1, err
	}
	if page == nil {
		return nil, 1, fmt.Errorf("match %d: %w", matchID, osuapi.ErrMatchNotFound)
	}

	history := &model.MatchHistory{Match: page.Match, Events: page.Events}
	pages := 1

	for !startsWithCreation(history.Events) {
		if len(history.Events) == 0 {
			return nil, pages, fmt.Errorf("match %d: no events: %w", matchID, ErrIncompleteHistory)
		}
		oldest := history.Events[0].ID

		older, err := f.lookup.GetMatch(ctx, matchID, oldest)
		if err != nil {
			return nil, pages, err
		}
		pages++

		prefix := olderThan(older.Events, oldest)
		if len(prefix) == 0 {
			return nil, pages, fmt.Errorf("match %d: nothing before event %d: %w", matchID, oldest, ErrIncompleteHistory)
		}
		f.logger.Debug("fetched older match events",
			zap.Int64("match_id", matchID),
			zap.Int64("before", oldest),
			zap.Int("events", len(prefix)))

		history.Events = append(prefix, history.Events...)
	}

	f.logger.Debug("match history complete",
		zap.Int64("match_id", matchID),
		zap.Int("events", len(history.Events)),
		zap.Int("pages", pages))
	return history, pages, nil
}

func startsWithCreation(events []model.MatchEvent) bool {
	return len(events) > 0 && events[0].Detail.Type == model.EventMatchCreated
}

// olderThan keeps the events strictly older than id, preserving order, so an
// overlapping page can never introduce duplicates.
func olderThan(events []model.MatchEvent, id int64) []model.MatchEvent {
	out := make([]model.MatchEvent, 0, len(events))
	for _, e := range events {
		if e.ID < id {
			out = append(out, e)
		}
	}
	return out
}

// IsNotFound reports whether err means the match does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, osuapi.ErrMatchNotFound)
}

// GameEvents returns only the events carrying a game, skipping the first
// warmups of them.
func GameEvents(events []model.MatchEvent, warmups int) []model.MatchEvent {
	var games []model.MatchEvent
	for _, e := range events {
		if e.IsGame() {
			games = append(games, e)
		}
	}
	if warmups <= 0 {
		return games
	}
	if warmups >= len(games) {
		return nil
	}
	return games[warmups:]
}
