package aggregator

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/stats"
)

// noFailMod is excluded from mod combinations; it does not change how a map plays.
const noFailMod = "NF"

// maxParallelLookups bounds concurrent user lookups for one game.
const maxParallelLookups = 4

// UserLookup resolves a user id to a public profile.
type UserLookup interface {
	GetUser(ctx context.Context, user string, mode model.Mode) (*model.User, error)
}

// Result is everything the scoring formulas need from a match.
type Result struct {
	Players    []*model.PlayerAggregate // encounter order
	Records    []model.PlayerGameRecord // encounter order
	Tally      model.MatchTally
	TeamVersus *bool // nil when the match has no games
	TotalGames int
}

// Aggregator turns a match event list into per-player statistics.
type Aggregator struct {
	users  UserLookup
	logger *zap.Logger
}

// New returns an Aggregator. users may be nil, in which case no names are resolved.
func New(users UserLookup, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{users: users, logger: logger}
}

// Aggregate computes PlayerAggregates, PlayerGameRecords and the team tally from
// the chronologically ordered events. Non-game events are ignored.
func (a *Aggregator) Aggregate(ctx context.Context, events []model.MatchEvent) (*Result, error) {
	var games []*model.Game
	for _, e := range events {
		if e.IsGame() {
			games = append(games, e.Game)
		}
	}

	res := &Result{}
	players := make(map[int64]*model.PlayerAggregate)

	for gi, g := range games {
		isLast := gi == len(games)-1

		if res.TeamVersus == nil {
			tv := g.TeamType == model.TeamTypeTeamVS
			res.TeamVersus = &tv
		}

		names := a.lookupNewPlayers(ctx, g.Scores, players)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			tbCount   int
			tbSum     float64
			scores    []float64
			teamScore = make(map[model.Team]int64)
		)
		setID := g.BeatmapsetID()

		for _, s := range g.Scores {
			rec := model.PlayerGameRecord{
				UserID:       s.UserID,
				GameIndex:    gi,
				BeatmapsetID: setID,
				Score:        s.Score,
				Team:         s.Match.Team,
			}
			if isLast {
				tbCount++
				tbSum += float64(s.Score)
				rec.TieBreakScore = s.Score
			}
			scores = append(scores, float64(s.Score))
			teamScore[s.Match.Team] += s.Score
			res.Records = append(res.Records, rec)

			combo := ModCombination(s.Mods)
			p, seen := players[s.UserID]
			if !seen {
				p = &model.PlayerAggregate{
					UserID:   s.UserID,
					Username: names[s.UserID],
					Mods:     model.NewModSet(),
				}
				players[s.UserID] = p
				res.Players = append(res.Players, p)
			}
			p.Team = s.Match.Team
			if combo != "" {
				p.Mods.Add(combo)
			}
		}

		if len(scores) > 0 {
			mean := stats.Mean(scores)
			median := stats.Median(scores)
			var tbMean float64
			if tbCount > 0 {
				tbMean = tbSum / float64(tbCount)
			}
			// Records are matched by beatmapset, so a set replayed later in the
			// match re-normalizes the earlier records against the later game.
			for i := range res.Records {
				r := &res.Records[i]
				if r.BeatmapsetID != setID {
					continue
				}
				r.MeanRatio = ratio(r.Score, mean)
				r.MedianRatio = ratio(r.Score, median)
				if isLast {
					r.TieBreakRatio = ratio(r.TieBreakScore, tbMean)
				}
			}
		} else {
			a.logger.Warn("game without scores", zap.Int64("game_id", g.ID))
		}
		res.TotalGames++

		switch {
		case teamScore[model.TeamBlue] > teamScore[model.TeamRed]:
			res.Tally.Blue++
		case teamScore[model.TeamRed] > teamScore[model.TeamBlue]:
			res.Tally.Red++
		}
	}

	return res, nil
}

// lookupNewPlayers resolves the names of players first seen in this game.
// Lookups run in parallel; a failed lookup yields an empty name.
func (a *Aggregator) lookupNewPlayers(ctx context.Context, scores []model.Score, known map[int64]*model.PlayerAggregate) map[int64]string {
	var ids []int64
	pending := make(map[int64]bool)
	for _, s := range scores {
		if _, ok := known[s.UserID]; ok || pending[s.UserID] {
			continue
		}
		pending[s.UserID] = true
		ids = append(ids, s.UserID)
	}
	if len(ids) == 0 || a.users == nil {
		return nil
	}

	names := make([]string, len(ids))
	var g errgroup.Group
	g.SetLimit(maxParallelLookups)
	for i, id := range ids {
		g.Go(func() error {
			u, err := a.users.GetUser(ctx, strconv.FormatInt(id, 10), model.ModeOsu)
			if err != nil {
				a.logger.Warn("user lookup failed", zap.Int64("user_id", id), zap.Error(err))
				return nil
			}
			names[i] = u.Username
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64]string, len(ids))
	for i, id := range ids {
		out[id] = names[i]
	}
	return out
}

// ModCombination joins a score's mods without NF, preserving their order.
// No mods yields "".
func ModCombination(mods []string) string {
	kept := make([]string, 0, len(mods))
	for _, m := range mods {
		if m != noFailMod {
			kept = append(kept, m)
		}
	}
	return strings.Join(kept, ",")
}

// ratio divides v by denom, treating a zero denominator (a game nobody scored in) as 0.
func ratio(v int64, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	return float64(v) / denom
}
