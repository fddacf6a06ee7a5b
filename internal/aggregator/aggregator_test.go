package aggregator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/pable/go-osu-metrics/internal/model"
)

// IDs for test players.
const (
	playerA int64 = 1001
	playerB int64 = 1002
	playerC int64 = 1003
	playerD int64 = 1004
)

// fakeUsers resolves every id to "user-<id>" except those in fail.
type fakeUsers struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func (f *fakeUsers) GetUser(_ context.Context, user string, _ model.Mode) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[user]++
	if f.fail[user] {
		return nil, errors.New("user not found")
	}
	return &model.User{Username: "user-" + user}, nil
}

// makeScore builds a score on the given team.
func makeScore(user, points int64, team model.Team, mods ...string) model.Score {
	return model.Score{UserID: user, Score: points, Mods: mods, Match: model.ScoreSlot{Team: team, Pass: true}}
}

// makeGame wraps scores into a game event on its own beatmapset.
func makeGame(id int64, teamType model.TeamType, scores ...model.Score) model.MatchEvent {
	return model.MatchEvent{
		ID: id,
		Game: &model.Game{
			ID:       id,
			TeamType: teamType,
			Beatmap:  &model.GameBeatmap{ID: id * 10, BeatmapsetID: id * 100},
			Scores:   scores,
		},
	}
}

func created() model.MatchEvent {
	return model.MatchEvent{ID: 1, Detail: model.EventDetail{Type: model.EventMatchCreated}}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregate_NoGames(t *testing.T) {
	res, err := New(nil, nil).Aggregate(context.Background(), []model.MatchEvent{created()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TeamVersus != nil {
		t.Errorf("expected TeamVersus=nil without games, got %v", *res.TeamVersus)
	}
	if res.TotalGames != 0 || len(res.Players) != 0 || len(res.Records) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestAggregate_RatiosHeadToHead(t *testing.T) {
	events := []model.MatchEvent{
		created(),
		makeGame(2, model.TeamTypeHeadToHead,
			makeScore(playerA, 100, model.TeamNone),
			makeScore(playerB, 200, model.TeamNone),
			makeScore(playerC, 600, model.TeamNone),
		),
	}
	res, err := New(nil, nil).Aggregate(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TeamVersus == nil || *res.TeamVersus {
		t.Fatalf("expected head-to-head match")
	}
	if len(res.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(res.Records))
	}

	// mean = 300, median = 200
	want := map[int64][2]float64{
		playerA: {100.0 / 300, 0.5},
		playerB: {200.0 / 300, 1},
		playerC: {2, 3},
	}
	for _, r := range res.Records {
		w := want[r.UserID]
		if !approx(r.MeanRatio, w[0]) {
			t.Errorf("player %d: MeanRatio = %v, want %v", r.UserID, r.MeanRatio, w[0])
		}
		if !approx(r.MedianRatio, w[1]) {
			t.Errorf("player %d: MedianRatio = %v, want %v", r.UserID, r.MedianRatio, w[1])
		}
		// single game is also the last game
		if !approx(r.TieBreakRatio, w[0]) {
			t.Errorf("player %d: TieBreakRatio = %v, want %v", r.UserID, r.TieBreakRatio, w[0])
		}
	}
	if res.Tally != (model.MatchTally{}) {
		t.Errorf("head-to-head should not award team wins, got %+v", res.Tally)
	}
}

func TestAggregate_EqualScoresGiveUnitRatios(t *testing.T) {
	events := []model.MatchEvent{
		makeGame(2, model.TeamTypeHeadToHead,
			makeScore(playerA, 500, model.TeamNone),
			makeScore(playerB, 500, model.TeamNone),
		),
	}
	res, _ := New(nil, nil).Aggregate(context.Background(), events)
	for _, r := range res.Records {
		if !approx(r.MeanRatio, 1) || !approx(r.MedianRatio, 1) {
			t.Errorf("player %d: ratios %v/%v, want 1/1", r.UserID, r.MeanRatio, r.MedianRatio)
		}
	}
}

func TestAggregate_TeamTallyAndTieBreak(t *testing.T) {
	events := []model.MatchEvent{
		created(),
		makeGame(2, model.TeamTypeTeamVS,
			makeScore(playerA, 300, model.TeamBlue),
			makeScore(playerB, 100, model.TeamRed),
		),
		makeGame(3, model.TeamTypeTeamVS,
			makeScore(playerA, 100, model.TeamBlue),
			makeScore(playerB, 300, model.TeamRed),
		),
		makeGame(4, model.TeamTypeTeamVS,
			makeScore(playerA, 200, model.TeamBlue),
			makeScore(playerB, 200, model.TeamRed),
		),
		makeGame(5, model.TeamTypeTeamVS,
			makeScore(playerA, 400, model.TeamBlue),
			makeScore(playerC, 100, model.TeamRed),
		),
	}
	res, err := New(nil, nil).Aggregate(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TeamVersus == nil || !*res.TeamVersus {
		t.Fatalf("expected team-vs match")
	}
	if res.TotalGames != 4 {
		t.Errorf("TotalGames = %d, want 4", res.TotalGames)
	}
	// game 4 is a draw and awards neither team
	if res.Tally.Blue != 2 || res.Tally.Red != 1 {
		t.Errorf("Tally = %+v, want blue 2 red 1", res.Tally)
	}
	if !res.Tally.TieBreak() {
		t.Error("expected a one-game tie-break")
	}

	for _, r := range res.Records {
		if r.GameIndex != 3 {
			if r.TieBreakRatio != 0 {
				t.Errorf("non-final game record has TieBreakRatio %v", r.TieBreakRatio)
			}
			continue
		}
		// last game: mean 250
		want := float64(r.Score) / 250
		if !approx(r.TieBreakRatio, want) {
			t.Errorf("player %d: TieBreakRatio = %v, want %v", r.UserID, r.TieBreakRatio, want)
		}
	}

	if got := res.Players[1].Team; got != model.TeamRed {
		t.Errorf("player B team = %v, want red", got)
	}
}

func TestAggregate_ModCombinations(t *testing.T) {
	events := []model.MatchEvent{
		makeGame(2, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone, "HD", "NF")),
		makeGame(3, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone)),
		makeGame(4, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone, "NF")),
		makeGame(5, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone, "HD", "HR")),
		makeGame(6, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone, "HD")),
		makeGame(7, model.TeamTypeHeadToHead, makeScore(playerB, 1, model.TeamNone, "NF")),
	}
	res, _ := New(nil, nil).Aggregate(context.Background(), events)

	a := res.Players[0].Mods
	if a.Len() != 3 {
		t.Errorf("player A combos = %v, want [\"\" HD HD,HR]", a.Sorted())
	}
	b := res.Players[1].Mods
	if b.Len() != 1 {
		t.Errorf("player B combos = %v, want only the empty combination", b.Sorted())
	}
}

func TestAggregate_SameBeatmapsetRenormalizes(t *testing.T) {
	first := makeGame(2, model.TeamTypeHeadToHead,
		makeScore(playerA, 100, model.TeamNone),
		makeScore(playerB, 300, model.TeamNone),
	)
	replay := makeGame(3, model.TeamTypeHeadToHead,
		makeScore(playerA, 500, model.TeamNone),
		makeScore(playerB, 500, model.TeamNone),
	)
	replay.Game.Beatmap.BeatmapsetID = first.Game.Beatmap.BeatmapsetID

	res, _ := New(nil, nil).Aggregate(context.Background(), []model.MatchEvent{first, replay})
	// game 1 records are re-normalized against game 2's mean of 500
	if !approx(res.Records[0].MeanRatio, 0.2) {
		t.Errorf("first record MeanRatio = %v, want 0.2", res.Records[0].MeanRatio)
	}
}

func TestAggregate_UserNames(t *testing.T) {
	users := &fakeUsers{fail: map[string]bool{"1002": true}}
	events := []model.MatchEvent{
		makeGame(2, model.TeamTypeHeadToHead,
			makeScore(playerA, 1, model.TeamNone),
			makeScore(playerB, 1, model.TeamNone),
			makeScore(playerC, 1, model.TeamNone),
		),
		makeGame(3, model.TeamTypeHeadToHead,
			makeScore(playerA, 1, model.TeamNone),
			makeScore(playerD, 1, model.TeamNone),
		),
	}
	res, err := New(users, nil).Aggregate(context.Background(), events)
	if err != nil {
		t.Fatalf("lookup failures must not be fatal: %v", err)
	}

	wantOrder := []int64{playerA, playerB, playerC, playerD}
	for i, p := range res.Players {
		if p.UserID != wantOrder[i] {
			t.Fatalf("player %d = %d, want %d (encounter order)", i, p.UserID, wantOrder[i])
		}
	}
	if res.Players[0].Username != "user-1001" {
		t.Errorf("player A name = %q", res.Players[0].Username)
	}
	if res.Players[1].Username != "" || res.Players[1].DisplayName() != "1002" {
		t.Errorf("failed lookup should fall back to id, got %q", res.Players[1].DisplayName())
	}
	if users.calls["1001"] != 1 {
		t.Errorf("player A looked up %d times, want once", users.calls["1001"])
	}
}

func TestAggregate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := []model.MatchEvent{makeGame(2, model.TeamTypeHeadToHead, makeScore(playerA, 1, model.TeamNone))}

	if _, err := New(&fakeUsers{}, nil).Aggregate(ctx, events); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestModCombination(t *testing.T) {
	cases := map[string][]string{
		"":      nil,
		"HD":    {"NF", "HD"},
		"HD,DT": {"HD", "DT"},
	}
	for want, mods := range cases {
		if got := ModCombination(mods); got != want {
			t.Errorf("ModCombination(%v) = %q, want %q", mods, got, want)
		}
	}
}
