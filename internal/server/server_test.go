package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/matchcost"
	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/osuapi"
	"github.com/pable/go-osu-metrics/internal/performance"
)

type fakeCosts struct {
	err        error
	gotMatch   int64
	gotFormula costs.Formula
	gotOpts    matchcost.Options
}

func (f *fakeCosts) Compute(_ context.Context, matchID int64, formula costs.Formula, opts matchcost.Options) (*matchcost.Report, error) {
	f.gotMatch, f.gotFormula, f.gotOpts = matchID, formula, opts
	if f.err != nil {
		return nil, f.err
	}
	return &matchcost.Report{
		Match:      model.Match{ID: matchID, Name: "lobby"},
		Formula:    formula,
		TeamVersus: true,
		Tally:      model.MatchTally{Blue: 2, Red: 1},
		TotalGames: 3,
		Results: []model.CostResult{
			{UserID: 1, Username: "mrekk", Team: model.TeamBlue, Games: 3, Value: 1.5, IsMVP: true},
			{UserID: 2, Team: model.TeamRed, Games: 3, Value: 0.9},
		},
	}, nil
}

type fakeRecent struct {
	err     error
	gotUser string
	gotMode model.Mode
	gotOpts performance.RecentOptions
}

func (f *fakeRecent) Recent(_ context.Context, user string, mode model.Mode, opts performance.RecentOptions) (*performance.Report, error) {
	f.gotUser, f.gotMode, f.gotOpts = user, mode, opts
	if f.err != nil {
		return nil, f.err
	}
	stars := 6.1
	return &performance.Report{
		User:  model.User{ID: 2, Username: "peppy"},
		Mode:  mode,
		Score: model.RecentScore{Rank: "A", Beatmap: model.RecentBeatmap{ID: 75, Version: "Normal"}},
		Result: model.PerformanceResult{
			Stars:      &stars,
			Completion: 100,
			Played:     model.Performance{PP: 90, Accuracy: 95},
			FullCombo:  model.Performance{PP: 120, Accuracy: 97},
		},
	}, nil
}

func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetMatchCosts(t *testing.T) {
	fc := &fakeCosts{}
	h := New(Config{Costs: fc})

	rec := serve(t, h, "/matches/111/costs?formula=flashlight&warmups=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, int64(111), fc.gotMatch)
	assert.Equal(t, costs.FormulaFlashlight, fc.gotFormula)
	assert.Equal(t, 2, fc.gotOpts.Warmups)

	var body matchCostsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.BlueWins)
	require.Len(t, body.Results, 2)
	assert.True(t, body.Results[0].MVP)
	assert.Equal(t, "2", body.Results[1].Username)
	assert.Equal(t, "red", body.Results[1].Team)
}

func TestGetMatchCosts_DefaultFormula(t *testing.T) {
	fc := &fakeCosts{}
	rec := serve(t, New(Config{Costs: fc}), "/matches/5/costs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, costs.DefaultFormula, fc.gotFormula)
}

func TestGetMatchCosts_BadInput(t *testing.T) {
	h := New(Config{Costs: &fakeCosts{}})
	for _, target := range []string{
		"/matches/abc/costs",
		"/matches/5/costs?formula=elo",
		"/matches/5/costs?warmups=-1",
	} {
		rec := serve(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("match 1: %w", osuapi.ErrMatchNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: boom", osuapi.ErrFetchFailure), http.StatusBadGateway},
		{performance.ErrNoRecentPlay, http.StatusNotFound},
		{difficulty.ErrUnsupportedMode, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := serve(t, New(Config{Costs: &fakeCosts{err: tt.err}}), "/matches/1/costs")
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Contains(t, rec.Body.String(), `"error"`)
	}
}

func TestGetRecent(t *testing.T) {
	fr := &fakeRecent{}
	rec := serve(t, New(Config{Recent: fr}), "/users/peppy/recent?mode=taiko&offset=1&fails=false")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "peppy", fr.gotUser)
	assert.Equal(t, model.ModeTaiko, fr.gotMode)
	assert.Equal(t, performance.RecentOptions{Offset: 1, IncludeFails: false}, fr.gotOpts)

	var body recentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Stars)
	assert.Equal(t, 6.1, *body.Stars)
	assert.Equal(t, 120.0, body.FullCombo.PP)
	assert.Equal(t, []string{}, body.Mods)
}

func TestGetRecent_DefaultsAndErrors(t *testing.T) {
	fr := &fakeRecent{}
	rec := serve(t, New(Config{Recent: fr}), "/users/2/recent")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.ModeOsu, fr.gotMode)
	assert.True(t, fr.gotOpts.IncludeFails)

	assert.Equal(t, http.StatusBadRequest, serve(t, New(Config{Recent: fr}), "/users/2/recent?mode=chess").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, New(Config{Recent: fr}), "/users/2/recent?fails=maybe").Code)
	assert.Equal(t, http.StatusNotImplemented, serve(t, New(Config{}), "/users/2/recent").Code)

	rec = serve(t, New(Config{Recent: &fakeRecent{err: performance.ErrNoRecentPlay}}), "/users/2/recent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.MatchCostComputed("bathbot", 2)

	h := New(Config{Costs: &fakeCosts{}, Gatherer: reg})

	rec := serve(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `osumetrics_match_cost_runs_total{formula="bathbot"} 1`))
}
