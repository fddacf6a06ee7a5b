// Package server exposes match costs and recent-play recomputation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/beatmap"
	"github.com/pable/go-osu-metrics/internal/costs"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/matchcost"
	"github.com/pable/go-osu-metrics/internal/model"
	"github.com/pable/go-osu-metrics/internal/osuapi"
	"github.com/pable/go-osu-metrics/internal/performance"
)

// CostComputer ranks the players of a match.
type CostComputer interface {
	Compute(ctx context.Context, matchID int64, formula costs.Formula, opts matchcost.Options) (*matchcost.Report, error)
}

// RecentComputer recomputes a user's recent play.
type RecentComputer interface {
	Recent(ctx context.Context, user string, mode model.Mode, opts performance.RecentOptions) (*performance.Report, error)
}

// Config wires the handler's collaborators. Recent may be nil, in which case
// the recent-play route answers 501.
type Config struct {
	Costs    CostComputer
	Recent   RecentComputer
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	costs    CostComputer
	recent   RecentComputer
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// New returns a Handler.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{costs: cfg.Costs, recent: cfg.Recent, gatherer: gatherer, logger: logger}
}

// Router returns the route table.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/matches/{matchID}/costs", h.GetMatchCosts)
	r.Get("/users/{user}/recent", h.GetRecent)
	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type costEntry struct {
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	Team     string  `json:"team"`
	Games    int     `json:"games"`
	Cost     float64 `json:"cost"`
	MVP      bool    `json:"mvp"`
}

type matchCostsResponse struct {
	MatchID    int64       `json:"match_id"`
	Name       string      `json:"name"`
	Formula    string      `json:"formula"`
	TeamVersus bool        `json:"team_versus"`
	BlueWins   int         `json:"blue_wins"`
	RedWins    int         `json:"red_wins"`
	Games      int         `json:"games"`
	Results    []costEntry `json:"results"`
}

// GetMatchCosts handles GET /matches/{matchID}/costs?formula=&warmups=.
func (h *Handler) GetMatchCosts(w http.ResponseWriter, r *http.Request) {
	matchID, err := osuapi.ParseMatchID(chi.URLParam(r, "matchID"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	formula, err := costs.ParseFormula(r.URL.Query().Get("formula"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	warmups, err := intParam(r, "warmups", 0)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.costs.Compute(r.Context(), matchID, formula, matchcost.Options{Warmups: warmups})
	if err != nil {
		h.failure(w, r, err)
		return
	}

	resp := matchCostsResponse{
		MatchID:    rep.Match.ID,
		Name:       rep.Match.Name,
		Formula:    string(rep.Formula),
		TeamVersus: rep.TeamVersus,
		BlueWins:   rep.Tally.Blue,
		RedWins:    rep.Tally.Red,
		Games:      rep.TotalGames,
		Results:    make([]costEntry, 0, len(rep.Results)),
	}
	for _, c := range rep.Results {
		resp.Results = append(resp.Results, costEntry{
			UserID:   c.UserID,
			Username: c.DisplayName(),
			Team:     string(c.Team),
			Games:    c.Games,
			Cost:     c.Value,
			MVP:      c.IsMVP,
		})
	}
	h.jsonResponse(w, http.StatusOK, resp)
}

type performanceEntry struct {
	PP       float64 `json:"pp"`
	Accuracy float64 `json:"accuracy"`
}

type recentResponse struct {
	UserID     int64            `json:"user_id"`
	Username   string           `json:"username"`
	Mode       string           `json:"mode"`
	BeatmapID  int64            `json:"beatmap_id"`
	Title      string           `json:"title"`
	Version    string           `json:"version"`
	Mods       []string         `json:"mods"`
	Rank       string           `json:"rank"`
	Stars      *float64         `json:"stars"`
	Completion float64          `json:"completion"`
	Played     performanceEntry `json:"played"`
	FullCombo  performanceEntry `json:"full_combo"`
}

// GetRecent handles GET /users/{user}/recent?mode=&offset=&fails=.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	if h.recent == nil {
		h.errorResponse(w, http.StatusNotImplemented, "recent plays are not configured")
		return
	}
	mode, err := model.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	fails := true
	if v := r.URL.Query().Get("fails"); v != "" {
		if fails, err = strconv.ParseBool(v); err != nil {
			h.errorResponse(w, http.StatusBadRequest, "fails: "+err.Error())
			return
		}
	}

	rep, err := h.recent.Recent(r.Context(), chi.URLParam(r, "user"), mode,
		performance.RecentOptions{Offset: offset, IncludeFails: fails})
	if err != nil {
		h.failure(w, r, err)
		return
	}

	mods := rep.Score.Mods
	if mods == nil {
		mods = []string{}
	}
	h.jsonResponse(w, http.StatusOK, recentResponse{
		UserID:     rep.User.ID,
		Username:   rep.User.Username,
		Mode:       string(rep.Mode),
		BeatmapID:  rep.Score.Beatmap.ID,
		Title:      rep.Score.Beatmapset.Title,
		Version:    rep.Score.Beatmap.Version,
		Mods:       mods,
		Rank:       rep.Score.Rank,
		Stars:      rep.Result.Stars,
		Completion: rep.Result.Completion,
		Played:     performanceEntry(rep.Result.Played),
		FullCombo:  performanceEntry(rep.Result.FullCombo),
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, osuapi.ErrMatchNotFound),
		errors.Is(err, osuapi.ErrNotFound),
		errors.Is(err, performance.ErrNoRecentPlay):
		return http.StatusNotFound
	case errors.Is(err, difficulty.ErrUnsupportedMode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, osuapi.ErrFetchFailure),
		errors.Is(err, difficulty.ErrServiceUnavailable),
		errors.Is(err, beatmap.ErrMalformedBeatmap):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) failure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	h.errorResponse(w, status, err.Error())
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)))
	})
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
