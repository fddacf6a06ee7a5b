// Package osuapi is a minimal client for the osu! API v2 and the beatmap file endpoint.
package osuapi

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
)

// Sentinel errors. Transport and unexpected-status failures wrap ErrFetchFailure.
var (
	ErrNotFound      = errors.New("not found")
	ErrMatchNotFound = errors.New("match not found")
	ErrFetchFailure  = errors.New("fetch failure")
)

// pageLimit is the maximum number of events the match endpoint returns per page.
const pageLimit = 100

// Options configures a Client.
type Options struct {
	APIURL       string
	TokenURL     string
	BeatmapURL   string
	ClientID     string
	ClientSecret string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// Client talks to the osu! API v2 with a lazily refreshed client-credential token.
type Client struct {
	apiURL     string
	beatmapURL string
	http       *http.Client
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewClient returns a client authenticated with the "public" scope.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Limit(opts.RequestsPerSecond)
	if opts.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       []string{"public"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)

	return &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		beatmapURL: strings.TrimRight(opts.BeatmapURL, "/"),
		http:       httpClient,
		// ReuseTokenSource serialises refreshes behind its mutex, so concurrent
		// callers trigger at most one token request per expiry.
		tokens:  oauth2.ReuseTokenSource(nil, &fetchingTokenSource{ctx: tokenCtx, cfg: cc, metrics: opts.Metrics, logger: logger}),
		limiter: rate.NewLimiter(limit, burst),
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// fetchingTokenSource requests a new token on every call; it is always wrapped
// by oauth2.ReuseTokenSource, which caches until expiry.
type fetchingTokenSource struct {
	ctx     context.Context
	cfg     *clientcredentials.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (s *fetchingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.cfg.Token(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: client credentials: %v", ErrFetchFailure, err)
	}
	s.metrics.TokenRefreshed()
	s.logger.Debug("refreshed client credential", zap.Time("expiry", tok.Expiry))
	return tok, nil
}

// get performs an authenticated GET against the API and JSON-decodes the body into out.
// endpoint is a low-cardinality label for metrics.
func (c *Client) get(ctx context.Context, endpoint, path string, out interface{}) error {
	tok, err := c.tokens.Token()
	if err != nil {
		return err
	}
	body, err := c.do(ctx, endpoint, c.apiURL+path, tok)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", ErrFetchFailure, path, err)
	}
	return nil
}

// do issues a rate-limited GET and returns the body of a 200 response.
// tok may be nil for unauthenticated endpoints.
func (c *Client) do(ctx context.Context, endpoint, rawURL string, tok *oauth2.Token) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrFetchFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	if tok != nil {
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveAPIRequest(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetchFailure, rawURL, err)
	}
	c.metrics.ObserveAPIRequest(endpoint, resp.StatusCode, time.Since(start))
	c.logger.Debug("osu api request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", rawURL, ErrNotFound)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: HTTP %d: %s", ErrFetchFailure, rawURL, resp.StatusCode, snippet)
	}

	body, err := decompress(resp)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetchFailure, rawURL, err)
	}
	return body, nil
}

// decompress wraps the body according to Content-Encoding. Go's transport only
// decodes gzip transparently when it negotiated it itself.
func decompress(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "zstd":
		dec, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &decodedBody{Reader: dec, closeFn: func() error { dec.Close(); return resp.Body.Close() }}, nil
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &decodedBody{Reader: gz, closeFn: func() error { gz.Close(); return resp.Body.Close() }}, nil
	}
	return resp.Body, nil
}

type decodedBody struct {
	io.Reader
	closeFn func() error
}

func (b *decodedBody) Close() error { return b.closeFn() }

// GetMatch returns one page of match events in chronological order.
// before = 0 requests the newest page.
func (c *Client) GetMatch(ctx context.Context, matchID, before int64) (*model.MatchPage, error) {
	q := url.Values{"limit": {strconv.Itoa(pageLimit)}}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	var page model.MatchPage
	err := c.get(ctx, "matches", fmt.Sprintf("/matches/%d?%s", matchID, q.Encode()), &page)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("match %d: %w", matchID, ErrMatchNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser looks up a user by numeric id or username in the given mode.
func (c *Client) GetUser(ctx context.Context, user string, mode model.Mode) (*model.User, error) {
	path := fmt.Sprintf("/users/%s/%s", url.PathEscape(user), mode)
	if !isNumeric(user) {
		path += "?key=username"
	}
	var u model.User
	if err := c.get(ctx, "users", path, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetRecentScores returns up to limit recent plays starting at offset.
func (c *Client) GetRecentScores(ctx context.Context, userID int64, mode model.Mode, limit, offset int, includeFails bool) ([]model.RecentScore, error) {
	fails := "0"
	if includeFails {
		fails = "1"
	}
	q := url.Values{
		"include_fails": {fails},
		"mode":          {string(mode)},
		"limit":         {strconv.Itoa(limit)},
		"offset":        {strconv.Itoa(offset)},
	}
	var scores []model.RecentScore
	if err := c.get(ctx, "scores", fmt.Sprintf("/users/%d/scores/recent?%s", userID, q.Encode()), &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// GetBeatmap returns beatmap metadata such as the maximum combo.
func (c *Client) GetBeatmap(ctx context.Context, beatmapID int64) (*model.BeatmapMeta, error) {
	var b model.BeatmapMeta
	if err := c.get(ctx, "beatmaps", fmt.Sprintf("/beatmaps/%d", beatmapID), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBeatmapFile downloads the raw .osu file. The endpoint needs no token.
func (c *Client) GetBeatmapFile(ctx context.Context, beatmapID int64) ([]byte, error) {
	body, err := c.do(ctx, "beatmap_file", fmt.Sprintf("%s/%d", c.beatmapURL, beatmapID), nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: beatmap %d: read: %v", ErrFetchFailure, beatmapID, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("beatmap %d: empty file: %w", beatmapID, ErrNotFound)
	}
	return data, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
