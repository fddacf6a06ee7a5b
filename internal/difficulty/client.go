package difficulty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/model"
)

// ErrServiceUnavailable wraps every failure to reach or decode the calculation service.
var ErrServiceUnavailable = errors.New("difficulty service unavailable")

// Client calls a JSON calculation service:
//
//	POST {url}/performance {mode, beatmap, mods, combo, statistics} -> {pp, stars}
//	POST {url}/difficulty  {mode, beatmap, mods}                    -> {stars}
type Client struct {
	url     string
	http    *http.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewClient returns a client for the service at baseURL. A zero timeout means 30s.
func NewClient(baseURL string, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:     strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		metrics: m,
		logger:  logger,
	}
}

type calcRequest struct {
	Mode       model.Mode        `json:"mode"`
	Beatmap    string            `json:"beatmap"`
	Mods       []string          `json:"mods"`
	Combo      *int              `json:"combo,omitempty"`
	Statistics *model.Statistics `json:"statistics,omitempty"`
}

type calcResponse struct {
	PP    float64 `json:"pp"`
	Stars float64 `json:"stars"`
}

// PP returns the performance points of the play in mode.
func (c *Client) PP(ctx context.Context, mode model.Mode, in Input) (float64, error) {
	stats := in.Statistics
	combo := in.Combo
	var resp calcResponse
	err := c.post(ctx, "/performance", calcRequest{
		Mode:       mode,
		Beatmap:    string(in.Beatmap),
		Mods:       nonNil(in.Mods),
		Combo:      &combo,
		Statistics: &stats,
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.PP, nil
}

// Stars returns the osu! standard star rating of the beatmap under mods.
func (c *Client) Stars(ctx context.Context, beatmap []byte, mods []string) (float64, error) {
	var resp calcResponse
	err := c.post(ctx, "/difficulty", calcRequest{
		Mode:    model.ModeOsu,
		Beatmap: string(beatmap),
		Mods:    nonNil(mods),
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Stars, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if c.url == "" {
		return fmt.Errorf("%w: no service url configured", ErrServiceUnavailable)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ComputationFailed("difficulty")
		return fmt.Errorf("%w: POST %s: %v", ErrServiceUnavailable, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("difficulty request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		c.metrics.ComputationFailed("difficulty")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: POST %s: HTTP %d: %s", ErrServiceUnavailable, path, resp.StatusCode, snippet)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: POST %s: decode: %v", ErrServiceUnavailable, path, err)
	}
	return nil
}

func nonNil(mods []string) []string {
	if mods == nil {
		return []string{}
	}
	return mods
}
