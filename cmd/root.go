package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pable/go-osu-metrics/internal/config"
	"github.com/pable/go-osu-metrics/internal/difficulty"
	"github.com/pable/go-osu-metrics/internal/logging"
	"github.com/pable/go-osu-metrics/internal/metrics"
	"github.com/pable/go-osu-metrics/internal/osuapi"
	"github.com/pable/go-osu-metrics/internal/performance"
	"github.com/pable/go-osu-metrics/internal/storage"
)

var (
	dbPath     string
	configPath string
	logLevel   string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "osumetrics",
	Short: "osu! multiplayer match cost and play performance tool",
	Long: `Rank the players of an osu! multiplayer match by match cost, and recompute
difficulty, performance points and map completion for recent plays.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite history database (default ~/.osumetrics/history.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file (falls back to $OSUMETRICS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(matchCostsCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(beatmapCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(playerCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(dropCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellCmd)
}

// setup loads configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	l, err := logging.New(c.LogLevel)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

// newOsuClient returns an API client, failing early when credentials are missing.
func newOsuClient(m *metrics.Metrics) (*osuapi.Client, error) {
	if err := cfg.RequireOsuCredentials(); err != nil {
		return nil, err
	}
	return osuapi.NewClient(osuapi.Options{
		APIURL:            cfg.Osu.APIURL,
		TokenURL:          cfg.Osu.TokenURL,
		BeatmapURL:        cfg.Osu.BeatmapURL,
		ClientID:          cfg.Osu.ClientID,
		ClientSecret:      cfg.Osu.ClientSecret,
		Timeout:           cfg.Osu.Timeout,
		RequestsPerSecond: cfg.Osu.RequestsPerSecond,
		Burst:             cfg.Osu.Burst,
		Metrics:           m,
		Logger:            logger,
	}), nil
}

// newPerformanceService wires the recent-play pipeline against the osu! API
// and the configured calculation service.
func newPerformanceService(api *osuapi.Client, m *metrics.Metrics) *performance.Service {
	calc := difficulty.NewClient(cfg.Difficulty.URL, cfg.Difficulty.Timeout, m, logger)
	rec := performance.NewRecomputer(api, difficulty.NewRegistry(calc), calc, m, logger)
	return performance.NewService(api, rec)
}

// newMetrics returns collectors on a private registry.
func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}

// openDB opens the history database, creating its directory when needed.
func openDB() (*storage.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}
