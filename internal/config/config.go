// Package config defines the osumetrics configuration and how it is layered.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DBPath is the SQLite history database.
	DBPath string `koanf:"db_path"`

	Osu        OsuConfig        `koanf:"osu"`
	Difficulty DifficultyConfig `koanf:"difficulty"`
	Server     ServerConfig     `koanf:"server"`
	Analyze    AnalyzeConfig    `koanf:"analyze"`
}

// OsuConfig configures the osu! API v2 client.
type OsuConfig struct {
	APIURL       string `koanf:"api_url"`
	TokenURL     string `koanf:"token_url"`
	BeatmapURL   string `koanf:"beatmap_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`

	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond and Burst throttle outgoing API calls.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// DifficultyConfig points at the difficulty/performance calculation service.
type DifficultyConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig configures `osumetrics serve`.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// AnalyzeConfig configures `osumetrics analyze`.
type AnalyzeConfig struct {
	Model  string `koanf:"model"`
	APIKey string `koanf:"api_key"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		DBPath:   filepath.Join(HomeDir(), "history.db"),
		Osu: OsuConfig{
			APIURL:            "https://osu.ppy.sh/api/v2",
			TokenURL:          "https://osu.ppy.sh/oauth/token",
			BeatmapURL:        "https://osu.ppy.sh/osu",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 1,
			Burst:             10,
		},
		Difficulty: DifficultyConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":9180",
		},
		Analyze: AnalyzeConfig{
			Model: "claude-haiku-4-5-20251001",
		},
	}
}

// HomeDir is ~/.osumetrics, or the working directory when no home is available.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".osumetrics")
}
