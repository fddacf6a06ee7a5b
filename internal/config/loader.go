package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. OSUMETRICS_OSU__CLIENT_ID.
const EnvPrefix = "OSUMETRICS_"

// Load builds a Config by layering, low to high precedence:
//  1. defaults (New)
//  2. YAML file at path, or $OSUMETRICS_CONFIG when path is empty
//  3. env vars with the OSUMETRICS_ prefix; "__" separates nested keys
//  4. credential files under ~/.osumetrics for anything still unset
func Load(path string) (*Config, error) {
	base := New()
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if cfg.Osu.ClientID == "" {
		cfg.Osu.ClientID = readSecretFile("client_id")
	}
	if cfg.Osu.ClientSecret == "" {
		cfg.Osu.ClientSecret = readSecretFile("client_secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Osu.APIURL == "" {
		return fmt.Errorf("%w: osu.api_url must not be empty", ErrInvalidConfig)
	}
	if c.Osu.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: osu.requests_per_second must be positive", ErrInvalidConfig)
	}
	if c.Osu.Burst < 1 {
		return fmt.Errorf("%w: osu.burst must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// RequireOsuCredentials reports a helpful error when the client credentials are missing.
func (c *Config) RequireOsuCredentials() error {
	if c.Osu.ClientID == "" || c.Osu.ClientSecret == "" {
		return fmt.Errorf("osu! API credentials not found: set OSUMETRICS_OSU__CLIENT_ID and " +
			"OSUMETRICS_OSU__CLIENT_SECRET or create ~/.osumetrics/client_id and ~/.osumetrics/client_secret")
	}
	return nil
}

// readSecretFile returns the trimmed contents of ~/.osumetrics/<name>, or "".
func readSecretFile(name string) string {
	data, err := os.ReadFile(filepath.Join(HomeDir(), name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
