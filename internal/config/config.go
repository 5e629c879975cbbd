// Package config loads application configuration from an optional TOML file
// and environment variables.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const envPrefix = "ARTSENGINE_"

// Config holds the application configuration.
type Config struct {
	ListenAddr        string
	DBPath            string
	APIBase           string
	SecretKey         []byte
	GitHubAPIURL      string
	ExportRepo        string
	VideoPollInterval time.Duration
	VideoPollAttempts int
	LogLevel          string
	LogFormat         string
}

// HasSecretKey reports whether secrets can be stored encrypted. Without a
// key the composition root falls back to plaintext storage.
func (c *Config) HasSecretKey() bool {
	return len(c.SecretKey) == 32
}

// fileConfig mirrors the TOML file. Every field is a string so the same
// parsing rules apply to file and environment values.
type fileConfig struct {
	ListenAddr        string `toml:"listen_addr"`
	DBPath            string `toml:"db_path"`
	APIBase           string `toml:"api_base"`
	SecretKey         string `toml:"secret_key"`
	GitHubAPIURL      string `toml:"github_api_url"`
	ExportRepo        string `toml:"export_repo"`
	VideoPollInterval string `toml:"video_poll_interval"`
	VideoPollAttempts string `toml:"video_poll_attempts"`
	LogLevel          string `toml:"log_level"`
	LogFormat         string `toml:"log_format"`
}

func defaults() fileConfig {
	return fileConfig{
		ListenAddr:        "127.0.0.1:8090",
		DBPath:            "artsengine.db",
		APIBase:           "http://localhost:8091",
		ExportRepo:        "modelearth/requests",
		VideoPollInterval: "5s",
		VideoPollAttempts: "120",
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// Load reads configuration and returns a validated Config. Values come from,
// in increasing precedence: built-in defaults, the TOML file named by
// ARTSENGINE_CONFIG, and ARTSENGINE_* environment variables.
// ARTSENGINE_SECRET_KEY is optional; when present it must be 32 bytes given
// as 64 hex characters or standard base64.
func Load() (*Config, error) {
	fc := defaults()

	if path, ok := os.LookupEnv(envPrefix + "CONFIG"); ok && path != "" {
		if err := decodeFile(path, &fc); err != nil {
			return nil, err
		}
	}

	overrides := map[string]*string{
		"LISTEN_ADDR":         &fc.ListenAddr,
		"DB_PATH":             &fc.DBPath,
		"API_BASE":            &fc.APIBase,
		"SECRET_KEY":          &fc.SecretKey,
		"GITHUB_API_URL":      &fc.GitHubAPIURL,
		"EXPORT_REPO":         &fc.ExportRepo,
		"VIDEO_POLL_INTERVAL": &fc.VideoPollInterval,
		"VIDEO_POLL_ATTEMPTS": &fc.VideoPollAttempts,
		"LOG_LEVEL":           &fc.LogLevel,
		"LOG_FORMAT":          &fc.LogFormat,
	}
	for name, dst := range overrides {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	return fc.build()
}

func decodeFile(path string, fc *fileConfig) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (fc fileConfig) build() (*Config, error) {
	cfg := &Config{
		ListenAddr:   strings.TrimSpace(fc.ListenAddr),
		DBPath:       strings.TrimSpace(fc.DBPath),
		APIBase:      strings.TrimRight(strings.TrimSpace(fc.APIBase), "/"),
		GitHubAPIURL: strings.TrimSpace(fc.GitHubAPIURL),
		ExportRepo:   strings.TrimSpace(fc.ExportRepo),
		LogLevel:     strings.ToLower(strings.TrimSpace(fc.LogLevel)),
		LogFormat:    strings.ToLower(strings.TrimSpace(fc.LogFormat)),
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("%sLISTEN_ADDR must not be empty", envPrefix)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("%sDB_PATH must not be empty", envPrefix)
	}

	u, err := url.Parse(cfg.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%sAPI_BASE has invalid URL %q", envPrefix, fc.APIBase)
	}

	if cfg.GitHubAPIURL != "" {
		if u, err := url.Parse(cfg.GitHubAPIURL); err != nil || u.Host == "" {
			return nil, fmt.Errorf("%sGITHUB_API_URL has invalid URL %q", envPrefix, fc.GitHubAPIURL)
		}
	}

	if owner, name, ok := strings.Cut(cfg.ExportRepo, "/"); !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("%sEXPORT_REPO must be owner/name, got %q", envPrefix, fc.ExportRepo)
	}

	cfg.VideoPollInterval, err = time.ParseDuration(strings.TrimSpace(fc.VideoPollInterval))
	if err != nil {
		return nil, fmt.Errorf("%sVIDEO_POLL_INTERVAL has invalid duration %q: %w", envPrefix, fc.VideoPollInterval, err)
	}
	if cfg.VideoPollInterval <= 0 {
		return nil, fmt.Errorf("%sVIDEO_POLL_INTERVAL must be positive, got %s", envPrefix, cfg.VideoPollInterval)
	}

	cfg.VideoPollAttempts, err = strconv.Atoi(strings.TrimSpace(fc.VideoPollAttempts))
	if err != nil || cfg.VideoPollAttempts <= 0 {
		return nil, fmt.Errorf("%sVIDEO_POLL_ATTEMPTS must be a positive integer, got %q", envPrefix, fc.VideoPollAttempts)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%sLOG_LEVEL must be debug, info, warn or error, got %q", envPrefix, fc.LogLevel)
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("%sLOG_FORMAT must be json or console, got %q", envPrefix, fc.LogFormat)
	}

	if raw := strings.TrimSpace(fc.SecretKey); raw != "" {
		key, err := parseSecretKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%sSECRET_KEY %w", envPrefix, err)
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}

// parseSecretKey accepts 64 hex characters or standard base64, both
// decoding to exactly 32 bytes.
func parseSecretKey(raw string) ([]byte, error) {
	if len(raw) == 64 {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("is not valid hex: %w", err)
		}
		return key, nil
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.New("must be 64 hex characters or base64 of 32 bytes")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
