// Package config loads nok settings from ~/.nok/config.toml and NOK_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xonecas/nok/internal/constants"
)

// Backend names.
const (
	BackendMatrix = "matrix"
	BackendOffice = "office"
)

// Config holds every nok setting.
type Config struct {
	Backend  string       `toml:"backend"`
	Username string       `toml:"username"`
	Matrix   MatrixConfig `toml:"matrix"`
	Office   OfficeConfig `toml:"office"`
	Audio    AudioConfig  `toml:"audio"`
	UI       UIConfig     `toml:"ui"`
}

// MatrixConfig holds homeserver settings.
type MatrixConfig struct {
	Homeserver     string        `toml:"homeserver"`
	ServerName     string        `toml:"server_name"`
	DeviceID       string        `toml:"device_id"`
	DeviceName     string        `toml:"device_name"`
	SyncTimeout    time.Duration `toml:"sync_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	RateLimit      float64       `toml:"rate_limit"`
	RateBurst      int           `toml:"rate_burst"`
}

// OfficeConfig holds office backend settings.
type OfficeConfig struct {
	BaseURL string `toml:"base_url"`
}

// AudioConfig controls the knock alert.
type AudioConfig struct {
	Enabled bool `toml:"enabled"`
}

// UIConfig holds renderer timings.
type UIConfig struct {
	NotificationTTL      time.Duration `toml:"notification_ttl"`
	ShortNotificationTTL time.Duration `toml:"short_notification_ttl"`
}

// DefaultConfig returns the settings used when no file or env override is present.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendMatrix,
		Matrix: MatrixConfig{
			Homeserver:     constants.DefaultHomeserver,
			ServerName:     constants.DefaultServerName,
			DeviceName:     constants.DefaultDeviceName,
			SyncTimeout:    constants.SyncTimeout,
			RequestTimeout: constants.RequestTimeout,
			RateLimit:      constants.RequestRateLimit,
			RateBurst:      constants.RequestRateBurst,
		},
		Office: OfficeConfig{
			BaseURL: constants.DefaultOfficeURL,
		},
		Audio: AudioConfig{
			Enabled: true,
		},
		UI: UIConfig{
			NotificationTTL:      constants.NotificationTTL,
			ShortNotificationTTL: constants.ShortNotificationTTL,
		},
	}
}

// Load decodes path, if it exists, over the defaults and then applies env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no client can run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMatrix, BackendOffice:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendMatrix, BackendOffice)
	}
	if c.Matrix.RateLimit < 0 || c.Matrix.RateBurst < 0 {
		return fmt.Errorf("matrix rate limit must not be negative")
	}
	if c.UI.NotificationTTL <= 0 || c.UI.ShortNotificationTTL <= 0 {
		return fmt.Errorf("notification ttl must be positive")
	}
	return nil
}

// ServerURL returns the base URL of the selected backend.
func (c *Config) ServerURL() string {
	if c.Backend == BackendOffice {
		return c.Office.BaseURL
	}
	return c.Matrix.Homeserver
}

// SetServerURL points the selected backend at url.
func (c *Config) SetServerURL(url string) {
	if c.Backend == BackendOffice {
		c.Office.BaseURL = url
		return
	}
	c.Matrix.Homeserver = url
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NOK_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("NOK_USERNAME"); v != "" {
		cfg.Username = v
	}

	if v := os.Getenv("NOK_HOMESERVER"); v != "" {
		cfg.Matrix.Homeserver = v
	}

	if v := os.Getenv("NOK_DEVICE_ID"); v != "" {
		cfg.Matrix.DeviceID = v
	}

	if v := os.Getenv("NOK_OFFICE_URL"); v != "" {
		cfg.Office.BaseURL = v
	}

	if v := os.Getenv("NOK_AUDIO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Audio.Enabled = b
		}
	}
}

// DataDir returns the path to the nok data directory (~/.nok).
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".nok"), nil
}

// EnsureDataDir returns DataDir, creating it first.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPath returns ~/.nok/config.toml.
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
