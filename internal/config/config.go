package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/adspeed/internal/signature"
)

type Config struct {
	// Browser to attach to (required for `adspeed run`)
	Browser BrowserConfig `koanf:"browser"`

	// Per-document tuning
	Session SessionConfig `koanf:"session"`

	// Local HTTP API (stats, consent, metrics)
	API APIConfig `koanf:"api"`

	Log LogConfig `koanf:"log"`

	// Desktop notification on forced reload
	Notify NotifyConfig `koanf:"notify"`

	// Structural signatures; hot-reloaded while running
	Signatures signature.Set `koanf:"signatures"`

	// Path to the state database; empty uses the XDG data dir
	StatePath string `koanf:"state_path"`
}

// BrowserConfig selects the Chromium instance.
type BrowserConfig struct {
	RemoteURL string `koanf:"remote_url"` // DevTools websocket or http://host:port; empty launches a browser
	ExecPath  string `koanf:"exec_path"`  // browser binary when launching
	Headless  bool   `koanf:"headless"`
	StartURL  string `koanf:"start_url"` // page opened when launching
	TabMatch  string `koanf:"tab_match"` // substring a tab URL must contain to be watched
}

// SessionConfig holds the timing and rate knobs of a session.
type SessionConfig struct {
	PollInterval      time.Duration   `koanf:"poll_interval"`
	LocatorRetry      time.Duration   `koanf:"locator_retry"`
	SettleDelays      []time.Duration `koanf:"settle_delays"`
	DismissDebounce   time.Duration   `koanf:"dismiss_debounce"`
	DismissDelay      time.Duration   `koanf:"dismiss_delay"`
	ClickStagger      time.Duration   `koanf:"click_stagger"`
	ReloadDelay       time.Duration   `koanf:"reload_delay"`
	VisibilityDelay   time.Duration   `koanf:"visibility_delay"`
	ReconcileInterval time.Duration   `koanf:"reconcile_interval"`
	MaxActive         time.Duration   `koanf:"max_active"`
	TargetRate        float64         `koanf:"target_rate"`
	FallbackRates     []float64       `koanf:"fallback_rates"`
	SafeRate          float64         `koanf:"safe_rate"`
	TrustedClicks     *bool           `koanf:"trusted_clicks"` // default: true
}

// APIConfig holds the local HTTP API settings.
type APIConfig struct {
	Listen    string `koanf:"listen"`     // default: 127.0.0.1:8797
	Enabled   *bool  `koanf:"enabled"`    // default: true
	RateLimit int    `koanf:"rate_limit"` // mutating requests per minute (default: 30)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`  // default: info
	Pretty *bool  `koanf:"pretty"` // default: true
}

// NotifyConfig holds desktop notification settings.
type NotifyConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

const (
	appName        = "adspeed"
	configFileName = "config.toml"

	defaultListen    = "127.0.0.1:8797"
	defaultRateLimit = 30
)

// Load reads the config files in priority order.
func Load() (*Config, error) {
	return LoadFrom(getConfigPaths())
}

// LoadFrom reads the given files, later files overriding earlier ones.
// Missing files are skipped.
func LoadFrom(paths []string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Signatures = withSignatureDefaults(cfg.Signatures)
	if cfg.StatePath != "" {
		cfg.StatePath = expandPath(cfg.StatePath)
	}
	if cfg.Browser.ExecPath != "" {
		cfg.Browser.ExecPath = expandPath(cfg.Browser.ExecPath)
	}
	if err := cfg.Signatures.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ExistingPaths returns the config files that are present.
func ExistingPaths() []string {
	var out []string
	for _, p := range getConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/adspeed/config.toml
		filepath.Join(xdg.ConfigHome, appName, configFileName),
		// 2. ./config.toml (pwd, highest priority)
		configFileName,
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// withSignatureDefaults fills the fields the file left out. A file that
// overrides any selector without naming a version gets version "local".
func withSignatureDefaults(s signature.Set) signature.Set {
	d := signature.Default()
	custom := false
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		} else {
			custom = true
		}
	}
	fill(&s.Container, d.Container)
	fill(&s.Media, d.Media)
	fill(&s.Dismiss, d.Dismiss)
	fill(&s.Warning, d.Warning)
	fill(&s.WarningHost, d.WarningHost)
	if len(s.MarkerClasses) == 0 {
		s.MarkerClasses = d.MarkerClasses
	} else {
		custom = true
	}
	if len(s.Indicators) == 0 {
		s.Indicators = d.Indicators
	} else {
		custom = true
	}
	if s.Version == "" {
		s.Version = d.Version
		if custom {
			s.Version = "local"
		}
	}
	return s
}

// TrustedClicksEnabled reports whether the trusted click path is wired.
func (c *Config) TrustedClicksEnabled() bool {
	return c.Session.TrustedClicks == nil || *c.Session.TrustedClicks
}

// APIEnabled reports whether the HTTP API should be served.
func (c *Config) APIEnabled() bool {
	return c.API.Enabled == nil || *c.API.Enabled
}

// NotifyEnabled reports whether desktop notifications are sent.
func (c *Config) NotifyEnabled() bool {
	return c.Notify.Enabled == nil || *c.Notify.Enabled
}

// GetAPIConfig returns the API configuration with defaults applied.
func (c *Config) GetAPIConfig() APIConfig {
	cfg := c.API
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	return cfg
}

// GetLogConfig returns the log configuration with defaults applied.
func (c *Config) GetLogConfig() LogConfig {
	cfg := c.Log
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Pretty == nil {
		pretty := true
		cfg.Pretty = &pretty
	}
	return cfg
}

// ErrNoConfigFile is returned by Watch when there is nothing to watch.
var ErrNoConfigFile = errors.New("no config file to watch")
