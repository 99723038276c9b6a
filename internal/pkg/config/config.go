package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "config.yaml"

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Workers WorkersConfig `koanf:"workers"`
	Refresh RefreshConfig `koanf:"refresh"`
	Storage StorageConfig `koanf:"storage"`
	Website WebsiteConfig `koanf:"website"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
	// Workers is the pool size created at bind, before the minimum is applied.
	Workers        int    `koanf:"workers"`
	RequestTimeout string `koanf:"request_timeout"` // Duration string like "30s"
}

type WorkersConfig struct {
	Min                    int `koanf:"min"`
	BusyLogIntervalSeconds int `koanf:"busy_log_interval_seconds"`
}

type RefreshConfig struct {
	IntervalSeconds int `koanf:"interval_seconds"`
}

type StorageConfig struct {
	Type string `koanf:"type"` // sqlite, memory
	Path string `koanf:"path"`
}

type WebsiteConfig struct {
	Name            string           `koanf:"name"`
	WwwRoot         string           `koanf:"www_root"`
	CanonicalHost   string           `koanf:"canonical_host"`
	CanonicalScheme string           `koanf:"canonical_scheme"` // empty disables canonical redirects
	Platforms       []PlatformConfig `koanf:"platforms"`
}

type PlatformConfig struct {
	Name        string `koanf:"name"`
	DisplayName string `koanf:"display_name"`
	AccountURL  string `koanf:"account_url"` // fmt pattern, %s is the username
}

// RefreshInterval returns the refresh loop interval. Zero disables the loop.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// BusyLogInterval returns the saturation monitor interval. Zero disables it.
func (c *Config) BusyLogInterval() time.Duration {
	return time.Duration(c.Workers.BusyLogIntervalSeconds) * time.Second
}

// RequestTimeout parses Server.RequestTimeout. Empty means no timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c.Server.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("server.request_timeout: %w", err)
	}
	return d, nil
}

// Validate checks the numeric settings.
func (c *Config) Validate() error {
	var errs []error
	for _, f := range []struct {
		key   string
		value int
	}{
		{"server.port", c.Server.Port},
		{"server.workers", c.Server.Workers},
		{"workers.min", c.Workers.Min},
		{"workers.busy_log_interval_seconds", c.Workers.BusyLogIntervalSeconds},
		{"refresh.interval_seconds", c.Refresh.IntervalSeconds},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %d", f.key, f.value))
		}
	}
	if c.Server.Workers == 0 {
		errs = append(errs, errors.New("server.workers must be at least 1"))
	}
	switch c.Storage.Type {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not supported", c.Storage.Type))
	}
	if _, err := c.RequestTimeout(); err != nil {
		errs = append(errs, err)
	}
	for i, p := range c.Website.Platforms {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("website.platforms[%d]: name is required", i))
		}
	}
	return errors.Join(errs...)
}

// envNames maps the bare environment variables the site has always read
// to their config keys.
var envNames = map[string]string{
	"PORT":                             "server.port",
	"MIN_WORKER_THREADS":               "workers.min",
	"BUSY_THREAD_LOG_INTERVAL_SECONDS": "workers.busy_log_interval_seconds",
	"REFRESH_INTERVAL_SECONDS":         "refresh.interval_seconds",
	"DATABASE_PATH":                    "storage.path",
	"CANONICAL_HOST":                   "website.canonical_host",
	"CANONICAL_SCHEME":                 "website.canonical_scheme",
	"WWW_ROOT":                         "website.www_root",
}

func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path (optional), then the environment, then defaults.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		name, ok := envNames[key]
		if !ok {
			return "", nil
		}
		return name, value
	}), nil); err != nil {
		return nil, err
	}

	// WEBCORE_ prefixed variables override everything else.
	if err := k.Load(env.Provider("WEBCORE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "WEBCORE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	setDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Website.Platforms) == 0 {
		cfg.Website.Platforms = DefaultPlatforms()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.port":                       8537,
		"server.workers":                    10,
		"server.request_timeout":            "30s",
		"workers.min":                       0,
		"workers.busy_log_interval_seconds": 0,
		"refresh.interval_seconds":          0,
		"storage.type":                      "sqlite",
		"storage.path":                      "webcore.db",
		"website.name":                      "webcore",
		"website.www_root":                  "www",
	}
	for key, v := range defaults {
		if !k.Exists(key) {
			k.Set(key, v)
		}
	}
}

// DefaultPlatforms is the platform order used when none are configured.
func DefaultPlatforms() []PlatformConfig {
	return []PlatformConfig{
		{Name: "github", DisplayName: "GitHub", AccountURL: "https://github.com/%s"},
		{Name: "twitter", DisplayName: "Twitter", AccountURL: "https://twitter.com/%s"},
		{Name: "bitbucket", DisplayName: "Bitbucket", AccountURL: "https://bitbucket.org/%s"},
		{Name: "openstreetmap", DisplayName: "OpenStreetMap", AccountURL: "https://www.openstreetmap.org/user/%s"},
	}
}
