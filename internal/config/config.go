package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client configuration loaded from YAML and env.
type Config struct {
	APIBaseURL string
	APITimeout time.Duration

	CacheTTL     time.Duration
	CacheBackend string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	SearchDebounce  time.Duration
	SearchMinLength int
	SearchTTL       time.Duration

	TablePageSize int

	RateLimitRPS   int // 0 disables the client-side limiter
	RateLimitBurst int

	MetricsListenAddr string // "" disables the metrics listener

	StateDir string

	LogLevel string
}

type fileConfig struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`

	Cache struct {
		TTL       string `yaml:"ttl"`
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		BaseDelay   string `yaml:"base_delay"`
		MaxDelay    string `yaml:"max_delay"`
	} `yaml:"retry"`

	Search struct {
		Debounce       string `yaml:"debounce"`
		MinQueryLength int    `yaml:"min_query_length"`
		TTL            string `yaml:"ttl"`
	} `yaml:"search"`

	Table struct {
		PageSize int `yaml:"page_size"`
	} `yaml:"table"`

	RateLimit struct {
		RPS   int `yaml:"rps"`
		Burst int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`

	StateDir string `yaml:"state_dir"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from the path in ZONES_CONFIG, falling back to
// <state dir>/config.yaml. A missing file yields all defaults so the CLI
// works out of the box.
func Load() (*Config, error) {
	path := os.Getenv("ZONES_CONFIG")
	if path == "" {
		path = filepath.Join(defaultStateDir(), "config.yaml")
	}
	return LoadFile(path)
}

// LoadFile reads configuration from the given YAML file. The file is
// optional; env overrides (ZONES_API_URL, ZONES_CACHE_BACKEND,
// ZONES_STATE_DIR) apply on top either way.
func LoadFile(path string) (*Config, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.APIBaseURL = strings.TrimSpace(os.Getenv("ZONES_API_URL"))
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = strings.TrimSpace(fc.API.BaseURL)
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8080"
	}
	cfg.APITimeout = parseDuration(fc.API.Timeout, 15*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 30*time.Second)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("ZONES_CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Retry.MaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Retry.BaseDelay, time.Second)
	cfg.RetryMaxDelay = parseDuration(fc.Retry.MaxDelay, 30*time.Second)

	cfg.SearchDebounce = parseDuration(fc.Search.Debounce, 300*time.Millisecond)
	cfg.SearchMinLength = fc.Search.MinQueryLength
	if cfg.SearchMinLength <= 0 {
		cfg.SearchMinLength = 2
	}
	cfg.SearchTTL = parseDuration(fc.Search.TTL, time.Minute)

	cfg.TablePageSize = fc.Table.PageSize
	if cfg.TablePageSize <= 0 {
		cfg.TablePageSize = 10
	}

	cfg.RateLimitRPS = fc.RateLimit.RPS
	cfg.RateLimitBurst = fc.RateLimit.Burst
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS
	}

	cfg.MetricsListenAddr = strings.TrimSpace(fc.Metrics.ListenAddr)

	cfg.StateDir = strings.TrimSpace(os.Getenv("ZONES_STATE_DIR"))
	if cfg.StateDir == "" {
		cfg.StateDir = strings.TrimSpace(fc.StateDir)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}

	cfg.LogLevel = strings.TrimSpace(fc.LogLevel)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weather-zones"
	}
	return filepath.Join(home, ".weather-zones")
}

// parseDuration parses a duration string and returns defaultVal on empty
// input, parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return fmt.Errorf("retry.max_delay %v is below retry.base_delay %v", cfg.RetryMaxDelay, cfg.RetryBaseDelay)
	}
	return nil
}
