package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models leavedesk.yml.
type Config struct {
	Backend struct {
		BaseURL string        `yaml:"base_url" json:"base_url"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"backend" json:"backend"`
	Refresh struct {
		Delay       time.Duration `yaml:"delay" json:"delay"`
		MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
		Backoff     float64       `yaml:"backoff" json:"backoff"`
	} `yaml:"refresh" json:"refresh"`
	Views struct {
		PageSize int `yaml:"page_size" json:"page_size"`
		NameMax  int `yaml:"name_max" json:"name_max"`
	} `yaml:"views" json:"views"`
	Log struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
	} `yaml:"log" json:"log"`
	Cache struct {
		Backend   string        `yaml:"backend" json:"backend"`
		TTL       time.Duration `yaml:"ttl" json:"ttl"`
		RedisAddr string        `yaml:"redis_addr" json:"redis_addr,omitempty"`
		RedisDB   int           `yaml:"redis_db" json:"redis_db,omitempty"`
	} `yaml:"cache" json:"cache"`
	Webhooks []WebhookConfig `yaml:"webhooks" json:"webhooks,omitempty"`
}

// WebhookConfig posts bus events to an external URL.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events" json:"events,omitempty"`
	Secret         string   `yaml:"secret" json:"-"`
	TimeoutSeconds int      `yaml:"timeout_seconds" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled" json:"enabled,omitempty"`
}

const (
	CacheNone   = "none"
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ld config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("config.backend.base_url is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.backend.base_url must be an absolute URL")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("config.backend.timeout must be positive")
	}
	if c.Refresh.Delay < 0 {
		return fmt.Errorf("config.refresh.delay must not be negative")
	}
	if c.Refresh.MaxAttempts < 1 {
		return fmt.Errorf("config.refresh.max_attempts must be at least 1")
	}
	if c.Refresh.Backoff < 1 {
		return fmt.Errorf("config.refresh.backoff must be >= 1")
	}
	if c.Views.PageSize < 1 {
		return fmt.Errorf("config.views.page_size must be at least 1")
	}
	switch c.Cache.Backend {
	case CacheNone, CacheSQLite:
	case CacheRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			return fmt.Errorf("config.cache.redis_addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("config.cache.backend must be one of none, sqlite, redis")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "leavedesk.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(baseURL string) string {
	return fmt.Sprintf(defaultTemplate, baseURL)
}

// LoadOptional returns defaults when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(""), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct. An empty baseURL keeps the
// placeholder so Validate still fails until a backend is set.
func Default(baseURL string) *Config {
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(baseURL))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `backend:
  base_url: %s
  timeout: 15s

refresh:
  # wait before re-fetching lists after an approve/reject/cancel
  delay: 1s
  max_attempts: 3
  backoff: 2

views:
  page_size: 10
  name_max: 15

log:
  level: warn
  format: console

cache:
  backend: sqlite
  ttl: 5m
`
