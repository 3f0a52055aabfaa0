// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pagemill/pagemill/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Store     StoreConfig     `mapstructure:"store"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs the crawl pipeline.
type ScraperConfig struct {
	Engine            string `mapstructure:"engine"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs     int    `mapstructure:"settle_delay_ms"`
	FetchDelayMs      int    `mapstructure:"fetch_delay_ms"`
	MaxPagesDefault   int    `mapstructure:"max_pages_default"`
	MaxPagesLimit     int    `mapstructure:"max_pages_limit"`
	MinHTMLBytes      int    `mapstructure:"min_html_bytes"`
	Workers           int    `mapstructure:"workers"`
	QueueDepth        int    `mapstructure:"queue_depth"`
}

// StoreConfig selects where crawl jobs and page results are persisted.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// ArchiveConfig controls raw HTML archiving.
type ArchiveConfig struct {
	Provider    string `mapstructure:"provider"`
	Dir         string `mapstructure:"dir"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PublisherConfig holds metadata for crawl-completion notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEMILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.engine", "browser")
	v.SetDefault("scraper.user_agent", "pagemill/1.0 (+https://github.com/pagemill/pagemill)")
	v.SetDefault("scraper.nav_timeout_seconds", 15)
	v.SetDefault("scraper.settle_delay_ms", 500)
	v.SetDefault("scraper.fetch_delay_ms", 250)
	v.SetDefault("scraper.max_pages_default", 3)
	v.SetDefault("scraper.max_pages_limit", 50)
	v.SetDefault("scraper.min_html_bytes", 2048)
	v.SetDefault("scraper.workers", 2)
	v.SetDefault("scraper.queue_depth", 64)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("publisher.provider", "noop")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	switch scraper.Engine(c.Scraper.Engine) {
	case scraper.EngineBrowser, scraper.EngineStatic, scraper.EngineAuto:
	default:
		return fmt.Errorf("scraper.engine must be one of browser, static, auto")
	}
	if c.Scraper.UserAgent == "" {
		return fmt.Errorf("scraper.user_agent must be set")
	}
	if c.Scraper.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.nav_timeout_seconds must be > 0")
	}
	if c.Scraper.MaxPagesDefault < 1 {
		return fmt.Errorf("scraper.max_pages_default must be >= 1")
	}
	if c.Scraper.MaxPagesLimit < c.Scraper.MaxPagesDefault {
		return fmt.Errorf("scraper.max_pages_limit must be >= scraper.max_pages_default")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.QueueDepth <= 0 {
		return fmt.Errorf("scraper.queue_depth must be > 0")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	switch c.Archive.Provider {
	case "noop", "memory":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set when archive.provider is local")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("unknown archive provider: %s", c.Archive.Provider)
	}
	switch c.Publisher.Provider {
	case "noop", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown publisher provider: %s", c.Publisher.Provider)
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// CrawlerConfig converts the scraper section into the crawler's settings.
func (c ScraperConfig) CrawlerConfig() scraper.Config {
	return scraper.Config{
		UserAgent:    c.UserAgent,
		Engine:       scraper.Engine(c.Engine),
		NavTimeout:   time.Duration(c.NavTimeoutSeconds) * time.Second,
		SettleDelay:  time.Duration(c.SettleDelayMs) * time.Millisecond,
		FetchDelay:   time.Duration(c.FetchDelayMs) * time.Millisecond,
		MinHTMLBytes: c.MinHTMLBytes,
	}
}

// RequestTimeout converts the server timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
