// Package config loads and validates the application configuration from a
// file plus environment overrides. The collector daemon re-reads the file on
// every scheduler tick, so edits take effect without a restart.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Collector CollectorConfig `mapstructure:"collector"`
	Filter    FilterConfig    `mapstructure:"filter"`
	News      NewsConfig      `mapstructure:"news"`
	Social    SocialConfig    `mapstructure:"social"`
	Streams   []StreamConfig  `mapstructure:"streams"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CollectorConfig holds universe selection and history collection settings.
type CollectorConfig struct {
	// TopCoins is the universe size; SelectionMargin widens the ranked
	// snapshot request so enough candidates survive filtering.
	TopCoins        int               `mapstructure:"top_coins"`
	SelectionMargin int               `mapstructure:"selection_margin"`
	Currency        string            `mapstructure:"currency"`
	HistoryDays     int               `mapstructure:"history_days"`
	// MediaInterval gates news/social collection to every Nth tick.
	MediaInterval   int               `mapstructure:"media_interval"`
	StableKeywords  []string          `mapstructure:"stable_keywords"`
	IgnoredCoins    []string          `mapstructure:"ignored_coins"`
	HistoryDelay    time.Duration     `mapstructure:"history_delay"`
	// SymbolOverrides remaps symbols for the secondary history provider.
	SymbolOverrides map[string]string `mapstructure:"symbol_overrides"`
}

// FilterConfig holds the social filter pipeline thresholds.
type FilterConfig struct {
	Blocklist      []string      `mapstructure:"blocklist"`
	Keywords       []string      `mapstructure:"keywords"`
	Threshold      float64       `mapstructure:"threshold"`
	Lookback       time.Duration `mapstructure:"lookback"`
	KarmaThreshold int           `mapstructure:"karma_threshold"`
	RatioThreshold float64       `mapstructure:"ratio_threshold"`
	MinAccountAge  time.Duration `mapstructure:"min_account_age"`
	MaxDailyPosts  int           `mapstructure:"max_daily_posts"`
	LookupDelay    time.Duration `mapstructure:"lookup_delay"`
}

// NewsConfig holds the news collector settings.
type NewsConfig struct {
	// APIKeys rotate on rate-limit responses.
	APIKeys    []string      `mapstructure:"api_keys"`
	QueryDelay time.Duration `mapstructure:"query_delay"`
	RangeDays  int           `mapstructure:"range_days"`
	Staleness  time.Duration `mapstructure:"staleness"`
}

// SocialConfig holds the social collector settings.
type SocialConfig struct {
	// Subreddits maps a coin name to its community.
	Subreddits map[string]string `mapstructure:"subreddits"`
	FetchDelay time.Duration     `mapstructure:"fetch_delay"`
	Staleness  time.Duration     `mapstructure:"staleness"`
}

// StreamConfig describes one streaming connector.
type StreamConfig struct {
	Name     string        `mapstructure:"name"`
	Primary  string        `mapstructure:"primary"`
	Backup   string        `mapstructure:"backup"`
	Products []string      `mapstructure:"products"`
	// Delay rate-limits the connector's sink.
	Delay time.Duration `mapstructure:"delay"`
}

// StorageConfig holds dataset directories and the optional database mirrors.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
	LogsDir string `mapstructure:"logs_dir"`
	// ClickHouseDSN enables the trade-tick mirror when non-empty.
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	// PostgresDSN enables the collection-run ledger when non-empty.
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("CRYPTO_COLLECTOR")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper lowercases map keys on load; collectors look assets up by the
	// upper-cased universe symbol.
	cfg.Collector.SymbolOverrides = upperKeys(cfg.Collector.SymbolOverrides)
	cfg.Social.Subreddits = upperKeys(cfg.Social.Subreddits)

	return &cfg, nil
}

func upperKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToUpper(k)] = v
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collector.top_coins", 50)
	v.SetDefault("collector.selection_margin", 20)
	v.SetDefault("collector.currency", "usd")
	v.SetDefault("collector.history_days", 90)
	v.SetDefault("collector.media_interval", 15)
	v.SetDefault("collector.stable_keywords", []string{"usd"})
	v.SetDefault("collector.history_delay", "500ms")

	v.SetDefault("filter.threshold", 0.4)
	v.SetDefault("filter.lookback", "72h")
	v.SetDefault("filter.karma_threshold", 5)
	v.SetDefault("filter.ratio_threshold", 0.3)
	v.SetDefault("filter.min_account_age", "168h")
	v.SetDefault("filter.max_daily_posts", 10)
	v.SetDefault("filter.lookup_delay", "500ms")

	v.SetDefault("news.query_delay", "2s")
	v.SetDefault("news.range_days", 15)
	v.SetDefault("news.staleness", "15m")

	v.SetDefault("social.fetch_delay", "10s")
	v.SetDefault("social.staleness", "15m")

	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.logs_dir", "./logs")

	v.SetDefault("logging.level", "info")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Collector.TopCoins < 1 {
		return fmt.Errorf("collector.top_coins must be at least 1")
	}
	if c.Collector.SelectionMargin < 0 {
		return fmt.Errorf("collector.selection_margin must not be negative")
	}
	if c.Collector.Currency == "" {
		return fmt.Errorf("collector.currency is required")
	}
	if c.Collector.HistoryDays < 1 {
		return fmt.Errorf("collector.history_days must be at least 1")
	}
	if c.Collector.MediaInterval < 1 {
		return fmt.Errorf("collector.media_interval must be at least 1")
	}

	if c.Filter.Threshold < 0.0 || c.Filter.Threshold > 1.0 {
		return fmt.Errorf("filter.threshold must be between 0.0 and 1.0")
	}
	if c.Filter.RatioThreshold < 0.0 || c.Filter.RatioThreshold > 1.0 {
		return fmt.Errorf("filter.ratio_threshold must be between 0.0 and 1.0")
	}
	if c.Filter.MaxDailyPosts < 1 {
		return fmt.Errorf("filter.max_daily_posts must be at least 1")
	}

	if c.News.RangeDays < 1 {
		return fmt.Errorf("news.range_days must be at least 1")
	}

	for i, s := range c.Streams {
		if s.Name == "" {
			return fmt.Errorf("streams[%d].name is required", i)
		}
		if s.Primary == "" {
			return fmt.Errorf("streams[%d].primary is required", i)
		}
		if s.Delay < 0 {
			return fmt.Errorf("streams[%d].delay must not be negative", i)
		}
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Storage.LogsDir == "" {
		return fmt.Errorf("storage.logs_dir is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}
