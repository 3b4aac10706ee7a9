// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Bulletin BulletinConfig `mapstructure:"bulletin"`
	Poller   PollerConfig   `mapstructure:"poller"`
	AI       AIConfig       `mapstructure:"ai"`
	Mail     MailConfig     `mapstructure:"mail"`
	Session  SessionConfig  `mapstructure:"session"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// RedisConfig points at the cache used for summaries and sessions.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BulletinConfig governs the PHIVOLCS bulletin fetcher.
type BulletinConfig struct {
	URL             string `mapstructure:"url"`
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// PollerConfig governs the periodic monitoring task.
type PollerConfig struct {
	IntervalSeconds   int     `mapstructure:"interval_seconds"`
	MinMagnitude      float64 `mapstructure:"min_magnitude"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds"`
}

// AIConfig configures the Gemini summarizer.
type AIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// MailConfig configures the SMTP transport for alert emails.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// SessionConfig controls login session lifetime.
type SessionConfig struct {
	TTLHours int `mapstructure:"ttl_hours"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUAKEWATCH")
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
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("bulletin.url", "https://earthquake.phivolcs.dost.gov.ph/")
	v.SetDefault("bulletin.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("bulletin.timeout_seconds", 10)
	v.SetDefault("bulletin.cache_ttl_seconds", 300)
	v.SetDefault("poller.interval_seconds", 300)
	v.SetDefault("poller.min_magnitude", 3.0)
	v.SetDefault("poller.max_attempts", 3)
	v.SetDefault("poller.retry_delay_seconds", 60)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.cache_ttl_seconds", 3600)
	v.SetDefault("mail.port", 587)
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Bulletin.URL == "" {
		return fmt.Errorf("bulletin.url must be set")
	}
	if c.Bulletin.TimeoutSeconds <= 0 {
		return fmt.Errorf("bulletin.timeout_seconds must be > 0")
	}
	if c.Poller.IntervalSeconds <= 0 {
		return fmt.Errorf("poller.interval_seconds must be > 0")
	}
	if c.Poller.MaxAttempts <= 0 {
		return fmt.Errorf("poller.max_attempts must be > 0")
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		return fmt.Errorf("mail.from must be set when mail.host is configured")
	}
	return nil
}

// FetchTimeout converts the bulletin timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Bulletin.TimeoutSeconds) * time.Second
}

// BulletinCacheTTL converts the bulletin cache window config into a duration.
func (c Config) BulletinCacheTTL() time.Duration {
	return time.Duration(c.Bulletin.CacheTTLSeconds) * time.Second
}

// SummaryCacheTTL converts the AI summary cache window config into a duration.
func (c Config) SummaryCacheTTL() time.Duration {
	return time.Duration(c.AI.CacheTTLSeconds) * time.Second
}

// PollInterval converts the poller interval config into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// RetryDelay converts the poller retry delay config into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Poller.RetryDelaySeconds) * time.Second
}

// SessionTTL converts the session lifetime config into a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}
