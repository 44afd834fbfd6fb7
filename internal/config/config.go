package config

import (
	"encoding/json"
	"errors"
	"time"
)

// Config represents the main pdfbot configuration
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Scratch storage for uploads and results
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Presentation converter
	Converter ConverterConfig `json:"converter" mapstructure:"converter"`

	// Transform settings
	Watermark WatermarkConfig `json:"watermark" mapstructure:"watermark"`
	Protect   ProtectConfig   `json:"protect" mapstructure:"protect"`

	// Session expiry and cleanup
	Session SessionConfig `json:"session" mapstructure:"session"`
	Janitor JanitorConfig `json:"janitor" mapstructure:"janitor"`

	// Admin HTTP server
	Admin AdminConfig `json:"admin" mapstructure:"admin"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string `json:"bot_token" mapstructure:"bot_token"`
	// Allowlist restricts the bot to these user ids; empty allows everyone
	Allowlist        []int64 `json:"allowlist" mapstructure:"allowlist"`
	PollTimeout      int     `json:"poll_timeout" mapstructure:"poll_timeout"` // seconds
	DedupeTTLSeconds int     `json:"dedupe_ttl_seconds" mapstructure:"dedupe_ttl_seconds"`
}

// StorageConfig holds scratch storage configuration
type StorageConfig struct {
	WorkDir     string `json:"work_dir" mapstructure:"work_dir"`
	MaxUploadMB int    `json:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// ConverterConfig holds presentation converter configuration
type ConverterConfig struct {
	// Binary overrides the soffice lookup when set
	Binary         string `json:"binary" mapstructure:"binary"`
	TimeoutSeconds int    `json:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// WatermarkConfig holds watermark rendering settings
type WatermarkConfig struct {
	Font    string  `json:"font" mapstructure:"font"`
	Points  int     `json:"points" mapstructure:"points"`
	Opacity float64 `json:"opacity" mapstructure:"opacity"`
	Color   string  `json:"color" mapstructure:"color"`
}

// ProtectConfig holds encryption settings
type ProtectConfig struct {
	KeyLength int `json:"key_length" mapstructure:"key_length"`
}

// SessionConfig holds session expiry settings
type SessionConfig struct {
	IdleTimeoutMinutes int `json:"idle_timeout_minutes" mapstructure:"idle_timeout_minutes"`
}

// JanitorConfig holds the cleanup schedule
type JanitorConfig struct {
	Schedule      string `json:"schedule" mapstructure:"schedule"`
	MaxAgeMinutes int    `json:"max_age_minutes" mapstructure:"max_age_minutes"`
}

// AdminConfig holds admin server configuration
type AdminConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Allowlist:        []int64{},
			PollTimeout:      60,
			DedupeTTLSeconds: 300,
		},
		Storage: StorageConfig{
			MaxUploadMB: 50,
		},
		Converter: ConverterConfig{
			TimeoutSeconds: 300,
		},
		Watermark: WatermarkConfig{
			Font:    "Helvetica",
			Points:  40,
			Opacity: 0.3,
			Color:   "#808080",
		},
		Protect: ProtectConfig{
			KeyLength: 256,
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: 60,
		},
		Janitor: JanitorConfig{
			Schedule:      "@every 10m",
			MaxAgeMinutes: 120,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9090,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1.0,
		},
	}
}

// MaxUploadBytes returns the upload limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) * 1024 * 1024
}

// ConverterTimeout returns the converter timeout; zero disables it
func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSeconds) * time.Second
}

// IdleTimeout returns how long a session may sit idle before it is reaped
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

// JanitorMaxAge returns the age after which scratch files are swept
func (c *Config) JanitorMaxAge() time.Duration {
	return time.Duration(c.Janitor.MaxAgeMinutes) * time.Minute
}

// String returns a JSON representation of the config with the token masked
func (c *Config) String() string {
	masked := *c
	if masked.Telegram.BotToken != "" {
		masked.Telegram.BotToken = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
