package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

var (
	telegramTokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)
	hexColorPattern      = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTelegramToken validates a Telegram bot token
func (v *Validator) ValidateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram bot token cannot be empty")
	}

	// Telegram bot tokens have format: <bot_id>:<token>
	if !telegramTokenPattern.MatchString(token) {
		return fmt.Errorf("invalid Telegram bot token format")
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSchedule validates a cron expression or descriptor such as "@every 10m"
func (v *Validator) ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("janitor schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return nil
}

// ValidateKeyLength validates the AES key length used for protection
func (v *Validator) ValidateKeyLength(bits int) error {
	if bits != 128 && bits != 256 {
		return fmt.Errorf("protect key_length must be 128 or 256, got %d", bits)
	}
	return nil
}

// ValidateWatermark validates watermark rendering settings
func (v *Validator) ValidateWatermark(w WatermarkConfig) []error {
	var errs []error
	if w.Points <= 0 {
		errs = append(errs, fmt.Errorf("watermark points must be positive, got %d", w.Points))
	}
	if w.Opacity <= 0 || w.Opacity > 1 {
		errs = append(errs, fmt.Errorf("watermark opacity must be in (0, 1], got %v", w.Opacity))
	}
	if w.Color != "" && !hexColorPattern.MatchString(w.Color) {
		errs = append(errs, fmt.Errorf("watermark color must look like #rrggbb, got %q", w.Color))
	}
	return errs
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	// Validate Telegram
	if err := v.ValidateTelegramToken(cfg.Telegram.BotToken); err != nil {
		errors = append(errors, err)
	}
	if cfg.Telegram.PollTimeout < 0 {
		errors = append(errors, fmt.Errorf("telegram poll_timeout must be >= 0"))
	}
	if cfg.Telegram.DedupeTTLSeconds < 0 {
		errors = append(errors, fmt.Errorf("telegram dedupe_ttl_seconds must be >= 0"))
	}

	// Validate storage
	if cfg.Storage.MaxUploadMB <= 0 {
		errors = append(errors, fmt.Errorf("storage max_upload_mb must be positive"))
	}

	// Validate converter
	if cfg.Converter.TimeoutSeconds < 0 {
		errors = append(errors, fmt.Errorf("converter timeout_seconds must be >= 0"))
	}

	// Validate transforms
	errors = append(errors, v.ValidateWatermark(cfg.Watermark)...)
	if err := v.ValidateKeyLength(cfg.Protect.KeyLength); err != nil {
		errors = append(errors, err)
	}

	// Validate session expiry and janitor
	if cfg.Session.IdleTimeoutMinutes <= 0 {
		errors = append(errors, fmt.Errorf("session idle_timeout_minutes must be positive"))
	}
	if err := v.ValidateSchedule(cfg.Janitor.Schedule); err != nil {
		errors = append(errors, err)
	}
	if cfg.Janitor.MaxAgeMinutes <= 0 {
		errors = append(errors, fmt.Errorf("janitor max_age_minutes must be positive"))
	}

	// Validate admin server
	if cfg.Admin.Enabled {
		if err := v.ValidatePort(cfg.Admin.Port); err != nil {
			errors = append(errors, fmt.Errorf("admin: %w", err))
		}
	}

	// Validate tracing
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errors = append(errors, fmt.Errorf("tracing sample_ratio must be between 0 and 1"))
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
