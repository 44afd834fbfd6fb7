package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard reading answers from in
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== pdfbot Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	// Bot Token
	for {
		prompt := "Telegram Bot Token: "
		if cfg.Telegram.BotToken != "" {
			prompt = "Telegram Bot Token [keep current]: "
		}
		fmt.Fprint(w.out, prompt)
		token, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if token == "" && cfg.Telegram.BotToken != "" {
			break
		}

		if err := validator.ValidateTelegramToken(token); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}

		cfg.Telegram.BotToken = token
		break
	}

	fmt.Fprintln(w.out)

	// Allowlist
	fmt.Fprint(w.out, "Allowed Telegram user ids, comma separated (press Enter to allow everyone): ")
	ids, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if ids != "" {
		allowlist, err := parseAllowlist(ids)
		if err != nil {
			fmt.Fprintf(w.out, "Warning: %v, allowing everyone\n", err)
		} else {
			cfg.Telegram.Allowlist = allowlist
		}
	}

	fmt.Fprintln(w.out)

	// Upload limit
	fmt.Fprintf(w.out, "Maximum upload size in MB [%d]: ", cfg.Storage.MaxUploadMB)
	size, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if size != "" {
		mb, err := strconv.Atoi(size)
		if err != nil || mb <= 0 {
			fmt.Fprintf(w.out, "Warning: invalid size %q, keeping %d\n", size, cfg.Storage.MaxUploadMB)
		} else {
			cfg.Storage.MaxUploadMB = mb
		}
	}

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprintf(w.out, "Log level (debug/info/warn/error) [%s]: ", cfg.Logging.Level)
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, keeping %s\n", err, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// parseAllowlist parses "1, 2,3" into user ids
func parseAllowlist(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
