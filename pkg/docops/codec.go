package docops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harun/pdfbot/internal/tracing"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "pdfbot.docops"

// WatermarkStyle describes how watermark text is rendered
type WatermarkStyle struct {
	FontName string
	Points   int
	Opacity  float64
	Color    string // hex, e.g. #808080
}

// Config holds transform settings
type Config struct {
	// ConverterBinaries are tried in order when looking up LibreOffice
	ConverterBinaries []string
	// ConverterTimeout bounds one conversion; zero means no limit
	ConverterTimeout time.Duration
	Watermark        WatermarkStyle
	// KeyLength is the AES key length used by Protect (128 or 256)
	KeyLength int
}

// DefaultConfig returns the default transform settings
func DefaultConfig() Config {
	return Config{
		ConverterBinaries: []string{"soffice", "libreoffice"},
		ConverterTimeout:  5 * time.Minute,
		Watermark: WatermarkStyle{
			FontName: "Helvetica",
			Points:   40,
			Opacity:  0.3,
			Color:    "#808080",
		},
		KeyLength: 256,
	}
}

// Codec runs the document transforms
type Codec struct {
	config Config
	runner Runner
	logger zerolog.Logger
}

// Option configures a Codec
type Option func(*Codec)

// WithRunner replaces the process runner used for conversions
func WithRunner(r Runner) Option {
	return func(c *Codec) {
		c.runner = r
	}
}

// New creates a Codec
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Codec, error) {
	def := DefaultConfig()
	if len(cfg.ConverterBinaries) == 0 {
		cfg.ConverterBinaries = def.ConverterBinaries
	}
	if cfg.Watermark.FontName == "" {
		cfg.Watermark.FontName = def.Watermark.FontName
	}
	if cfg.Watermark.Points <= 0 {
		cfg.Watermark.Points = def.Watermark.Points
	}
	if cfg.Watermark.Opacity <= 0 || cfg.Watermark.Opacity > 1 {
		cfg.Watermark.Opacity = def.Watermark.Opacity
	}
	if cfg.Watermark.Color == "" {
		cfg.Watermark.Color = def.Watermark.Color
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = def.KeyLength
	}
	if cfg.KeyLength != 128 && cfg.KeyLength != 256 {
		return nil, fmt.Errorf("invalid key length %d (must be 128 or 256)", cfg.KeyLength)
	}

	// pdfcpu would otherwise create a config directory in the user's home
	api.DisableConfigDir()

	c := &Codec{
		config: cfg,
		runner: ExecRunner{},
		logger: logger.With().Str("component", "docops").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// pdfConfig returns a fresh pdfcpu configuration
func (c *Codec) pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// run wraps a transform with a span and a log line
func (c *Codec) run(ctx context.Context, name string, inputs int, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "docops."+name, attribute.Int("inputs", inputs))
	defer func() { tracing.EndSpan(span, err) }()

	logger := tracing.LoggerFromContext(ctx, c.logger)
	start := time.Now()

	err = fn(ctx)

	if err != nil {
		logger.Warn().Err(err).Str("transform", name).Dur("duration", time.Since(start)).Msg("Transform failed")
		return err
	}
	logger.Debug().Str("transform", name).Dur("duration", time.Since(start)).Msg("Transform completed")
	return nil
}

// requireSource checks that path names a non-empty regular file
func requireSource(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrMissingSource
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSource, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrMissingSource, path)
	}
	return nil
}

// PageCount returns the number of pages of a PDF file
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
