package docops

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ConvertPresentation renders a presentation to PDF with headless LibreOffice.
// Every failure wraps ErrConversion.
func (c *Codec) ConvertPresentation(ctx context.Context, in, out string) error {
	return c.run(ctx, "ppt_to_pdf", 1, func(ctx context.Context) error {
		if err := requireSource(in); err != nil {
			return err
		}

		binary, err := c.converterBinary()
		if err != nil {
			return err
		}

		// LibreOffice writes <stem>.pdf into --outdir; a private directory keeps
		// concurrent conversions and their user profiles apart.
		workDir, err := os.MkdirTemp(filepath.Dir(out), ".convert-")
		if err != nil {
			return fmt.Errorf("%w: failed to create work directory: %v", ErrConversion, err)
		}
		defer func() {
			if err := os.RemoveAll(workDir); err != nil {
				c.logger.Warn().Err(err).Str("dir", workDir).Msg("Failed to remove conversion directory")
			}
		}()

		profile := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(workDir, "profile"))}
		result, err := c.runner.Run(ctx, Command{
			Name: binary,
			Args: []string{
				"-env:UserInstallation=" + profile.String(),
				"--headless",
				"--convert-to", "pdf",
				"--outdir", workDir,
				in,
			},
			WorkingDir: workDir,
			Timeout:    c.config.ConverterTimeout,
		})
		if err != nil {
			c.logger.Debug().
				Str("stderr", strings.TrimSpace(string(result.Stderr))).
				Int("exit_code", result.ExitCode).
				Msg("Converter output")
			return fmt.Errorf("%w: %v", ErrConversion, err)
		}

		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		produced := filepath.Join(workDir, stem+".pdf")
		info, err := os.Stat(produced)
		if err != nil || info.Size() == 0 {
			return fmt.Errorf("%w: %w", ErrConversion, ErrNoOutput)
		}

		if err := os.Rename(produced, out); err != nil {
			return fmt.Errorf("%w: failed to move output: %v", ErrConversion, err)
		}
		return nil
	})
}

// converterBinary returns the first configured converter found in PATH
func (c *Codec) converterBinary() (string, error) {
	for _, name := range c.config.ConverterBinaries {
		if path, err := c.runner.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %w (tried %s)", ErrConversion, ErrConverterUnavailable,
		strings.Join(c.config.ConverterBinaries, ", "))
}
