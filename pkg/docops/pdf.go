package docops

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ImagesToPDF writes one page per image, in the given order
func (c *Codec) ImagesToPDF(ctx context.Context, images []string, out string) error {
	return c.run(ctx, "images_to_pdf", len(images), func(ctx context.Context) error {
		if len(images) == 0 {
			return ErrNoInput
		}
		for _, img := range images {
			if err := requireSource(img); err != nil {
				return err
			}
		}

		imp := pdfcpu.DefaultImportConfig()
		if err := api.ImportImagesFile(images, out, imp, c.pdfConfig()); err != nil {
			return fmt.Errorf("failed to import images: %w", err)
		}
		return nil
	})
}

// MergePDFs concatenates inputs in the given order
func (c *Codec) MergePDFs(ctx context.Context, inputs []string, out string) error {
	return c.run(ctx, "merge_pdfs", len(inputs), func(ctx context.Context) error {
		if len(inputs) == 0 {
			return ErrNoInput
		}
		for _, in := range inputs {
			if err := requireSource(in); err != nil {
				return err
			}
		}

		if err := api.MergeCreateFile(inputs, out, false, c.pdfConfig()); err != nil {
			return fmt.Errorf("failed to merge pdfs: %w", err)
		}
		return nil
	})
}

// CompressPDF rewrites in with deduplicated and compressed objects
func (c *Codec) CompressPDF(ctx context.Context, in, out string) error {
	return c.run(ctx, "compress_pdf", 1, func(ctx context.Context) error {
		if err := requireSource(in); err != nil {
			return err
		}

		if err := api.OptimizeFile(in, out, c.pdfConfig()); err != nil {
			return fmt.Errorf("failed to optimize pdf: %w", err)
		}
		return nil
	})
}

// Watermark stamps text, centered and semi-transparent, on every page.
// Applying it twice stacks two stamps.
func (c *Codec) Watermark(ctx context.Context, in, text, out string) error {
	return c.run(ctx, "watermark_pdf", 1, func(ctx context.Context) error {
		if err := requireSource(in); err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("watermark text: %w", ErrEmptyParameter)
		}

		if err := api.AddTextWatermarksFile(in, out, nil, true, text, c.watermarkDesc(), c.pdfConfig()); err != nil {
			return fmt.Errorf("failed to watermark pdf: %w", err)
		}
		return nil
	})
}

func (c *Codec) watermarkDesc() string {
	wm := c.config.Watermark
	return fmt.Sprintf(
		"fontname:%s, points:%d, scalefactor:1 abs, position:c, rotation:0, opacity:%.2f, fillcolor:%s",
		wm.FontName, wm.Points, wm.Opacity, wm.Color,
	)
}

// Protect encrypts in with password as both user and owner password
func (c *Codec) Protect(ctx context.Context, in, password, out string) error {
	return c.run(ctx, "protect_pdf", 1, func(ctx context.Context) error {
		if err := requireSource(in); err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("password: %w", ErrEmptyParameter)
		}

		conf := model.NewAESConfiguration(password, password, c.config.KeyLength)
		conf.ValidationMode = model.ValidationRelaxed
		if err := api.EncryptFile(in, out, conf); err != nil {
			return fmt.Errorf("failed to encrypt pdf: %w", err)
		}
		return nil
	})
}
