package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/pdfbot/pkg/session"
)

// UploadKind is the kind of artifact declared by the transport
type UploadKind string

const (
	KindImage    UploadKind = "image"
	KindDocument UploadKind = "document"
)

// Transformer runs the document transforms. Each call writes its result to
// out, which the dispatcher allocates.
type Transformer interface {
	ImagesToPDF(ctx context.Context, images []string, out string) error
	MergePDFs(ctx context.Context, inputs []string, out string) error
	CompressPDF(ctx context.Context, in, out string) error
	ConvertPresentation(ctx context.Context, in, out string) error
	Watermark(ctx context.Context, in, text, out string) error
	Protect(ctx context.Context, in, password, out string) error
}

const (
	msgWelcome          = "👋 Welcome to PDF Bot!\n\nChoose a task below:"
	msgChooseFirst      = "⚠️ Please choose a task first using /start"
	msgUnknownOperation = "⚠️ Unknown task. Please choose one from the menu."
	msgTooLarge         = "⚠️ File too large. Maximum allowed: %s."
	msgDownloadFailed   = "❌ Failed to download the file. Please try again."
	msgDone             = "✅ Done! Type /start to select another task."
	msgCancelled        = "🛑 Task cancelled. Type /start to select another task."
	msgNothingToCancel  = "ℹ️ Nothing to cancel. Type /start to choose a task."
	msgFinishNotBatch   = "ℹ️ /done is only needed for Image → PDF and Merge PDFs."
	msgFileFailed       = "❌ Error while processing file. Please try again."
	msgBatchFailed      = "❌ Error during merging or conversion."
	msgTextFailed       = "❌ Error while applying text operation."
	msgUnexpected       = "❌ Something went wrong. Please try again."
)

// MenuEntry is one selectable operation
type MenuEntry struct {
	ID    string
	Label string
}

// handler describes how one operation consumes its inputs
type handler struct {
	label       string
	prompt      string
	accepts     UploadKind
	wrongKind   string
	progress    string
	added       string // batch only, formatted with the buffer length
	empty       string // batch only
	paramPrompt string // parameterized only
	paramEmpty  string // parameterized only
	failure     string // overrides the generic failure text
	failureKind Kind
	output      string
	run         func(ctx context.Context, t Transformer, inputs []string, param, out string) error
}

var handlers = map[session.Operation]handler{
	session.OpImageToPDF: {
		label:       "🖼 Image → PDF",
		prompt:      "📸 Send me 1 or more images. Type /done when finished.",
		accepts:     KindImage,
		wrongKind:   "❌ You uploaded a PDF/file. Please send only images in this mode.",
		progress:    "⏳ Converting images → PDF...",
		added:       "🖼 Added image (%d). Type /done when finished.",
		empty:       "⚠️ No images uploaded.",
		failureKind: KindProcessing,
		output:      "images.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, _, out string) error {
			return t.ImagesToPDF(ctx, inputs, out)
		},
	},
	session.OpMergePDFs: {
		label:       "📂 Merge PDFs",
		prompt:      "📂 Send me multiple PDFs. Type /done when finished.",
		accepts:     KindDocument,
		wrongKind:   "❌ You sent an image. Please send PDF files in this mode.",
		progress:    "⏳ Merging PDFs...",
		added:       "📂 Added PDF. Total: %d\nType /done when ready.",
		empty:       "⚠️ No PDFs uploaded.",
		failureKind: KindProcessing,
		output:      "merged.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, _, out string) error {
			return t.MergePDFs(ctx, inputs, out)
		},
	},
	session.OpCompressPDF: {
		label:       "🗜 Compress PDF",
		prompt:      "🗜 Send me a PDF to compress.",
		accepts:     KindDocument,
		wrongKind:   "❌ Please send the PDF as a file, not as a photo.",
		progress:    "⏳ Compressing PDF...",
		failureKind: KindProcessing,
		output:      "compressed.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, _, out string) error {
			return t.CompressPDF(ctx, inputs[0], out)
		},
	},
	session.OpConvertPresentation: {
		label:       "📊 PPT → PDF",
		prompt:      "📊 Send me a PowerPoint (.pptx) file.",
		accepts:     KindDocument,
		wrongKind:   "❌ Please send the presentation as a file, not as a photo.",
		progress:    "⏳ Converting PPT → PDF...",
		failure:     "❌ PPT → PDF conversion failed.",
		failureKind: KindConversion,
		output:      "presentation.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, _, out string) error {
			return t.ConvertPresentation(ctx, inputs[0], out)
		},
	},
	session.OpWatermark: {
		label:       "💧 Watermark PDF",
		prompt:      "💧 Send me a PDF for watermarking.",
		accepts:     KindDocument,
		wrongKind:   "❌ Please send the PDF as a file, not as a photo.",
		progress:    "⏳ Adding watermark...",
		paramPrompt: "✍️ Type the watermark text.",
		paramEmpty:  "⚠️ The watermark text cannot be empty. Type the watermark text.",
		failureKind: KindProcessing,
		output:      "watermarked.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, text, out string) error {
			return t.Watermark(ctx, inputs[0], strings.TrimSpace(text), out)
		},
	},
	session.OpProtect: {
		label:       "🔒 Protect PDF",
		prompt:      "🔒 Send me a PDF to protect.",
		accepts:     KindDocument,
		wrongKind:   "❌ Please send the PDF as a file, not as a photo.",
		progress:    "⏳ Protecting PDF...",
		paramPrompt: "🔑 Type the password to set.",
		paramEmpty:  "⚠️ The password cannot be empty. Type the password to set.",
		failureKind: KindProcessing,
		output:      "protected.pdf",
		run: func(ctx context.Context, t Transformer, inputs []string, password, out string) error {
			return t.Protect(ctx, inputs[0], password, out)
		},
	},
}

func (h handler) addedText(n int) string {
	return fmt.Sprintf(h.added, n)
}

func (h handler) failureText(fallback string) string {
	if h.failure != "" {
		return h.failure
	}
	return fallback
}

// Menu returns the selectable operations in display order
func Menu() []MenuEntry {
	entries := make([]MenuEntry, 0, len(session.Operations))
	for _, op := range session.Operations {
		entries = append(entries, MenuEntry{ID: string(op), Label: handlers[op].label})
	}
	return entries
}

// Welcome returns the greeting shown with the menu
func Welcome() string {
	return msgWelcome
}
