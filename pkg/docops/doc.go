// Package docops implements the document transforms of the bot.
//
// Every transform is single-shot: it reads its inputs, writes exactly one
// output file at the path chosen by the caller and returns an error
// otherwise. A failed transform may leave a partial output behind; the
// caller owns that path and removes it.
//
// PDF work is done with pdfcpu. Presentations are converted by a headless
// LibreOffice process started through a Runner.
//
// Usage:
//
//	codec, _ := docops.New(docops.DefaultConfig(), logger)
//	err := codec.MergePDFs(ctx, []string{"a.pdf", "b.pdf"}, "merged.pdf")
package docops
