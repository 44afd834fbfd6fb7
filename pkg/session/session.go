package session

import (
	"fmt"
	"time"
)

// Operation identifies a document transformation selected from the menu.
// The string values double as the menu callback data.
type Operation string

const (
	OpNone                Operation = ""
	OpImageToPDF          Operation = "image_to_pdf"
	OpMergePDFs           Operation = "merge_pdfs"
	OpCompressPDF         Operation = "compress_pdf"
	OpConvertPresentation Operation = "ppt_to_pdf"
	OpWatermark           Operation = "watermark_pdf"
	OpProtect             Operation = "protect_pdf"
)

// Operations lists every selectable operation in menu order.
var Operations = []Operation{
	OpImageToPDF,
	OpMergePDFs,
	OpCompressPDF,
	OpConvertPresentation,
	OpWatermark,
	OpProtect,
}

// ParseOperation converts a menu identifier into an Operation
func ParseOperation(id string) (Operation, error) {
	op := Operation(id)
	if !op.Valid() {
		return OpNone, fmt.Errorf("unknown operation: %q", id)
	}
	return op, nil
}

// Valid reports whether op is one of the selectable operations
func (op Operation) Valid() bool {
	for _, known := range Operations {
		if op == known {
			return true
		}
	}
	return false
}

// Batch reports whether op collects several files until a finish signal
func (op Operation) Batch() bool {
	return op == OpImageToPDF || op == OpMergePDFs
}

// Parameterized reports whether op waits for a text parameter after the upload
func (op Operation) Parameterized() bool {
	return op == OpWatermark || op == OpProtect
}

// Immediate reports whether op processes the first accepted upload right away
func (op Operation) Immediate() bool {
	return op == OpCompressPDF || op == OpConvertPresentation
}

func (op Operation) String() string {
	if op == OpNone {
		return "none"
	}
	return string(op)
}

// Session is the state of one conversation
type Session struct {
	ConversationID string
	Operation      Operation
	PendingFiles   []string
	SingleFile     string
	UpdatedAt      time.Time
}

// Files returns every file reference held by the session, in buffer order
func (s Session) Files() []string {
	files := make([]string, 0, len(s.PendingFiles)+1)
	files = append(files, s.PendingFiles...)
	if s.SingleFile != "" {
		files = append(files, s.SingleFile)
	}
	return files
}

func (s Session) clone() Session {
	c := s
	if s.PendingFiles != nil {
		c.PendingFiles = append([]string(nil), s.PendingFiles...)
	}
	return c
}
