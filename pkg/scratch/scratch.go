// Package scratch manages the temporary files of every conversation.
//
// Each conversation owns one directory under the scratch root. Uploads are
// persisted there with a size ceiling, outputs are allocated there, and every
// removal is log-and-ignore: a failed delete never reaches the user.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxBytes is the upload ceiling applied when none is configured
	DefaultMaxBytes int64 = 50 * 1024 * 1024

	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	idLength   = 12
)

var (
	// ErrTooLarge is returned when an upload exceeds the ceiling
	ErrTooLarge = errors.New("file exceeds size limit")

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

// Store persists temporary files below a root directory
type Store struct {
	root     string
	maxBytes int64
	logger   zerolog.Logger
	onRemove func(ok bool)
}

// New creates a scratch store rooted at root
func New(root string, maxBytes int64, logger zerolog.Logger) (*Store, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "pdfbot")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}

	return &Store{
		root:     root,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "scratch").Logger(),
	}, nil
}

// Root returns the scratch root directory
func (s *Store) Root() string {
	return s.root
}

// MaxBytes returns the upload ceiling
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// MaxSizeHuman returns the upload ceiling formatted for users, e.g. "50 MiB"
func (s *Store) MaxSizeHuman() string {
	return humanize.IBytes(uint64(s.maxBytes))
}

// Exceeds reports whether a declared size is over the ceiling
func (s *Store) Exceeds(size int64) bool {
	return size > s.maxBytes
}

// OnRemove registers a callback invoked once per removal attempt
func (s *Store) OnRemove(fn func(ok bool)) {
	s.onRemove = fn
}

// Dir returns the directory of a conversation, creating it
func (s *Store) Dir(conversationID string) (string, error) {
	dir := filepath.Join(s.root, dirName(conversationID))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create conversation directory: %w", err)
	}
	return dir, nil
}

// Save copies r into a new file of the conversation directory. The stored
// name keeps the extension of name. Reading more than the ceiling aborts
// the copy, removes the file and returns ErrTooLarge.
func (s *Store) Save(conversationID, name string, r io.Reader) (string, error) {
	path, err := s.newPath(conversationID, baseName(name))
	if err != nil {
		return "", err
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, io.LimitReader(r, s.maxBytes+1))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		s.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if written > s.maxBytes {
		s.Remove(path)
		return "", fmt.Errorf("%w: more than %s", ErrTooLarge, s.MaxSizeHuman())
	}

	s.logger.Debug().
		Str("conversation", conversationID).
		Str("path", path).
		Str("size", humanize.IBytes(uint64(written))).
		Msg("File stored")

	return path, nil
}

// OutputPath allocates a fresh path for a transform output with extension ext
func (s *Store) OutputPath(conversationID, ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return s.newPath(conversationID, "output"+ext)
}

func (s *Store) newPath(conversationID, name string) (string, error) {
	dir, err := s.Dir(conversationID)
	if err != nil {
		return "", err
	}
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate file id: %w", err)
	}
	return filepath.Join(dir, id+"_"+name), nil
}

// Remove deletes each path. Failures are logged and counted, never returned.
// Missing files count as removed.
func (s *Store) Remove(paths ...string) int {
	failed := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		err := os.Remove(path)
		ok := err == nil || os.IsNotExist(err)
		if !ok {
			failed++
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove temporary file")
		}
		if s.onRemove != nil {
			s.onRemove(ok)
		}
	}
	return failed
}

// Residual lists the files still present in the conversation directory
func (s *Store) Residual(conversationID string) ([]string, error) {
	dir := filepath.Join(s.root, dirName(conversationID))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversation directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// dirName turns a conversation id into a single safe path element
func dirName(conversationID string) string {
	name := unsafeChars.ReplaceAllString(conversationID, "_")
	name = strings.Trim(name, ".")
	if name == "" {
		name = "_"
	}
	return name
}

// baseName keeps only a safe final path element of a user supplied name
func baseName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		name = "upload"
	}
	if len(name) > 96 {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = name[:96-len(ext)] + ext
	}
	return name
}
