package scratch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// Usage summarizes the scratch directory
type Usage struct {
	Files         int    `json:"files"`
	Conversations int    `json:"conversations"`
	Bytes         int64  `json:"bytes"`
	Human         string `json:"human"`
}

// Sweep removes files older than maxAge that are not in keep, then the
// conversation directories left empty. It returns the number of files removed.
func (s *Store) Sweep(maxAge time.Duration, keep map[string]bool) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read scratch directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())

		files, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to read conversation directory")
			continue
		}

		remaining := len(files)
		for _, f := range files {
			info, err := f.Info()
			if err != nil || f.IsDir() {
				continue
			}
			path := filepath.Join(dir, f.Name())
			if keep[path] {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if s.Remove(path) == 0 {
					removed++
					remaining--
				}
			}
		}

		if remaining == 0 {
			if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
				s.logger.Debug().Err(err).Str("dir", dir).Msg("Conversation directory not removed")
			}
		}
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Scratch sweep completed")
	}

	return removed, nil
}

// DiskUsage walks the scratch root and reports its size
func (s *Store) DiskUsage() (Usage, error) {
	var usage Usage

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != s.root {
				usage.Conversations++
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		usage.Files++
		usage.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("failed to walk scratch directory: %w", err)
	}

	usage.Human = humanize.IBytes(uint64(usage.Bytes))
	return usage, nil
}
