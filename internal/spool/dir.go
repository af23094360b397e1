package spool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// file extensions per content encoding
var extensions = map[string]string{
	"gzip": ".json.gz",
	"zstd": ".json.zst",
}

// DirSpool stores each entry as one file in a directory.
type DirSpool struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewDirSpool creates dir if needed and returns a spool rooted there.
func NewDirSpool(dir string, logger *slog.Logger) (*DirSpool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &DirSpool{
		dir:    dir,
		now:    time.Now,
		logger: logger.With("component", "DirSpool"),
	}
	s.removeTemps()
	return s, nil
}

// Put writes data to a new file, renaming into place once complete.
func (s *DirSpool) Put(ctx context.Context, encoding string, data []byte) (string, error) {
	ext, ok := extensions[encoding]
	if !ok {
		return "", fmt.Errorf("unsupported spool encoding %q", encoding)
	}
	id, err := newID(s.now())
	if err != nil {
		return "", err
	}

	final := filepath.Join(s.dir, id+ext)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write spool entry: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to commit spool entry: %w", err)
	}
	return id, nil
}

// Oldest reads up to n entries in name order.
func (s *DirSpool) Oldest(ctx context.Context, n int) ([]Entry, error) {
	names, err := s.list()
	if err != nil {
		return nil, err
	}
	if len(names) > n {
		names = names[:n]
	}

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return entries, fmt.Errorf("failed to read spool entry %s: %w", name, err)
		}

		id, encoding := parseName(name)
		entries = append(entries, Entry{
			ID:        id,
			Encoding:  encoding,
			Data:      data,
			CreatedAt: createdAt(id),
		})
	}
	return entries, nil
}

// Delete removes the entry file.
func (s *DirSpool) Delete(ctx context.Context, id string) error {
	for _, ext := range extensions {
		err := os.Remove(filepath.Join(s.dir, id+ext))
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete spool entry %s: %w", id, err)
		}
	}
	return ErrNotFound
}

// Count returns the number of committed entries.
func (s *DirSpool) Count(ctx context.Context) (int, error) {
	names, err := s.list()
	return len(names), err
}

// Close is a no-op for directory spools.
func (s *DirSpool) Close() error {
	return nil
}

func (s *DirSpool) list() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list spool dir: %w", err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		if _, enc := parseName(de.Name()); enc != "" {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// removeTemps clears partial writes left by a crash.
func (s *DirSpool) removeTemps() {
	matches, _ := filepath.Glob(filepath.Join(s.dir, "*.tmp"))
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			s.logger.Warn("removed partial spool entry", "file", filepath.Base(m))
		}
	}
}

func parseName(name string) (id, encoding string) {
	for enc, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext), enc
		}
	}
	return name, ""
}

func createdAt(id string) time.Time {
	var nanos int64
	if _, err := fmt.Sscanf(id, "%d-", &nanos); err != nil {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
