// Package identity resolves the stable server id stamped on every envelope.
package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"lattice-agent/pkg/uid"
)

// FileName is the id file kept in the data directory.
const FileName = "server-id"

// ErrNotAvailable means a step had nothing to offer and the next should run.
var ErrNotAvailable = errors.New("server id not available")

// Source names the step that produced the id.
type Source string

const (
	SourceConfig    Source = "config"
	SourceFile      Source = "file"
	SourceGenerated Source = "generated"
)

// Step produces a server id or ErrNotAvailable.
type Step func() (string, error)

// Resolve runs the fallback chain: configured id, then the id file in
// dataDir, then a generated UUID persisted to that file.
func Resolve(configured, dataDir string) (string, Source, error) {
	path := filepath.Join(dataDir, FileName)
	chain := []struct {
		source Source
		step   Step
	}{
		{SourceConfig, FromValue(configured)},
		{SourceFile, FromFile(path)},
		{SourceGenerated, Generate(path)},
	}

	for _, c := range chain {
		id, err := c.step()
		if errors.Is(err, ErrNotAvailable) {
			continue
		}
		if err != nil {
			return "", "", fmt.Errorf("resolve server id from %s: %w", c.source, err)
		}
		return id, c.source, nil
	}
	return "", "", ErrNotAvailable
}

// FromValue returns v when it is non-blank.
func FromValue(v string) Step {
	return func() (string, error) {
		if v = strings.TrimSpace(v); v == "" {
			return "", ErrNotAvailable
		}
		return v, nil
	}
}

// FromFile reads the id stored at path. A missing or empty file is
// ErrNotAvailable; other read errors are returned as-is.
func FromFile(path string) Step {
	return func() (string, error) {
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotAvailable
		}
		if err != nil {
			return "", err
		}
		id := strings.TrimSpace(string(raw))
		if id == "" {
			return "", ErrNotAvailable
		}
		return id, nil
	}
}

// Generate creates a new UUID and persists it to path.
func Generate(path string) Step {
	return func() (string, error) {
		id := uid.New()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
			return "", fmt.Errorf("write id file: %w", err)
		}
		return id, nil
	}
}
