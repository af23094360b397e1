package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lattice-agent/internal/model"
)

// FileGrantRepository stores grant state as a JSON document.
// Writes go to a temp file that is renamed over the original.
type FileGrantRepository struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// NewFileGrantRepository creates a repository backed by path.
func NewFileGrantRepository(path string, logger *slog.Logger) (*FileGrantRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create grant dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileGrantRepository{
		path:   path,
		now:    time.Now,
		logger: logger.With("component", "FileGrantRepository"),
	}, nil
}

// Load reads the grant file. A missing or unreadable file loads as empty
// state so that losing it never grants access.
func (r *FileGrantRepository) Load(ctx context.Context) (model.GrantState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.GrantState{}, nil
	}
	if err != nil {
		return model.GrantState{}, fmt.Errorf("failed to read grant file: %w", err)
	}

	var state model.GrantState
	if err := json.Unmarshal(raw, &state); err != nil {
		r.logger.Warn("grant file is corrupt, starting empty", "path", r.path, "error", err)
		return model.GrantState{}, nil
	}
	return pruneState(state, r.now()), nil
}

// Save writes state atomically.
func (r *FileGrantRepository) Save(ctx context.Context, state model.GrantState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode grants: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write grant file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace grant file: %w", err)
	}
	return nil
}

// Close is a no-op for file repositories.
func (r *FileGrantRepository) Close() error {
	return nil
}

var _ GrantRepository = (*FileGrantRepository)(nil)
