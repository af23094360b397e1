package repository

import (
	"context"
	"time"

	"lattice-agent/internal/model"
)

// GrantRepository persists token grants and revocations.
type GrantRepository interface {
	// Load returns the stored state with expired entries removed.
	// A repository that has never been written loads as empty state.
	Load(ctx context.Context) (model.GrantState, error)

	// Save replaces the stored state.
	Save(ctx context.Context, state model.GrantState) error

	// Close releases the underlying storage.
	Close() error
}

// pruneState drops grants and revocations that have expired at now.
func pruneState(state model.GrantState, now time.Time) model.GrantState {
	out := model.GrantState{
		Grants:  make([]model.Grant, 0, len(state.Grants)),
		Revoked: make([]model.Revocation, 0, len(state.Revoked)),
	}
	for _, g := range state.Grants {
		if !g.Expired(now) {
			out.Grants = append(out.Grants, g)
		}
	}
	for _, r := range state.Revoked {
		if now.Before(r.ExpiresAt) {
			out.Revoked = append(out.Revoked, r)
		}
	}
	return out
}
