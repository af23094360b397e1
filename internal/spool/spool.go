// Package spool persists compressed envelopes that failed transmission.
package spool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lattice-agent/pkg/uid"
)

// ErrNotFound is returned when deleting an entry that does not exist.
var ErrNotFound = errors.New("spool entry not found")

// Entry is one persisted, not yet delivered batch.
type Entry struct {
	ID        string
	Encoding  string
	Data      []byte
	CreatedAt time.Time
}

// Spool is a durable oldest-first queue of undelivered batches.
type Spool interface {
	// Put persists data and returns the new entry id.
	Put(ctx context.Context, encoding string, data []byte) (string, error)

	// Oldest returns up to n entries, oldest first.
	Oldest(ctx context.Context, n int) ([]Entry, error)

	// Delete removes an entry after successful resend.
	Delete(ctx context.Context, id string) error

	// Count returns the number of persisted entries.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// newID names an entry by timestamp plus a random suffix so lexical order
// matches creation order.
func newID(now time.Time) (string, error) {
	suffix, err := uid.Hex(4)
	if err != nil {
		return "", fmt.Errorf("failed to generate spool id: %w", err)
	}
	return fmt.Sprintf("%020d-%s", now.UnixNano(), suffix), nil
}
