// Package token issues and enforces day-scoped, player-bound command tokens.
//
// A token is issued unbound by the remote authority, bound to the first
// player who applies it, and revoked for everyone if a second player tries
// to apply it on the same day. Grants survive restarts through a
// repository.GrantRepository.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lattice-agent/internal/model"
	"lattice-agent/internal/repository"
)

// Notifier receives misuse events. Notify must not block.
type Notifier interface {
	Notify(ev model.MisuseEvent)
}

// Config holds manager settings.
type Config struct {
	Enabled   bool
	Secret    string
	Namespace string
	ServerID  string
	Location  *time.Location
	Now       func() time.Time
	Logger    *slog.Logger
}

// Manager validates tokens and tracks grants.
//
// Lock order is token id before actor id. The grant maps are sync.Maps so
// reads from the command path never wait on another actor's apply.
type Manager struct {
	cfg      Config
	secret   []byte
	repo     repository.GrantRepository
	notifier Notifier
	logger   *slog.Logger

	locks   *keyedMutex
	grants  sync.Map // actor id -> model.Grant
	byToken sync.Map // token id -> actor id
	revoked sync.Map // token id -> model.Revocation

	// stale counts grants dropped on lookup and not yet persisted.
	stale  atomic.Int64
	saveMu sync.Mutex
}

// NewManager creates a manager. Call Load to restore persisted grants.
func NewManager(cfg Config, repo repository.GrantRepository, notifier Notifier) *Manager {
	if cfg.Namespace == "" {
		cfg.Namespace = "lattice"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		secret:   []byte(cfg.Secret),
		repo:     repo,
		notifier: notifier,
		logger:   cfg.Logger.With("component", "TokenManager"),
		locks:    newKeyedMutex(),
	}
}

// Enabled reports whether token gating is switched on.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// CanIssue reports whether issuance prerequisites are met.
func (m *Manager) CanIssue() bool {
	return m.cfg.Enabled && len(m.secret) > 0
}

// Load restores persisted state, dropping expired entries.
func (m *Manager) Load(ctx context.Context) error {
	state, err := m.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load grants: %w", err)
	}

	now := m.cfg.Now()
	loaded := 0
	for _, g := range state.Grants {
		if g.Expired(now) {
			continue
		}
		m.grants.Store(g.BoundActorID, g)
		m.byToken.Store(g.TokenID, g.BoundActorID)
		loaded++
	}
	revoked := 0
	for _, r := range state.Revoked {
		if now.Before(r.ExpiresAt) {
			m.revoked.Store(r.TokenID, r)
			revoked++
		}
	}
	m.logger.Info("grants loaded", "grants", loaded, "revoked", revoked)
	return nil
}

// Today returns the current token day.
func (m *Manager) Today() string {
	return DayOf(m.cfg.Now(), m.cfg.Location)
}

// Issue creates an unbound token for today.
func (m *Manager) Issue() (model.IssuedToken, error) {
	return m.IssueForDay(m.Today())
}

// IssueForDay creates an unbound token for day (yyyyMMdd). No grant is
// created until a player applies it.
func (m *Manager) IssueForDay(day string) (model.IssuedToken, error) {
	if !m.CanIssue() {
		return model.IssuedToken{}, ErrNotConfigured
	}
	dayStart, err := time.ParseInLocation(DayLayout, day, m.cfg.Location)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("invalid day %q: %w", day, err)
	}

	id, err := NewID()
	if err != nil {
		return model.IssuedToken{}, err
	}
	sig := Sign(m.secret, m.cfg.Namespace, day, id)

	return model.IssuedToken{
		Token:     Compose(m.cfg.Namespace, day, id, sig),
		TokenID:   id,
		Day:       day,
		ExpiresAt: NextMidnight(dayStart, m.cfg.Location),
	}, nil
}

// Validate checks a token string's shape, signature and day without
// touching grants.
func (m *Manager) Validate(raw string) (Parsed, error) {
	p, err := Parse(raw, m.cfg.Namespace)
	if err != nil {
		return Parsed{}, err
	}
	if len(m.secret) == 0 || !Verify(m.secret, p) {
		return Parsed{}, ErrBadSignature
	}
	if p.Day != m.Today() {
		return Parsed{}, ErrExpired
	}
	return p, nil
}

// Apply binds raw to actorID. Re-applying one's own token succeeds. Applying
// a token bound to someone else revokes it for everyone and returns
// ErrRevokedMisuse.
func (m *Manager) Apply(ctx context.Context, raw, actorID string) (model.Grant, error) {
	p, err := m.Validate(raw)
	if err != nil {
		return model.Grant{}, err
	}

	unlockToken := m.locks.Lock("token:" + p.ID)
	defer unlockToken()

	if _, ok := m.revoked.Load(p.ID); ok {
		return model.Grant{}, ErrRevokedMisuse
	}

	now := m.cfg.Now()
	if owner, ok := m.byToken.Load(p.ID); ok {
		ownerID := owner.(string)
		if ownerID == actorID {
			if g, ok := m.liveGrant(actorID, now); ok && g.TokenID == p.ID {
				return g, nil
			}
		} else {
			m.revokeMisuse(ctx, p, ownerID, actorID, now)
			return model.Grant{}, ErrRevokedMisuse
		}
	}

	unlockActor := m.locks.Lock("actor:" + actorID)
	defer unlockActor()

	if prev, ok := m.grants.Load(actorID); ok {
		m.byToken.Delete(prev.(model.Grant).TokenID)
	}
	g := model.Grant{
		TokenID:      p.ID,
		BoundActorID: actorID,
		BoundAt:      now,
		ExpiresAt:    NextMidnight(now, m.cfg.Location),
	}
	m.grants.Store(actorID, g)
	m.byToken.Store(p.ID, actorID)
	m.persist(ctx)

	m.logger.Info("token bound", "token_id", p.ID, "actor_id", actorID, "expires_at", g.ExpiresAt)
	return g, nil
}

func (m *Manager) revokeMisuse(ctx context.Context, p Parsed, ownerID, offenderID string, now time.Time) {
	unlockOwner := m.locks.Lock("actor:" + ownerID)
	if g, ok := m.grants.Load(ownerID); ok && g.(model.Grant).TokenID == p.ID {
		m.grants.Delete(ownerID)
	}
	unlockOwner()

	m.byToken.Delete(p.ID)
	m.revoked.Store(p.ID, model.Revocation{
		TokenID:   p.ID,
		RevokedAt: now,
		ExpiresAt: NextMidnight(now, m.cfg.Location),
	})
	m.persist(ctx)

	m.logger.Warn("token misuse detected, grant revoked",
		"token_id", p.ID, "owner_actor_id", ownerID, "offender_actor_id", offenderID)

	if m.notifier != nil {
		m.notifier.Notify(model.MisuseEvent{
			TokenID:       p.ID,
			Day:           p.Day,
			ServerID:      m.cfg.ServerID,
			OwnerActorID:  ownerID,
			OffenderActor: offenderID,
			DetectedAt:    now.UTC(),
		})
	}
}

// CheckAccess returns nil when actorID holds a live grant, ErrNoGrant otherwise.
func (m *Manager) CheckAccess(actorID string) error {
	if _, ok := m.liveGrant(actorID, m.cfg.Now()); !ok {
		return ErrNoGrant
	}
	return nil
}

// Status returns actorID's live grant, if any.
func (m *Manager) Status(actorID string) (model.Grant, bool) {
	return m.liveGrant(actorID, m.cfg.Now())
}

// liveGrant returns the actor's grant, dropping it from memory when expired.
// It runs on the command path, so the store is left to the next Prune.
func (m *Manager) liveGrant(actorID string, now time.Time) (model.Grant, bool) {
	v, ok := m.grants.Load(actorID)
	if !ok {
		return model.Grant{}, false
	}
	g := v.(model.Grant)
	if !g.Expired(now) {
		return g, true
	}
	if m.grants.CompareAndDelete(actorID, g) {
		m.byToken.CompareAndDelete(g.TokenID, actorID)
		m.stale.Add(1)
	}
	return model.Grant{}, false
}

// Revoke removes the grant for tokenID on request of the authority and
// blocks the token for the rest of its day.
func (m *Manager) Revoke(ctx context.Context, tokenID string) bool {
	unlockToken := m.locks.Lock("token:" + tokenID)
	defer unlockToken()

	now := m.cfg.Now()
	found := false
	if owner, ok := m.byToken.LoadAndDelete(tokenID); ok {
		ownerID := owner.(string)
		unlockOwner := m.locks.Lock("actor:" + ownerID)
		if g, ok := m.grants.Load(ownerID); ok && g.(model.Grant).TokenID == tokenID {
			m.grants.Delete(ownerID)
			found = true
		}
		unlockOwner()
	}
	m.revoked.Store(tokenID, model.Revocation{
		TokenID:   tokenID,
		RevokedAt: now,
		ExpiresAt: NextMidnight(now, m.cfg.Location),
	})
	m.persist(ctx)

	m.logger.Info("token revoked", "token_id", tokenID, "had_grant", found)
	return found
}

// Grants returns all live grants sorted by actor id.
func (m *Manager) Grants() []model.Grant {
	now := m.cfg.Now()
	var out []model.Grant
	m.grants.Range(func(_, v any) bool {
		if g := v.(model.Grant); !g.Expired(now) {
			out = append(out, g)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].BoundActorID < out[j].BoundActorID })
	return out
}

// Prune removes expired grants and revocations and persists the result.
// Grants dropped on lookup since the last run are counted and persisted too.
func (m *Manager) Prune(ctx context.Context) int {
	now := m.cfg.Now()
	removed := int(m.stale.Swap(0))
	m.grants.Range(func(k, v any) bool {
		g := v.(model.Grant)
		if g.Expired(now) && m.grants.CompareAndDelete(k, g) {
			m.byToken.CompareAndDelete(g.TokenID, g.BoundActorID)
			removed++
		}
		return true
	})
	m.revoked.Range(func(k, v any) bool {
		if !now.Before(v.(model.Revocation).ExpiresAt) {
			m.revoked.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		m.persist(ctx)
	}
	return removed
}

// persist writes a fresh snapshot. The snapshot is taken under saveMu so
// the last writer always stores the newest state.
func (m *Manager) persist(ctx context.Context) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	state := model.GrantState{}
	m.grants.Range(func(_, v any) bool {
		state.Grants = append(state.Grants, v.(model.Grant))
		return true
	})
	m.revoked.Range(func(_, v any) bool {
		state.Revoked = append(state.Revoked, v.(model.Revocation))
		return true
	})

	if err := m.repo.Save(ctx, state); err != nil {
		m.logger.Error("failed to persist grants", "error", err)
	}
}
