package model

import "time"

// Grant binds a command token to one actor until expiry or revocation.
type Grant struct {
	TokenID      string    `json:"token_id"`
	BoundActorID string    `json:"bound_actor_id"`
	BoundAt      time.Time `json:"bound_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the grant is no longer usable at now.
func (g *Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// Revocation remembers a token id revoked for misuse until its day ends.
type Revocation struct {
	TokenID   string    `json:"token_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GrantState is the durable snapshot persisted by grant repositories.
type GrantState struct {
	Grants  []Grant      `json:"grants"`
	Revoked []Revocation `json:"revoked"`
}

// IssuedToken is returned to the remote authority on issuance.
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Day       string    `json:"day"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MisuseEvent is emitted when a token is applied by an actor other than its binder.
type MisuseEvent struct {
	TokenID       string    `json:"token_id"`
	Day           string    `json:"day"`
	ServerID      string    `json:"server_id"`
	OwnerActorID  string    `json:"owner_actor_id"`
	OffenderActor string    `json:"offender_actor_id"`
	DetectedAt    time.Time `json:"detected_at"`
}
