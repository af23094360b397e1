package model

import "time"

// ActorType classifies who drove an interaction.
type ActorType string

const (
	ActorPlayer     ActorType = "player"
	ActorAutomation ActorType = "automation"
	ActorUnknown    ActorType = "unknown"
)

// Unattributed storage kind used when no interaction context is live.
const StorageUnattributed = "unattributed"

// InteractionContext records the container interaction an actor is currently inside.
type InteractionContext struct {
	StorageKind string    `json:"storage_kind"`
	StorageID   string    `json:"storage_id"`
	ActorType   ActorType `json:"actor_type"`
	TraceID     string    `json:"trace_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// SuppressionRecord marks a movement already reported by a specific hook.
type SuppressionRecord struct {
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}
