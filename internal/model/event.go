package model

import "time"

// EventType is the kind of movement an EventRecord describes.
type EventType string

const (
	EventAcquire  EventType = "ACQUIRE"
	EventTransfer EventType = "TRANSFER"
)

// SchemaVersion is the envelope version understood by the ingest endpoint.
const SchemaVersion = "v2"

// EventRecord is the canonical wire entity shipped to the ingest endpoint.
// It is immutable once built by the event factory.
type EventRecord struct {
	EventID     string    `json:"event_id"`
	EventTime   time.Time `json:"event_time"`
	ServerID    string    `json:"server_id"`
	EventType   EventType `json:"event_type"`
	ActorID     string    `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	TypeID      string    `json:"type_id"`
	Count       int       `json:"count"`
	ContentHash string    `json:"content_hash"`
	OriginID    string    `json:"origin_id"`
	OriginType  string    `json:"origin_type"`
	OriginRef   string    `json:"origin_ref"`
	SourceType  string    `json:"source_type"`
	SourceRef   string    `json:"source_ref"`
	StorageKind string    `json:"storage_kind"`
	StorageID   string    `json:"storage_id"`
	ActorType   ActorType `json:"actor_type"`
	TraceID     string    `json:"trace_id"`
	Fingerprint string    `json:"fingerprint"`
	Location    string    `json:"location"`
}

// Envelope wraps a batch of events for a single transmission.
type Envelope struct {
	SchemaVersion string         `json:"schema_version"`
	ServerID      string         `json:"server_id"`
	Events        []*EventRecord `json:"events"`
}

// NewEnvelope builds a current-version envelope around events.
func NewEnvelope(serverID string, events []*EventRecord) *Envelope {
	return &Envelope{
		SchemaVersion: SchemaVersion,
		ServerID:      serverID,
		Events:        events,
	}
}
