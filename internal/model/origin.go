package model

import "time"

// OriginTag is provenance metadata written once into an object's persisted data.
type OriginTag struct {
	OriginID   string    `json:"origin_id"`
	OriginType string    `json:"origin_type"`
	OriginRef  string    `json:"origin_ref"`
	OriginTime time.Time `json:"origin_time"`
}
