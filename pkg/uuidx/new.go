// Package uuidx generates the time-ordered identifiers used throughout
// waggle. Version 7 UUIDs sort by creation time, which keeps envelope
// ids aligned with history order and makes log output easy to follow.
package uuidx

import "github.com/google/uuid"

// New returns a fresh version 7 UUID. Generation only fails when the
// platform's entropy source is broken, in which case New panics.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh version 7 UUID in canonical string form.
func NewString() string {
	return New().String()
}
