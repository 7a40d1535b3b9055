package tool

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateUUIDV7 returns a time-ordered id, so sorting by id follows creation order.
func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewTraceID returns a UUIDv7 as 32 hex digits, the width of an otel trace id.
func NewTraceID() string {
	id := uuid.Must(uuid.NewV7())
	return hex.EncodeToString(id[:])
}
