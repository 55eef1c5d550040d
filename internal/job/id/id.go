// Package id provides unique identifier generation for render jobs.
package id

import (
	"github.com/google/uuid"
)

// Prefix starts every generated ID.
const Prefix = "timer-"

// Generate creates a new unique job ID. The UUIDv7 body sorts by creation time.
// Example: timer-019a1c2e-5b7f-7c3d-9a10-4b2f6e8d1c55
func Generate() string {
	// NewV7 only fails when the random source does.
	return Prefix + uuid.Must(uuid.NewV7()).String()
}
