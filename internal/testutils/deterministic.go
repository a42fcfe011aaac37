// Package testutils provides deterministic generators and fixtures for chathistory tests.
// These utilities ensure consistent test output while keeping production formats.
package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// Thread-safe counter for deterministic ID generation
	idCounter uint64
	idMutex   sync.Mutex
)

// BaseTime is the first instant returned by deterministic clocks.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// GenerateUUID generates a UUID that is deterministic in test mode but random in production.
// In test mode, returns UUIDs in format: 00000001-0000-4000-8000-000000000001,
// 00000002-0000-4000-8000-000000000002, etc.
func GenerateUUID(testMode bool) string {
	if testMode {
		return DeterministicUUID()
	}
	return uuid.New().String()
}

// DeterministicUUID generates the next deterministic UUID, keeping the v4 layout.
func DeterministicUUID() string {
	idMutex.Lock()
	defer idMutex.Unlock()

	idCounter++
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", idCounter, idCounter)
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// SteppingClock returns a clock starting at BaseTime that advances by step on every call.
func SteppingClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := BaseTime.Add(-step)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

// ResetTestCounters resets the deterministic counters for testing.
// This should only be called from test code to ensure consistent test runs.
func ResetTestCounters() {
	idMutex.Lock()
	defer idMutex.Unlock()
	idCounter = 0
}
