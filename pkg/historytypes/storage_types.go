package historytypes

import (
	"context"
	"encoding/json"
)

// RawEntry is one stored key with its undecoded value.
type RawEntry struct {
	Key   string
	Value json.RawMessage
}

// Substrate is the ordered key/value engine underneath the history store.
// Values are JSON documents. Enumerate makes no ordering promise.
type Substrate interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Enumerate(ctx context.Context) ([]RawEntry, error)
	Close() error
}
