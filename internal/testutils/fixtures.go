package testutils

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"chathistory/internal/codec"
	"chathistory/internal/database"
	"chathistory/pkg/historytypes"
)

// NewRecord builds a record with one prompt turn per prompt. The transcript alternates
// "> prompt" user entries with "reply: prompt" assistant entries.
func NewRecord(id string, prompts ...string) *historytypes.SessionRecord {
	record := &historytypes.SessionRecord{
		ID:         id,
		History:    make([]historytypes.Turn, 0, len(prompts)),
		Transcript: make([]string, 0, 2*len(prompts)),
	}
	for _, prompt := range prompts {
		record.History = append(record.History, historytypes.NewPromptTurn(prompt))
		record.Transcript = append(record.Transcript, "> "+prompt, "reply: "+prompt)
	}
	return record
}

// SeedEntry is one entry to preload into a substrate.
type SeedEntry struct {
	Path   string
	Record *historytypes.SessionRecord
	// Raw, when set, is stored verbatim instead of the wrapped Record.
	Raw json.RawMessage
}

// EntryCount returns the number of entries, live and backup, held by db.
func EntryCount(t *testing.T, db historytypes.Substrate) int {
	t.Helper()

	entries, err := db.Enumerate(context.Background())
	require.NoError(t, err)
	return len(entries)
}

// SeedMemoryDatabase returns an in-memory substrate holding entries in the given order.
func SeedMemoryDatabase(t *testing.T, entries ...SeedEntry) *database.MemoryDatabase {
	t.Helper()

	db := database.NewMemoryDatabase()
	ctx := context.Background()
	for _, entry := range entries {
		value := entry.Raw
		if value == nil {
			wrapped, err := codec.Wrap(entry.Record)
			require.NoError(t, err)
			value = wrapped
		}
		require.NoError(t, db.Set(ctx, entry.Path, value))
	}
	return db
}
