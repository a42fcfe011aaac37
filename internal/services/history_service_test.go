package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chathistory/internal/database"
	"chathistory/internal/output"
	"chathistory/internal/store"
	"chathistory/internal/testutils"
	"chathistory/pkg/historytypes"
)

const fullID = "f18c31da-422d-43b9-b7b1-bb01fb7c772b"

func newHistoryService(t *testing.T, entries ...testutils.SeedEntry) (*HistoryService, *database.MemoryDatabase) {
	t.Helper()
	db := testutils.SeedMemoryDatabase(t, entries...)
	h := NewHistoryService(store.New(db, store.WithClock(testutils.FixedClock(testutils.BaseTime))))
	require.NoError(t, h.Initialize())
	return h, db
}

func summaryPaths(summaries []historytypes.ConversationSummary) []string {
	paths := make([]string, 0, len(summaries))
	for _, s := range summaries {
		paths = append(paths, s.Path)
	}
	return paths
}

func TestHistoryService_ResolvePartialIdentifier(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/home/me/other", Record: testutils.NewRecord("a1b2c3d4-0000-4000-8000-000000000000", "other")},
		testutils.SeedEntry{Path: "/home/me/project", Record: testutils.NewRecord(fullID, "hello")},
	)
	ctx := context.Background()

	for _, fragment := range []string{fullID, "f18c31da", "f18c", "f"} {
		t.Run(fragment, func(t *testing.T) {
			match, err := h.Resolve(ctx, fragment)
			require.NoError(t, err)
			assert.Equal(t, fullID, match.Record.ID)
			assert.Equal(t, "/home/me/project", match.Path)
		})
	}

	_, err := h.Resolve(ctx, "g")
	assert.ErrorIs(t, err, historytypes.ErrNotFound)

	_, err = h.Resolve(ctx, "")
	assert.ErrorIs(t, err, historytypes.ErrNotFound)
}

func TestHistoryService_ResolvePrefersExactMatch(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/z", Record: testutils.NewRecord("abc")},
		testutils.SeedEntry{Path: "/a", Record: testutils.NewRecord("abcdef")},
	)

	match, err := h.Resolve(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "/z", match.Path)

	match, err = h.Resolve(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, "/a", match.Path, "prefix ties resolve in ascending path order")
}

func TestHistoryService_ResolveSkipsUndecodableEntries(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/a", Raw: json.RawMessage(`{"conversation_id":"f1"}`)},
		testutils.SeedEntry{Path: "/b", Raw: json.RawMessage(`"not a record"`)},
		testutils.SeedEntry{Path: "/c", Record: testutils.NewRecord("f2")},
	)

	match, err := h.Resolve(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, "/c", match.Path)
}

func TestHistoryService_ListEmptyStore(t *testing.T) {
	h, _ := newHistoryService(t)

	summaries, err := h.List(context.Background(), ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}

func TestHistoryService_ListHonorsLimit(t *testing.T) {
	var entries []testutils.SeedEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, testutils.SeedEntry{
			Path:   fmt.Sprintf("/work/project-%02d", i),
			Record: testutils.NewRecord(fmt.Sprintf("id-%02d", i), "prompt"),
		})
	}
	h, _ := newHistoryService(t, entries...)

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 5, want: 5},
		{limit: 20, want: 10},
		{limit: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit %d", tt.limit), func(t *testing.T) {
			summaries, err := h.List(context.Background(), ListOptions{Limit: tt.limit})
			require.NoError(t, err)
			assert.Len(t, summaries, tt.want)
		})
	}
}

func TestHistoryService_ListOrderAndFilters(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/srv/alpha", Record: testutils.NewRecord("1", "Deploy the service")},
		testutils.SeedEntry{Path: "/srv/gamma", Record: testutils.NewRecord("3", "write tests")},
		testutils.SeedEntry{Path: "/srv/beta", Record: testutils.NewRecord("2", "fix DEPLOY script")},
		testutils.SeedEntry{Path: "/home/Alpha", Record: testutils.NewRecord("4", "deploy docs")},
	)
	ctx := context.Background()

	all, err := h.List(ctx, ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/gamma", "/srv/beta", "/srv/alpha", "/home/Alpha"}, summaryPaths(all))

	byPath, err := h.List(ctx, ListOptions{Limit: 10, PathContains: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/alpha"}, summaryPaths(byPath), "path filter is case-sensitive")

	byContent, err := h.List(ctx, ListOptions{Limit: 10, Contains: "deploy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/beta", "/srv/alpha", "/home/Alpha"}, summaryPaths(byContent))

	both, err := h.List(ctx, ListOptions{Limit: 10, PathContains: "/srv", Contains: "Deploy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/beta", "/srv/alpha"}, summaryPaths(both))
}

func TestHistoryService_ListMatchesPromptsOutsideTranscript(t *testing.T) {
	record := &historytypes.SessionRecord{
		ID:         "p",
		History:    []historytypes.Turn{historytypes.NewPromptTurn("only in the prompt")},
		Transcript: []string{"> something else"},
	}
	h, _ := newHistoryService(t, testutils.SeedEntry{Path: "/p", Record: record})

	summaries, err := h.List(context.Background(), ListOptions{Limit: 1, Contains: "IN THE PROMPT"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "only in the prompt", summaries[0].Preview)
	assert.Equal(t, 1, summaries[0].MessageCount)
}

func TestHistoryService_ListSkipsUndecodableWithoutCountingThem(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/z/broken", Raw: json.RawMessage(`"{oops"`)},
		testutils.SeedEntry{Path: "/a/good", Record: testutils.NewRecord("good", "hi")},
	)

	summaries, err := h.List(context.Background(), ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/good"}, summaryPaths(summaries))
}

func TestHistoryService_SearchPreviewWindow(t *testing.T) {
	record := testutils.NewRecord("s1", "tell me about animals")
	record.Transcript = append(record.Transcript, "The quick brown fox jumps over the lazy dog near the riverbank today")
	h, _ := newHistoryService(t, testutils.SeedEntry{Path: "/animals", Record: record})

	results, err := h.Search(context.Background(), "LAZY", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "...fox jumps over the lazy dog near the riverb...", results[0].Preview)
}

func TestHistoryService_SearchPreviewProperties(t *testing.T) {
	record := testutils.NewRecord("s2")
	record.Transcript = []string{
		"> short",
		"Line one\nmentions Kubernetes deployment here\nand more",
		strings.Repeat("padding ", 10) + "a much longer query string here" + strings.Repeat(" trailing", 10),
	}
	h, _ := newHistoryService(t, testutils.SeedEntry{Path: "/k8s", Record: record})
	ctx := context.Background()

	results, err := h.Search(ctx, "kubernetes", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "...Line one mentions Kubernetes deployment here and...", results[0].Preview)

	for _, query := range []string{"kubernetes", "a much longer query string here", "short"} {
		results, err := h.Search(ctx, query, 10)
		require.NoError(t, err)
		require.Len(t, results, 1, query)

		preview := results[0].Preview
		assert.True(t, strings.HasPrefix(preview, "..."), preview)
		assert.True(t, strings.HasSuffix(preview, "..."), preview)
		inner := strings.TrimSuffix(strings.TrimPrefix(preview, "..."), "...")
		assert.LessOrEqual(t, utf8.RuneCountInString(inner), 50, preview)
		assert.NotContains(t, preview, "\n")
	}
}

func TestHistoryService_SearchFallsBackToPrompts(t *testing.T) {
	record := &historytypes.SessionRecord{
		ID:         "p",
		History:    []historytypes.Turn{historytypes.NewPromptTurn("refactor the parser module")},
		Transcript: []string{"> unrelated transcript"},
	}
	h, _ := newHistoryService(t, testutils.SeedEntry{Path: "/p", Record: record})

	results, err := h.Search(context.Background(), "parser", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "...refactor the parser module...", results[0].Preview)
}

func TestHistoryService_SearchMatchesOnlyConversationText(t *testing.T) {
	record := testutils.NewRecord("deadbeef-1234", "fix the parser")
	record.Extra = map[string]json.RawMessage{"model": json.RawMessage(`"assistant-large"`)}
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/a", Record: record},
		testutils.SeedEntry{Path: "/b", Record: testutils.NewRecord("cafe-5678", "write docs")},
	)
	ctx := context.Background()

	for _, query := range []string{"history", "transcript", "conversation_id", "prompt", "DEADBEEF", "assistant-large"} {
		t.Run(query, func(t *testing.T) {
			results, err := h.Search(ctx, query, 10)
			require.NoError(t, err)
			assert.Empty(t, results, "keys, ids and other record fields are not conversation text")
		})
	}

	results, err := h.Search(ctx, "PARSER", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/a", results[0].Path)

	listed, err := h.List(ctx, ListOptions{Limit: 10, Contains: "history"})
	require.NoError(t, err)
	assert.Empty(t, listed, "list and search apply the same content filter")
}

func TestHistoryService_SearchOrderingAndLimit(t *testing.T) {
	h, _ := newHistoryService(t,
		testutils.SeedEntry{Path: "/c", Record: testutils.NewRecord("c", "needle c")},
		testutils.SeedEntry{Path: "/broken", Raw: json.RawMessage(`42`)},
		testutils.SeedEntry{Path: "/a", Record: testutils.NewRecord("a", "needle a")},
		testutils.SeedEntry{Path: "/x", Record: testutils.NewRecord("x", "haystack")},
		testutils.SeedEntry{Path: "/b", Record: testutils.NewRecord("b", "needle b")},
	)
	ctx := context.Background()

	results, err := h.Search(ctx, "needle", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, summaryPaths(results))

	limited, err := h.Search(ctx, "needle", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/c"}, summaryPaths(limited), "limit applies in substrate order before sorting")

	none, err := h.Search(ctx, "needle", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryService_RestoreWithConflictBacksUpOnce(t *testing.T) {
	h, db := newHistoryService(t,
		testutils.SeedEntry{Path: "/src", Record: testutils.NewRecord(fullID, "restored")},
		testutils.SeedEntry{Path: "/dest", Record: testutils.NewRecord("old-live", "previous")},
	)
	ctx := context.Background()

	result, err := h.Restore(ctx, "f18c", "/dest/")
	require.NoError(t, err)
	assert.Equal(t, "/src", result.SourcePath)
	assert.Equal(t, "/dest", result.Destination)
	assert.Equal(t, "/dest.backup.20250101_000000", result.BackupKey)
	assert.Equal(t, 3, testutils.EntryCount(t, db))

	s := store.New(db)
	live, err := s.Get(ctx, "/dest")
	require.NoError(t, err)
	assert.Equal(t, fullID, live.ID)
	assert.Equal(t, []string{"> restored", "reply: restored"}, live.Transcript)

	backup, err := s.Get(ctx, result.BackupKey)
	require.NoError(t, err)
	assert.Equal(t, "old-live", backup.ID)
}

func TestHistoryService_RestoreWithoutConflict(t *testing.T) {
	h, db := newHistoryService(t,
		testutils.SeedEntry{Path: "/src", Record: testutils.NewRecord(fullID, "restored")},
	)

	result, err := h.Restore(context.Background(), fullID, "/fresh")
	require.NoError(t, err)
	assert.Empty(t, result.BackupKey)
	assert.Equal(t, 2, testutils.EntryCount(t, db))
}

func TestHistoryService_RestorePreservesUndecodableLiveEntry(t *testing.T) {
	h, db := newHistoryService(t,
		testutils.SeedEntry{Path: "/src", Record: testutils.NewRecord(fullID, "restored")},
		testutils.SeedEntry{Path: "/dest", Raw: json.RawMessage(`"{corrupt"`)},
	)
	ctx := context.Background()

	result, err := h.Restore(ctx, fullID, "/dest")
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupKey)

	raw, ok, err := db.Get(ctx, result.BackupKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"{corrupt"`, string(raw))
}

func TestHistoryService_RestoreNotFound(t *testing.T) {
	h, db := newHistoryService(t,
		testutils.SeedEntry{Path: "/src", Record: testutils.NewRecord(fullID, "restored")},
	)

	_, err := h.Restore(context.Background(), "zzz", "/dest")
	assert.ErrorIs(t, err, historytypes.ErrNotFound)
	assert.Equal(t, 1, testutils.EntryCount(t, db))
}

func TestHistoryService_ImportAssignsMissingID(t *testing.T) {
	testutils.ResetTestCounters()
	db := database.NewMemoryDatabase()
	h := NewHistoryService(store.New(db), WithIDGenerator(testutils.DeterministicUUID))
	require.NoError(t, h.Initialize())

	record := testutils.NewRecord("", "imported")
	result, err := h.Import(context.Background(), record, "/imported")
	require.NoError(t, err)
	assert.Equal(t, "00000001-0000-4000-8000-000000000001", result.Record.ID)
	assert.Empty(t, result.BackupKey)

	again, err := h.Import(context.Background(), testutils.NewRecord("kept", "second"), "/imported")
	require.NoError(t, err)
	assert.Equal(t, "kept", again.Record.ID)
	assert.NotEmpty(t, again.BackupKey)
	assert.Equal(t, 2, testutils.EntryCount(t, db))

	_, err = h.Import(context.Background(), nil, "/imported")
	assert.Error(t, err)
	_, err = h.Import(context.Background(), testutils.NewRecord("x"), "")
	assert.Error(t, err)
}

func TestHistoryService_RequiresInitialization(t *testing.T) {
	h := NewHistoryService(store.New(database.NewMemoryDatabase()))

	_, err := h.List(context.Background(), ListOptions{Limit: 1})
	assert.Error(t, err)
	_, err = h.Resolve(context.Background(), "x")
	assert.Error(t, err)

	assert.Error(t, NewHistoryService(nil).Initialize())
}

func TestHistoryService_StoreFailureAborts(t *testing.T) {
	db, err := database.OpenSQLite(t.TempDir() + "/history.sqlite3")
	require.NoError(t, err)
	h := NewHistoryService(store.New(db))
	require.NoError(t, h.Initialize())
	require.NoError(t, db.Close())

	_, err = h.List(context.Background(), ListOptions{Limit: 10})
	assert.ErrorIs(t, err, historytypes.ErrStoreIO)
	_, err = h.Search(context.Background(), "x", 10)
	assert.ErrorIs(t, err, historytypes.ErrStoreIO)
}

func TestSummarize(t *testing.T) {
	first := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	last := first.Add(2 * time.Hour)
	record := &historytypes.SessionRecord{
		ID: "sum",
		History: []historytypes.Turn{
			historytypes.NewPromptTurn("start").WithTimestamp(first),
			historytypes.NewPromptTurn("end").WithTimestamp(last),
		},
	}

	summary := Summarize("/p", record)
	assert.Equal(t, "sum", summary.ID)
	assert.True(t, first.Equal(summary.CreatedAt))
	assert.True(t, last.Equal(summary.UpdatedAt))
	assert.Equal(t, 2, summary.MessageCount)
	assert.Equal(t, "start", summary.Preview)

	empty := Summarize("/e", &historytypes.SessionRecord{ID: "e"})
	assert.True(t, empty.UpdatedAt.IsZero())
	assert.Equal(t, output.EmptyConversationPreview, empty.Preview)
}

func TestSearchPreview_StripsANSI(t *testing.T) {
	record := &historytypes.SessionRecord{Transcript: []string{"\x1b[1mbold\x1b[0m answer"}}

	preview, ok := SearchPreview(record, "bold answer")
	require.True(t, ok)
	assert.Equal(t, "...bold answer...", preview)

	_, ok = SearchPreview(record, "missing")
	assert.False(t, ok)
}
