package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"chathistory/internal/codec"
	"chathistory/internal/logger"
	"chathistory/internal/output"
	"chathistory/internal/store"
	"chathistory/pkg/historytypes"
)

// HistoryServiceName is the registry name of the HistoryService.
const HistoryServiceName = "history"

const (
	// searchContextRadius is the number of characters kept on each side of a search match.
	searchContextRadius = 20
	// searchPreviewLimit caps the visible window of a search preview before the wrapping ellipses.
	searchPreviewLimit = 50
)

// HistoryService answers queries over the path-keyed conversation store:
// identifier resolution, listing, content search, restore and import.
type HistoryService struct {
	initialized bool
	store       *store.Store
	newID       func() string
}

// HistoryOption configures a HistoryService.
type HistoryOption func(*HistoryService)

// WithIDGenerator replaces the generator used for imported records that have no id.
func WithIDGenerator(generate func() string) HistoryOption {
	return func(h *HistoryService) {
		if generate != nil {
			h.newID = generate
		}
	}
}

// NewHistoryService creates a HistoryService over s.
func NewHistoryService(s *store.Store, options ...HistoryOption) *HistoryService {
	h := &HistoryService{
		store: s,
		newID: uuid.NewString,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Name returns the service name "history" for registration.
func (h *HistoryService) Name() string {
	return HistoryServiceName
}

// Initialize checks that the service has a store to work on.
func (h *HistoryService) Initialize() error {
	if h.store == nil {
		return fmt.Errorf("history service requires a store")
	}
	h.initialized = true
	return nil
}

// Match is a resolved conversation and the key it is stored under.
type Match struct {
	Path   string
	Record *historytypes.SessionRecord
}

// ListOptions narrows a List call.
type ListOptions struct {
	// Limit is the maximum number of summaries returned. Zero returns none.
	Limit int
	// PathContains keeps entries whose key contains this substring (case-sensitive).
	PathContains string
	// Contains keeps records whose transcript or prompts contain this text (case-insensitive).
	Contains string
}

// RestoreResult reports what a Restore or Import wrote.
type RestoreResult struct {
	// SourcePath is the key the record was resolved from. Empty for imports.
	SourcePath string
	// Destination is the normalized live key that now holds the record.
	Destination string
	Record      *historytypes.SessionRecord
	// BackupKey is the key the previous live entry was saved under, or empty when there was none.
	BackupKey string
}

// Resolve finds the conversation whose id equals fragment, or failing that the first
// one whose id starts with it. Entries are scanned in ascending path order so the
// result is the same on every run. Undecodable entries are skipped.
func (h *HistoryService) Resolve(ctx context.Context, fragment string) (*Match, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	if fragment == "" {
		return nil, fmt.Errorf("%w: empty identifier", historytypes.ErrNotFound)
	}

	entries, err := h.store.EnumerateAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByPath(entries, false)

	var prefixMatch *Match
	for _, entry := range entries {
		record, ok := h.decode(entry)
		if !ok {
			continue
		}
		if record.ID == fragment {
			return &Match{Path: entry.Key, Record: record}, nil
		}
		if prefixMatch == nil && strings.HasPrefix(record.ID, fragment) {
			prefixMatch = &Match{Path: entry.Key, Record: record}
		}
	}

	if prefixMatch == nil {
		return nil, fmt.Errorf("%w: %s", historytypes.ErrNotFound, fragment)
	}
	return prefixMatch, nil
}

// List returns summaries ordered by path descending, filtered by opts.
// Entries that fail to decode are skipped and do not count toward the limit.
func (h *HistoryService) List(ctx context.Context, opts ListOptions) ([]historytypes.ConversationSummary, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	summaries := []historytypes.ConversationSummary{}
	if opts.Limit <= 0 {
		return summaries, nil
	}

	entries, err := h.store.EnumerateAll(ctx)
	if err != nil {
		return nil, err
	}
	sortByPath(entries, true)

	needle := strings.ToLower(opts.Contains)
	for _, entry := range entries {
		if opts.PathContains != "" && !strings.Contains(entry.Key, opts.PathContains) {
			continue
		}
		record, ok := h.decode(entry)
		if !ok {
			continue
		}
		if needle != "" && !recordContains(record, needle) {
			continue
		}

		summaries = append(summaries, Summarize(entry.Key, record))
		if len(summaries) == opts.Limit {
			break
		}
	}

	logger.ServiceOperation(HistoryServiceName, "list", "returned", len(summaries))
	return summaries, nil
}

// Search returns up to limit conversations mentioning query, ordered by path ascending.
// Each summary's preview is a window of text around the first match.
func (h *HistoryService) Search(ctx context.Context, query string, limit int) ([]historytypes.ConversationSummary, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	results := []historytypes.ConversationSummary{}
	if limit <= 0 {
		return results, nil
	}

	entries, err := h.store.EnumerateAll(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	for _, entry := range entries {
		record, ok := h.decode(entry)
		if !ok || !recordContains(record, needle) {
			continue
		}

		preview, matched := SearchPreview(record, query)
		if !matched {
			preview = output.ExtractPreview(record)
		}

		summary := Summarize(entry.Key, record)
		summary.Preview = preview
		results = append(results, summary)
		if len(results) == limit {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	logger.ServiceOperation(HistoryServiceName, "search", "query", query, "returned", len(results))
	return results, nil
}

// Restore resolves fragment and makes the record the live entry at destination.
// An existing live entry there is backed up first and its backup key reported.
func (h *HistoryService) Restore(ctx context.Context, fragment, destination string) (*RestoreResult, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}

	match, err := h.Resolve(ctx, fragment)
	if err != nil {
		return nil, err
	}

	result, err := h.replace(ctx, match.Record, destination)
	if err != nil {
		return nil, err
	}
	result.SourcePath = match.Path
	return result, nil
}

// Import stores a record loaded from a JSON export as the live entry at destination,
// with the same backup protocol as Restore. A record without an id receives a new one.
func (h *HistoryService) Import(ctx context.Context, record *historytypes.SessionRecord, destination string) (*RestoreResult, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("cannot import an empty record")
	}
	if record.ID == "" {
		record.ID = h.newID()
		logger.Debug("Assigned id to imported conversation", "id", record.ID)
	}
	return h.replace(ctx, record, destination)
}

// replace backs up whatever is live at destination and writes record there.
func (h *HistoryService) replace(ctx context.Context, record *historytypes.SessionRecord, destination string) (*RestoreResult, error) {
	dest := store.NormalizePath(destination)
	if dest == "" {
		return nil, fmt.Errorf("destination path cannot be empty")
	}

	backupKey, err := h.backupExisting(ctx, dest)
	if err != nil {
		return nil, err
	}
	if err := h.store.Set(ctx, dest, record); err != nil {
		return nil, err
	}

	return &RestoreResult{
		Destination: dest,
		Record:      record,
		BackupKey:   backupKey,
	}, nil
}

// backupExisting saves the live entry at path, if any. An entry that no longer decodes
// is saved verbatim.
func (h *HistoryService) backupExisting(ctx context.Context, path string) (string, error) {
	raw, exists, err := h.store.GetRaw(ctx, path)
	if err != nil || !exists {
		return "", err
	}

	record, err := codec.Decode(raw)
	if err != nil {
		logger.Warn("Live entry is not decodable, backing up raw value", "path", path, "error", err)
		return h.store.BackupRaw(ctx, path, raw)
	}
	return h.store.Backup(ctx, path, record)
}

func (h *HistoryService) ready() error {
	if !h.initialized {
		return fmt.Errorf("history service not initialized")
	}
	return nil
}

func (h *HistoryService) decode(entry historytypes.RawEntry) (*historytypes.SessionRecord, bool) {
	record, err := codec.DecodeEntry(entry)
	if err != nil {
		h.skip(entry.Key, err)
		return nil, false
	}
	return record, true
}

func (h *HistoryService) skip(key string, err error) {
	logger.Warn("Skipping undecodable entry", "key", key, "error", err)
}

// Summarize derives the summary shown for the record stored at path.
func Summarize(path string, record *historytypes.SessionRecord) historytypes.ConversationSummary {
	created, updated := record.Timestamps()
	return historytypes.ConversationSummary{
		ID:           record.ID,
		Path:         path,
		CreatedAt:    created,
		UpdatedAt:    updated,
		Preview:      output.ExtractPreview(record),
		MessageCount: record.MessageCount(),
	}
}

// SearchPreview returns the context window around the first case-insensitive match of
// query, looking through the transcript before the prompts.
func SearchPreview(record *historytypes.SessionRecord, query string) (string, bool) {
	for _, entry := range record.Transcript {
		if preview, ok := contextWindow(ansi.Strip(entry), query); ok {
			return preview, true
		}
	}
	for _, prompt := range record.Prompts() {
		if preview, ok := contextWindow(prompt, query); ok {
			return preview, true
		}
	}
	return "", false
}

// contextWindow cuts searchContextRadius characters either side of the first match,
// flattens it to one line and wraps it in ellipses.
func contextWindow(text, query string) (string, bool) {
	runes := []rune(text)
	at := indexFold(runes, []rune(query))
	if at < 0 {
		return "", false
	}

	start := max(at-searchContextRadius, 0)
	end := min(at+len([]rune(query))+searchContextRadius, len(runes))

	window := output.Ellipsize(output.CleanText(string(runes[start:end])), searchPreviewLimit)
	return output.Ellipsis + window + output.Ellipsis, true
}

// indexFold finds needle in haystack comparing lowercased runes, so the returned index
// is a rune offset into the original text.
func indexFold(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j, r := range needle {
			if unicode.ToLower(haystack[i+j]) != unicode.ToLower(r) {
				matched = false
				break
			}
		}
		if matched {
			return i
		}
	}
	return -1
}

// recordContains reports whether the lowercased needle occurs in any transcript entry or prompt.
func recordContains(record *historytypes.SessionRecord, needle string) bool {
	for _, entry := range record.Transcript {
		if strings.Contains(strings.ToLower(ansi.Strip(entry)), needle) {
			return true
		}
	}
	for _, prompt := range record.Prompts() {
		if strings.Contains(strings.ToLower(prompt), needle) {
			return true
		}
	}
	return false
}

// sortByPath orders entries by key, descending when newestFirst is set.
func sortByPath(entries []historytypes.RawEntry, newestFirst bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		if newestFirst {
			return entries[i].Key > entries[j].Key
		}
		return entries[i].Key < entries[j].Key
	})
}
