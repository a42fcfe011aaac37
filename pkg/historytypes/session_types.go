// Package historytypes defines the conversation history data model for chathistory.
// This file contains the session record as it is persisted by the chat engine, the
// transcript classification used by exporters, and the derived summary type.
package historytypes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Wire keys of the fields this package interprets. Everything else is carried in Extra.
const (
	recordIDKey   = "conversation_id"
	legacyIDKey   = "id"
	historyKey    = "history"
	transcriptKey = "transcript"
)

// UserMarker is the leading character of transcript entries written for user messages.
const UserMarker = '>'

// SessionRecord is the durable state of one conversation.
// Only the identifier, the turn history and the rendered transcript are interpreted;
// all other fields written by the chat engine round-trip unchanged through Extra.
type SessionRecord struct {
	ID         string
	History    []Turn
	Transcript []string
	Extra      map[string]json.RawMessage
}

// MarshalJSON encodes the record with its preserved fields.
func (r SessionRecord) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(r.Extra)+3)
	for key, value := range r.Extra {
		fields[key] = value
	}

	history := r.History
	if history == nil {
		history = []Turn{}
	}
	transcript := r.Transcript
	if transcript == nil {
		transcript = []string{}
	}

	fields[recordIDKey] = r.ID
	fields[historyKey] = history
	fields[transcriptKey] = transcript

	// Transcripts open with "> ", keep it readable instead of \u003e
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(fields); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// UnmarshalJSON decodes a record, accepting the legacy "id" key when
// "conversation_id" is absent. Missing history or transcript decode as empty.
func (r *SessionRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("session record must be a JSON object")
	}

	record := SessionRecord{}

	idKey := recordIDKey
	if _, ok := fields[idKey]; !ok {
		idKey = legacyIDKey
	}
	if raw, ok := fields[idKey]; ok {
		if err := json.Unmarshal(raw, &record.ID); err != nil {
			return fmt.Errorf("invalid %s: %w", idKey, err)
		}
		delete(fields, idKey)
	}

	if raw, ok := fields[historyKey]; ok {
		if err := json.Unmarshal(raw, &record.History); err != nil {
			return fmt.Errorf("invalid history: %w", err)
		}
		delete(fields, historyKey)
	}

	if raw, ok := fields[transcriptKey]; ok {
		if err := json.Unmarshal(raw, &record.Transcript); err != nil {
			return fmt.Errorf("invalid transcript: %w", err)
		}
		delete(fields, transcriptKey)
	}

	if len(fields) > 0 {
		record.Extra = fields
	}

	*r = record
	return nil
}

// MessageCount returns the number of turns in the history.
func (r *SessionRecord) MessageCount() int {
	return len(r.History)
}

// Prompts returns the user prompts of all turns that have one, in order.
func (r *SessionRecord) Prompts() []string {
	prompts := make([]string, 0, len(r.History))
	for _, turn := range r.History {
		if prompt, ok := turn.Prompt(); ok {
			prompts = append(prompts, prompt)
		}
	}
	return prompts
}

// Entries classifies every transcript entry as a user or assistant turn.
func (r *SessionRecord) Entries() []TranscriptEntry {
	entries := make([]TranscriptEntry, 0, len(r.Transcript))
	for _, raw := range r.Transcript {
		entries = append(entries, ClassifyTranscriptEntry(raw))
	}
	return entries
}

// Timestamps returns the user timestamps of the first and last turns.
// Either value is the zero time when the record does not carry it.
func (r *SessionRecord) Timestamps() (created, updated time.Time) {
	if len(r.History) == 0 {
		return time.Time{}, time.Time{}
	}
	created, _ = r.History[0].Timestamp()
	updated, _ = r.History[len(r.History)-1].Timestamp()
	return created, updated
}

// Turn is one user/assistant exchange of the history.
// The raw JSON is kept as written; accessors read the user side on demand.
type Turn struct {
	raw json.RawMessage
}

// NewPromptTurn builds a turn whose user side is a plain prompt.
func NewPromptTurn(prompt string) Turn {
	raw, _ := sjson.SetBytes([]byte(`{}`), "user.content.Prompt.prompt", prompt)
	raw, _ = sjson.SetRawBytes(raw, "assistant", []byte(`{}`))
	return Turn{raw: raw}
}

// NewToolResultTurn builds a turn whose user side carries tool results instead of a prompt.
func NewToolResultTurn() Turn {
	raw, _ := sjson.SetRawBytes([]byte(`{}`), "user.content.ToolUseResults.tool_use_results", []byte(`[]`))
	raw, _ = sjson.SetRawBytes(raw, "assistant", []byte(`{}`))
	return Turn{raw: raw}
}

// WithTimestamp returns a copy of the turn with the user timestamp set.
func (t Turn) WithTimestamp(at time.Time) Turn {
	raw, err := sjson.SetBytes(t.bytes(), "user.timestamp", at.Format(time.RFC3339Nano))
	if err != nil {
		return t
	}
	return Turn{raw: raw}
}

// Prompt returns the user prompt of the turn, if the user side carries one.
func (t Turn) Prompt() (string, bool) {
	for _, path := range []string{
		"user.content.Prompt.prompt",
		"user.content.CancelledToolUses.prompt",
	} {
		if result := gjson.GetBytes(t.raw, path); result.Type == gjson.String {
			return result.String(), true
		}
	}
	return "", false
}

// Timestamp returns the user timestamp of the turn when present and well formed.
func (t Turn) Timestamp() (time.Time, bool) {
	result := gjson.GetBytes(t.raw, "user.timestamp")
	if result.Type != gjson.String {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, result.String())
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// Raw returns the turn exactly as it was decoded.
func (t Turn) Raw() json.RawMessage {
	return t.bytes()
}

func (t Turn) bytes() []byte {
	if len(t.raw) == 0 {
		return []byte(`{}`)
	}
	return t.raw
}

// MarshalJSON returns the preserved turn JSON.
func (t Turn) MarshalJSON() ([]byte, error) {
	return t.bytes(), nil
}

// UnmarshalJSON keeps a copy of the turn JSON.
func (t *Turn) UnmarshalJSON(data []byte) error {
	t.raw = append(json.RawMessage(nil), data...)
	return nil
}

// TurnKind tells user transcript entries apart from assistant ones.
type TurnKind int

const (
	// AssistantTurn is any transcript entry not starting with UserMarker.
	AssistantTurn TurnKind = iota
	// UserTurn is a transcript entry starting with UserMarker.
	UserTurn
)

// String returns "user" or "assistant".
func (k TurnKind) String() string {
	if k == UserTurn {
		return "user"
	}
	return "assistant"
}

// TranscriptEntry is a classified transcript block. For user entries Text has the
// marker and the whitespace after it removed.
type TranscriptEntry struct {
	Kind TurnKind
	Text string
}

// ClassifyTranscriptEntry classifies one transcript block.
func ClassifyTranscriptEntry(entry string) TranscriptEntry {
	if strings.HasPrefix(entry, string(UserMarker)) {
		return TranscriptEntry{
			Kind: UserTurn,
			Text: strings.TrimLeft(strings.TrimPrefix(entry, string(UserMarker)), " \t"),
		}
	}
	return TranscriptEntry{Kind: AssistantTurn, Text: entry}
}

// ConversationSummary is the derived, per-call view of a stored conversation used by
// list and search. CreatedAt and UpdatedAt are zero when the record has no timestamps.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
}
