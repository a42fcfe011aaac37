package historytypes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRecord_UnmarshalPreservesUnknownFields(t *testing.T) {
	raw := `{
		"conversation_id": "f18c31da-422d-43b9-b7b1-bb01fb7c772b",
		"next_message": null,
		"history": [
			{"user": {"content": {"Prompt": {"prompt": "hello"}}, "timestamp": "2025-01-01T10:00:00Z"}, "assistant": {"Response": {"content": "hi"}}},
			{"user": {"content": {"ToolUseResults": {"tool_use_results": []}}}, "assistant": {}}
		],
		"transcript": ["> hello", "hi"],
		"tools": {"native": []}
	}`

	var record SessionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &record))

	assert.Equal(t, "f18c31da-422d-43b9-b7b1-bb01fb7c772b", record.ID)
	assert.Equal(t, 2, record.MessageCount())
	assert.Equal(t, []string{"> hello", "hi"}, record.Transcript)
	assert.Contains(t, record.Extra, "tools")
	assert.Contains(t, record.Extra, "next_message")

	encoded, err := json.Marshal(record)
	require.NoError(t, err)

	var again SessionRecord
	require.NoError(t, json.Unmarshal(encoded, &again))
	assert.Equal(t, record.ID, again.ID)
	assert.Equal(t, record.Transcript, again.Transcript)
	require.Len(t, again.History, 2)
	assert.JSONEq(t, string(record.History[0].Raw()), string(again.History[0].Raw()))
	assert.JSONEq(t, `{"native": []}`, string(again.Extra["tools"]))
}

func TestSessionRecord_LegacyIDKey(t *testing.T) {
	var record SessionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "transcript": []}`), &record))
	assert.Equal(t, "abc", record.ID)
	assert.NotContains(t, record.Extra, "id")

	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id": "abc", "history": [], "transcript": []}`, string(encoded))
}

func TestSessionRecord_UnmarshalRejectsNonObjects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "null", raw: `null`},
		{name: "array", raw: `[1, 2]`},
		{name: "string", raw: `"record"`},
		{name: "bad transcript", raw: `{"conversation_id": "x", "transcript": [1]}`},
		{name: "bad id", raw: `{"conversation_id": 42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var record SessionRecord
			assert.Error(t, json.Unmarshal([]byte(tt.raw), &record))
		})
	}
}

func TestTurn_Prompt(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantPrompt string
		wantOK     bool
	}{
		{name: "prompt", raw: `{"user": {"content": {"Prompt": {"prompt": "list files"}}}}`, wantPrompt: "list files", wantOK: true},
		{name: "cancelled tool uses", raw: `{"user": {"content": {"CancelledToolUses": {"prompt": "stop", "tool_use_results": []}}}}`, wantPrompt: "stop", wantOK: true},
		{name: "cancelled without prompt", raw: `{"user": {"content": {"CancelledToolUses": {"prompt": null}}}}`, wantOK: false},
		{name: "tool results", raw: `{"user": {"content": {"ToolUseResults": {"tool_use_results": []}}}}`, wantOK: false},
		{name: "empty", raw: `{}`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var turn Turn
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &turn))
			prompt, ok := turn.Prompt()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPrompt, prompt)
		})
	}
}

func TestTurnBuilders(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	turn := NewPromptTurn("hello there").WithTimestamp(at)

	prompt, ok := turn.Prompt()
	assert.True(t, ok)
	assert.Equal(t, "hello there", prompt)

	ts, ok := turn.Timestamp()
	assert.True(t, ok)
	assert.True(t, at.Equal(ts))

	_, ok = NewToolResultTurn().Prompt()
	assert.False(t, ok)
	_, ok = NewToolResultTurn().Timestamp()
	assert.False(t, ok)
}

func TestSessionRecord_Timestamps(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	last := first.Add(time.Hour)

	record := SessionRecord{History: []Turn{
		NewPromptTurn("a").WithTimestamp(first),
		NewToolResultTurn(),
		NewPromptTurn("b").WithTimestamp(last),
	}}
	created, updated := record.Timestamps()
	assert.True(t, first.Equal(created))
	assert.True(t, last.Equal(updated))

	empty := SessionRecord{}
	created, updated = empty.Timestamps()
	assert.True(t, created.IsZero())
	assert.True(t, updated.IsZero())
}

func TestSessionRecord_PromptsAndEntries(t *testing.T) {
	record := SessionRecord{
		History:    []Turn{NewPromptTurn("one"), NewToolResultTurn(), NewPromptTurn("two")},
		Transcript: []string{">  one", "answer", "> two", "second answer"},
	}

	assert.Equal(t, []string{"one", "two"}, record.Prompts())

	entries := record.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, TranscriptEntry{Kind: UserTurn, Text: "one"}, entries[0])
	assert.Equal(t, TranscriptEntry{Kind: AssistantTurn, Text: "answer"}, entries[1])
	assert.Equal(t, UserTurn, entries[2].Kind)
	assert.Equal(t, "user", entries[2].Kind.String())
	assert.Equal(t, "assistant", entries[3].Kind.String())
}

func TestParseExportFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    ExportFormat
		wantErr bool
	}{
		{input: "json", want: ExportJSON},
		{input: "", want: ExportJSON},
		{input: "Markdown", want: ExportMarkdown},
		{input: "md", want: ExportMarkdown},
		{input: "text", want: ExportText},
		{input: "txt", want: ExportText},
		{input: "yaml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExportFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, ".md", ExportMarkdown.Extension())
	assert.Equal(t, ".txt", ExportText.Extension())
	assert.Equal(t, ".json", ExportJSON.Extension())
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := error(&DecodeError{Key: "/work", Stage: StageRecord, Err: cause})

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/work")
	assert.Contains(t, err.Error(), "record")
	assert.False(t, errors.As(ErrNotFound, &decodeErr))
}
