package output

import (
	"strings"

	"chathistory/pkg/historytypes"
)

// PreviewLimit is the longest preview shown for a conversation, ellipsis included.
const PreviewLimit = 50

const (
	// EmptyConversationPreview stands in for a conversation without turns.
	EmptyConversationPreview = "(empty conversation)"
	// ToolUsePreview stands in for a first turn driven by tool results.
	ToolUsePreview = "(tool use)"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// CleanText replaces line breaks with spaces and trims surrounding whitespace.
func CleanText(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}

// ExtractPreview returns the at-a-glance text for a conversation: its first prompt
// on one line, cut to PreviewLimit runes.
func ExtractPreview(record *historytypes.SessionRecord) string {
	if record == nil || len(record.History) == 0 {
		return EmptyConversationPreview
	}
	prompt, ok := record.History[0].Prompt()
	if !ok {
		return ToolUsePreview
	}
	return Ellipsize(CleanText(prompt), PreviewLimit)
}
