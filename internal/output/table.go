package output

import (
	"strconv"
	"strings"
	"time"

	"chathistory/pkg/historytypes"
)

// Column widths of the summary table, in runes.
const (
	IDColumnWidth      = 11
	UpdatedColumnWidth = 16
	CountColumnWidth   = 5
	PathColumnWidth    = 30
	PreviewColumnWidth = PreviewLimit
)

const (
	columnGap       = "  "
	timestampLayout = "2006-01-02 15:04"
)

// FormatTimestamp renders a summary timestamp, or "-" when the record has none.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timestampLayout)
}

// SummaryTable renders conversation summaries as fixed-width rows.
type SummaryTable struct {
	printer *Printer
	paths   PathFormatter
}

// NewSummaryTable creates a table renderer styling cells through printer.
func NewSummaryTable(printer *Printer, paths PathFormatter) *SummaryTable {
	return &SummaryTable{printer: printer, paths: paths}
}

// Render returns the header, a rule line and one row per summary.
func (t *SummaryTable) Render(summaries []historytypes.ConversationSummary) string {
	var b strings.Builder

	header := strings.Join([]string{
		TruncateText("ID", IDColumnWidth),
		TruncateText("UPDATED", UpdatedColumnWidth),
		TruncateText("MSGS", CountColumnWidth),
		TruncateText("PATH", PathColumnWidth),
		"PREVIEW",
	}, columnGap)
	b.WriteString(t.printer.Style(SemanticHeader, header))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", tableWidth()))
	b.WriteString("\n")

	for _, summary := range summaries {
		b.WriteString(t.row(summary))
		b.WriteString("\n")
	}

	return b.String()
}

func (t *SummaryTable) row(summary historytypes.ConversationSummary) string {
	cells := []string{
		t.printer.Style(SemanticID, TruncateText(summary.ID, IDColumnWidth)),
		t.printer.Style(SemanticMuted, TruncateText(FormatTimestamp(summary.UpdatedAt), UpdatedColumnWidth)),
		t.printer.Style(SemanticMuted, TruncateText(strconv.Itoa(summary.MessageCount), CountColumnWidth)),
		t.printer.Style(SemanticPath, t.paths.TruncatePath(summary.Path, PathColumnWidth)),
		Ellipsize(summary.Preview, PreviewColumnWidth),
	}
	return strings.Join(cells, columnGap)
}

func tableWidth() int {
	return IDColumnWidth + UpdatedColumnWidth + CountColumnWidth + PathColumnWidth + PreviewColumnWidth + 4*len(columnGap)
}
