package historytypes

import (
	"fmt"
	"strings"
)

// ExportFormat selects the encoding produced by the exporter.
type ExportFormat string

const (
	// ExportJSON is the lossless record encoding, loadable again by the chat engine.
	ExportJSON ExportFormat = "json"
	// ExportMarkdown is a readable markdown document.
	ExportMarkdown ExportFormat = "markdown"
	// ExportText is plain text separated by rule lines.
	ExportText ExportFormat = "text"
)

// ExportFormats lists the accepted format names in display order.
var ExportFormats = []ExportFormat{ExportJSON, ExportMarkdown, ExportText}

// ParseExportFormat converts a user supplied name to an ExportFormat.
func ParseExportFormat(name string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return ExportJSON, nil
	case "markdown", "md":
		return ExportMarkdown, nil
	case "text", "txt", "plain":
		return ExportText, nil
	default:
		valid := make([]string, 0, len(ExportFormats))
		for _, format := range ExportFormats {
			valid = append(valid, string(format))
		}
		return "", fmt.Errorf("invalid export format '%s'. Valid options: %s", name, strings.Join(valid, ", "))
	}
}

// Extension returns the conventional file extension for the format.
func (f ExportFormat) Extension() string {
	switch f {
	case ExportMarkdown:
		return ".md"
	case ExportText:
		return ".txt"
	default:
		return ".json"
	}
}
