package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"chathistory/internal/codec"
	"chathistory/internal/logger"
	"chathistory/pkg/historytypes"
)

// ExportServiceName is the registry name of the ExportService.
const ExportServiceName = "export"

const (
	exportTitle     = "Conversation Export"
	exportTimestamp = "2006-01-02 15:04:05 MST"
	ruleWidth       = 60
)

// ExportService renders conversations into portable files.
type ExportService struct {
	initialized bool
	now         func() time.Time
}

// NewExportService creates a new ExportService instance.
func NewExportService() *ExportService {
	return &ExportService{now: time.Now}
}

// Name returns the service name "export" for registration.
func (e *ExportService) Name() string {
	return ExportServiceName
}

// Initialize sets up the ExportService for operation.
func (e *ExportService) Initialize() error {
	e.initialized = true
	return nil
}

// SetClock replaces the clock used for the export timestamp.
func (e *ExportService) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Exchange is one numbered group of transcript entries: a user message and the
// assistant blocks answering it.
type Exchange struct {
	Number  int
	Entries []historytypes.TranscriptEntry
}

// GroupExchanges numbers exchanges by user message. Each user entry opens a new
// exchange; assistant entries join the current one, and an assistant entry before any
// user entry opens exchange 1.
func GroupExchanges(entries []historytypes.TranscriptEntry) []Exchange {
	var exchanges []Exchange
	for _, entry := range entries {
		if entry.Kind == historytypes.UserTurn || len(exchanges) == 0 {
			exchanges = append(exchanges, Exchange{Number: len(exchanges) + 1})
		}
		current := &exchanges[len(exchanges)-1]
		current.Entries = append(current.Entries, entry)
	}
	return exchanges
}

// Export renders record in format. originalPath is the key the record was stored under.
func (e *ExportService) Export(record *historytypes.SessionRecord, originalPath string, format historytypes.ExportFormat) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("export service not initialized")
	}
	if record == nil {
		return "", fmt.Errorf("nothing to export")
	}

	switch format {
	case historytypes.ExportJSON:
		data, err := codec.MarshalIndent(record)
		if err != nil {
			return "", fmt.Errorf("failed to encode conversation: %w", err)
		}
		return string(data), nil
	case historytypes.ExportMarkdown:
		return e.renderMarkdown(record, originalPath), nil
	case historytypes.ExportText:
		return e.renderText(record, originalPath), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteExport renders record and writes it to destination. When destination exists and
// force is false it returns historytypes.ErrDestinationExists without rendering.
func (e *ExportService) WriteExport(record *historytypes.SessionRecord, originalPath string, format historytypes.ExportFormat, destination string, force bool) error {
	if destination == "" {
		return fmt.Errorf("export destination cannot be empty")
	}

	_, err := os.Stat(destination)
	switch {
	case err == nil && !force:
		return fmt.Errorf("%w: %s", historytypes.ErrDestinationExists, destination)
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to check destination %s: %w", destination, err)
	}

	content, err := e.Export(record, originalPath, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(destination); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(destination, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write export %s: %w", destination, err)
	}

	logger.ServiceOperation(ExportServiceName, "write", "format", string(format), "destination", destination)
	return nil
}

// LoadExport reads a JSON export back into a record.
func (e *ExportService) LoadExport(path string) (*historytypes.SessionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	record, err := codec.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s is not a conversation export: %w", path, err)
	}
	return record, nil
}

func (e *ExportService) renderMarkdown(record *historytypes.SessionRecord, originalPath string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", exportTitle)
	fmt.Fprintf(&b, "- **ID**: %s\n", record.ID)
	fmt.Fprintf(&b, "- **Original Path**: %s\n", originalPath)
	fmt.Fprintf(&b, "- **Messages**: %d\n", record.MessageCount())
	fmt.Fprintf(&b, "- **Exported**: %s\n", e.exportedAt())

	for _, exchange := range GroupExchanges(record.Entries()) {
		fmt.Fprintf(&b, "\n## Exchange %d\n", exchange.Number)
		for _, entry := range exchange.Entries {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", entryLabel(entry.Kind), ansi.Strip(entry.Text))
		}
	}

	return b.String()
}

func (e *ExportService) renderText(record *historytypes.SessionRecord, originalPath string) string {
	var b strings.Builder
	heavy := strings.Repeat("=", ruleWidth)
	light := strings.Repeat("-", ruleWidth)

	b.WriteString(exportTitle + "\n")
	b.WriteString(heavy + "\n")
	fmt.Fprintf(&b, "ID: %s\n", record.ID)
	fmt.Fprintf(&b, "Original Path: %s\n", originalPath)
	fmt.Fprintf(&b, "Messages: %d\n", record.MessageCount())
	fmt.Fprintf(&b, "Exported: %s\n", e.exportedAt())
	b.WriteString(heavy + "\n")

	for _, exchange := range GroupExchanges(record.Entries()) {
		fmt.Fprintf(&b, "\nExchange %d\n%s\n", exchange.Number, light)
		for _, entry := range exchange.Entries {
			fmt.Fprintf(&b, "%s:\n%s\n\n", entryLabel(entry.Kind), ansi.Strip(entry.Text))
		}
	}

	return b.String()
}

func (e *ExportService) exportedAt() string {
	return e.now().UTC().Format(exportTimestamp)
}

func entryLabel(kind historytypes.TurnKind) string {
	if kind == historytypes.UserTurn {
		return "User"
	}
	return "Assistant"
}

// GetGlobalExportService returns the global export service instance.
func GetGlobalExportService() (*ExportService, error) {
	serviceInterface, err := GetGlobalRegistry().GetService(ExportServiceName)
	if err != nil {
		return nil, fmt.Errorf("export service not registered: %w", err)
	}

	exportService, ok := serviceInterface.(*ExportService)
	if !ok {
		return nil, fmt.Errorf("service is not an ExportService")
	}

	return exportService, nil
}

func init() {
	// Register the ExportService with the global registry
	if err := GlobalRegistry.RegisterService(NewExportService()); err != nil {
		panic(fmt.Sprintf("failed to register export service: %v", err))
	}
}
