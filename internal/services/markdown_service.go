package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"chathistory/internal/logger"
)

// MarkdownServiceName is the registry name of the MarkdownService.
const MarkdownServiceName = "markdown"

// defaultWordWrap is the column at which rendered markdown wraps.
const defaultWordWrap = 80

// MarkdownService renders markdown exports for the terminal using Glamour.
type MarkdownService struct {
	initialized bool
	renderer    *glamour.TermRenderer
	wordWrap    int
}

// NewMarkdownService creates a new MarkdownService instance.
func NewMarkdownService() *MarkdownService {
	return &MarkdownService{
		initialized: false,
		renderer:    nil,
		wordWrap:    defaultWordWrap,
	}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return MarkdownServiceName
}

// Initialize sets up the MarkdownService with default configuration.
func (m *MarkdownService) Initialize() error {
	// Create a terminal renderer with auto-style detection
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.wordWrap),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	m.renderer = renderer
	m.initialized = true

	logger.Debug("MarkdownService initialized successfully")
	return nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}

	return rendered, nil
}

// RenderWithStyle renders markdown content with a specific glamour style.
// Supported styles include: "auto", "dark", "light", "notty", "ascii"
func (m *MarkdownService) RenderWithStyle(markdown string, style string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}

	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	if style == "auto" {
		return m.Render(markdown)
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(m.wordWrap),
	)
	if err != nil {
		logger.Debug("Failed to create renderer with style, falling back to default", "style", style, "error", err)
		return m.Render(markdown)
	}

	rendered, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown with style '%s': %w", style, err)
	}

	return rendered, nil
}

// RenderWithTheme renders markdown content with the glamour style matching a theme name.
func (m *MarkdownService) RenderWithTheme(markdown string, themeName string) (string, error) {
	return m.RenderWithStyle(markdown, MapThemeToGlamourStyle(themeName))
}

// MapThemeToGlamourStyle maps chathistory theme names to Glamour styles.
func MapThemeToGlamourStyle(themeName string) string {
	switch strings.ToLower(themeName) {
	case "dark":
		return "dark"
	case "light":
		return "light"
	case "plain":
		return "notty"
	default:
		return "auto"
	}
}

// GetGlobalMarkdownService returns the global markdown service instance.
func GetGlobalMarkdownService() (*MarkdownService, error) {
	serviceInterface, err := GetGlobalRegistry().GetService(MarkdownServiceName)
	if err != nil {
		return nil, fmt.Errorf("markdown service not registered: %w", err)
	}

	markdownService, ok := serviceInterface.(*MarkdownService)
	if !ok {
		return nil, fmt.Errorf("service is not a MarkdownService")
	}

	return markdownService, nil
}

func init() {
	// Register the MarkdownService with the global registry
	if err := GlobalRegistry.RegisterService(NewMarkdownService()); err != nil {
		panic(fmt.Sprintf("failed to register markdown service: %v", err))
	}
}
