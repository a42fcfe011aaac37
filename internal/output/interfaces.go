// Package output provides console output and fixed-width table formatting for chathistory.
// It uses dependency injection to support optional styling while keeping plain output exact.
package output

// StyleProvider is the interface that styling services (like ThemeService) implement
// to provide styled text rendering capabilities.
// The output package depends only on this interface, not on concrete services.
type StyleProvider interface {
	// GetStyle returns a TextStyle for the given semantic type.
	GetStyle(semantic string) TextStyle

	// IsAvailable returns true if the style provider is ready to provide styles.
	IsAvailable() bool
}

// TextStyle represents the capability to render text with styling.
// This interface is implemented by lipgloss.Style.
type TextStyle interface {
	Render(strs ...string) string
}

// Mode defines different output modes the printer can operate in.
type Mode int

const (
	// ModeAuto styles output only when the writer is a color terminal
	ModeAuto Mode = iota

	// ModeStyled forces styled output
	ModeStyled

	// ModePlain forces plain text output
	ModePlain
)

// SemanticType defines the semantic meaning of output for consistent styling.
type SemanticType string

const (
	SemanticPlain   SemanticType = "plain"
	SemanticInfo    SemanticType = "info"
	SemanticSuccess SemanticType = "success"
	SemanticWarning SemanticType = "warning"
	SemanticError   SemanticType = "error"

	// Table and transcript elements
	SemanticHeader    SemanticType = "header"
	SemanticID        SemanticType = "id"
	SemanticPath      SemanticType = "path"
	SemanticMuted     SemanticType = "muted"
	SemanticUser      SemanticType = "user"
	SemanticAssistant SemanticType = "assistant"
)
