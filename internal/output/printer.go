package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Printer is the main output handler that supports both plain and styled output.
// Styling is injected through a StyleProvider; without one, or in plain mode,
// output is exact text suitable for pipes and tests.
type Printer struct {
	styleProvider StyleProvider
	writer        io.Writer
	mode          Mode

	// Thread safety for concurrent output
	mu sync.Mutex
}

// NewPrinter creates a new Printer with the given options.
// By default, it writes to os.Stdout with automatic mode detection.
func NewPrinter(options ...Option) *Printer {
	p := &Printer{
		writer: os.Stdout,
		mode:   ModeAuto,
	}

	for _, opt := range options {
		opt(p)
	}

	return p
}

// Print outputs text without any semantic styling.
func (p *Printer) Print(text string) {
	p.output(SemanticPlain, text, false)
}

// Println outputs text with a newline without any semantic styling.
func (p *Printer) Println(text string) {
	p.output(SemanticPlain, text, true)
}

// Info outputs informational text with info styling.
func (p *Printer) Info(text string) {
	p.output(SemanticInfo, text, true)
}

// Success outputs success text with success styling (typically green).
func (p *Printer) Success(text string) {
	p.output(SemanticSuccess, text, true)
}

// Warning outputs warning text with warning styling (typically yellow).
func (p *Printer) Warning(text string) {
	p.output(SemanticWarning, text, true)
}

// Error outputs error text with error styling (typically red).
func (p *Printer) Error(text string) {
	p.output(SemanticError, text, true)
}

// Style renders text with the style of semantic without writing it.
// In plain mode the text is returned unchanged, so fixed-width cells stay aligned.
func (p *Printer) Style(semantic SemanticType, text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stylable() {
		return text
	}
	return p.styleProvider.GetStyle(string(semantic)).Render(text)
}

// IsStylable returns true if the printer applies styles.
func (p *Printer) IsStylable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stylable()
}

func (p *Printer) stylable() bool {
	if p.styleProvider == nil || !p.styleProvider.IsAvailable() {
		return false
	}
	switch p.mode {
	case ModeStyled:
		return true
	case ModeAuto:
		return ColorEnabled(p.writer)
	default:
		return false
	}
}

// output is the core output method that handles all rendering logic.
func (p *Printer) output(semantic SemanticType, text string, addNewline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var provider StyleProvider = NewPlainStyleProvider()
	if p.stylable() {
		provider = p.styleProvider
	}
	finalText := provider.GetStyle(string(semantic)).Render(text)

	if addNewline && !strings.HasSuffix(finalText, "\n") {
		finalText += "\n"
	}

	_, _ = fmt.Fprint(p.writer, finalText) // Ignore write errors for output operations
}
