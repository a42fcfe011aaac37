// Package historytypes defines theme-related data structures for chathistory's table rendering.
package historytypes

// ThemeConfig represents a theme configuration loaded from YAML.
type ThemeConfig struct {
	// Name is the theme identifier (e.g., "default", "plain")
	Name string `yaml:"name" json:"name"`

	// Description provides a brief description of the theme
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Styles contains the style definitions for the rendered elements
	Styles ThemeStyles `yaml:"styles" json:"styles"`
}

// ThemeStyles defines the styling configuration for each rendered element.
type ThemeStyles struct {
	// Header style for table column headers and export titles
	Header StyleConfig `yaml:"header" json:"header"`

	// ID style for conversation identifiers
	ID StyleConfig `yaml:"id" json:"id"`

	// Path style for directory paths
	Path StyleConfig `yaml:"path" json:"path"`

	// Muted style for timestamps and counters
	Muted StyleConfig `yaml:"muted" json:"muted"`

	// User style for user message labels
	User StyleConfig `yaml:"user" json:"user"`

	// Assistant style for assistant message labels
	Assistant StyleConfig `yaml:"assistant" json:"assistant"`

	Success StyleConfig `yaml:"success" json:"success"`
	Warning StyleConfig `yaml:"warning" json:"warning"`
	Error   StyleConfig `yaml:"error" json:"error"`
	Info    StyleConfig `yaml:"info" json:"info"`
}

// StyleConfig defines the visual styling for an element.
// Colors can be a plain color string or an adaptive {light, dark} object.
type StyleConfig struct {
	Foreground interface{} `yaml:"foreground,omitempty" json:"foreground,omitempty"`
	Background interface{} `yaml:"background,omitempty" json:"background,omitempty"`
	Bold       *bool       `yaml:"bold,omitempty" json:"bold,omitempty"`
	Italic     *bool       `yaml:"italic,omitempty" json:"italic,omitempty"`
	Underline  *bool       `yaml:"underline,omitempty" json:"underline,omitempty"`
}

// ThemeFile represents a complete theme file loaded from YAML.
type ThemeFile struct {
	ThemeConfig `yaml:",inline" json:",inline"`
}
