package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"chathistory/internal/data/embedded"
	"chathistory/internal/logger"
	"chathistory/internal/output"
	"chathistory/pkg/historytypes"
)

// ThemeServiceName is the registry name of the ThemeService.
const ThemeServiceName = "theme"

// ThemeService provides theme management for chathistory styling.
// It maintains theme objects that commands hand to the output printer.
type ThemeService struct {
	initialized bool
	themes      map[string]*Theme
}

// Theme defines color schemes and styles for text rendering.
type Theme struct {
	Name      string
	Header    lipgloss.Style
	ID        lipgloss.Style
	Path      lipgloss.Style
	Muted     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
}

// NewThemeService creates a new ThemeService instance with themes loaded from YAML.
func NewThemeService() *ThemeService {
	service := &ThemeService{
		initialized: false,
		themes:      make(map[string]*Theme),
	}
	service.loadThemesFromYAML()
	return service
}

// Name returns the service name "theme" for registration.
func (t *ThemeService) Name() string {
	return ThemeServiceName
}

// Initialize sets up the ThemeService for operation.
func (t *ThemeService) Initialize() error {
	t.initialized = true
	return nil
}

// loadThemesFromYAML loads themes from embedded YAML files
func (t *ThemeService) loadThemesFromYAML() {
	themeFiles := map[string][]byte{
		"default": embedded.DefaultThemeData,
		"dark":    embedded.DarkThemeData,
		"light":   embedded.LightThemeData,
		"plain":   embedded.PlainThemeData,
	}

	for themeName, themeData := range themeFiles {
		theme, err := t.loadThemeFile(themeData)
		if err != nil {
			logger.Error("Failed to load theme", "theme", themeName, "error", err)
			t.themes[themeName] = t.createFallbackTheme(themeName)
			continue
		}
		t.themes[themeName] = theme
	}

	// Ensure we always have a plain theme as fallback
	if _, exists := t.themes["plain"]; !exists {
		t.themes["plain"] = t.createFallbackTheme("plain")
	}
}

// loadThemeFile loads and parses an individual theme file from embedded YAML data.
func (t *ThemeService) loadThemeFile(data []byte) (*Theme, error) {
	var themeFile historytypes.ThemeFile

	if err := yaml.Unmarshal(data, &themeFile); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	if themeFile.Name == "" {
		return nil, fmt.Errorf("theme file has no name")
	}

	return t.convertThemeConfig(&themeFile.ThemeConfig), nil
}

// convertThemeConfig converts a ThemeConfig from YAML to a Theme with lipgloss styles.
func (t *ThemeService) convertThemeConfig(config *historytypes.ThemeConfig) *Theme {
	return &Theme{
		Name:      config.Name,
		Header:    t.createStyle(config.Styles.Header),
		ID:        t.createStyle(config.Styles.ID),
		Path:      t.createStyle(config.Styles.Path),
		Muted:     t.createStyle(config.Styles.Muted),
		User:      t.createStyle(config.Styles.User),
		Assistant: t.createStyle(config.Styles.Assistant),
		Success:   t.createStyle(config.Styles.Success),
		Warning:   t.createStyle(config.Styles.Warning),
		Error:     t.createStyle(config.Styles.Error),
		Info:      t.createStyle(config.Styles.Info),
	}
}

// createStyle converts a StyleConfig to a lipgloss.Style.
func (t *ThemeService) createStyle(config historytypes.StyleConfig) lipgloss.Style {
	style := lipgloss.NewStyle()

	if config.Foreground != nil {
		if color := t.parseColor(config.Foreground); color != nil {
			style = style.Foreground(color)
		}
	}

	if config.Background != nil {
		if color := t.parseColor(config.Background); color != nil {
			style = style.Background(color)
		}
	}

	if config.Bold != nil && *config.Bold {
		style = style.Bold(true)
	}
	if config.Italic != nil && *config.Italic {
		style = style.Italic(true)
	}
	if config.Underline != nil && *config.Underline {
		style = style.Underline(true)
	}

	return style
}

// parseColor parses a color value that can be a string or a {light, dark} map.
func (t *ThemeService) parseColor(colorValue interface{}) lipgloss.TerminalColor {
	switch v := colorValue.(type) {
	case string:
		return lipgloss.Color(v)
	case map[string]interface{}:
		if light, hasLight := v["light"].(string); hasLight {
			if dark, hasDark := v["dark"].(string); hasDark {
				return lipgloss.AdaptiveColor{Light: light, Dark: dark}
			}
		}
		return nil
	default:
		return nil
	}
}

// createFallbackTheme creates a basic plain theme for fallback scenarios.
func (t *ThemeService) createFallbackTheme(name string) *Theme {
	plain := lipgloss.NewStyle()
	return &Theme{
		Name:      name,
		Header:    plain,
		ID:        plain,
		Path:      plain,
		Muted:     plain,
		User:      plain,
		Assistant: plain,
		Success:   plain,
		Warning:   plain,
		Error:     plain,
		Info:      plain,
	}
}

// GetAvailableThemes returns the sorted names of the loaded themes.
func (t *ThemeService) GetAvailableThemes() []string {
	if !t.initialized {
		return []string{}
	}

	themes := make([]string, 0, len(t.themes))
	for name := range t.themes {
		themes = append(themes, name)
	}
	sort.Strings(themes)
	return themes
}

// GetThemeByName retrieves a theme by case-insensitive name. Unknown names and an
// uninitialized service yield the plain theme.
func (t *ThemeService) GetThemeByName(theme string) *Theme {
	if !t.initialized {
		return t.createFallbackTheme("plain")
	}

	normalizedTheme := strings.ToLower(strings.TrimSpace(theme))
	if normalizedTheme == "" {
		normalizedTheme = "plain"
	}

	if themeObj, exists := t.themes[normalizedTheme]; exists {
		return themeObj
	}

	logger.Debug("Invalid theme requested, using plain theme", "theme", theme, "available", t.GetAvailableThemes())
	return t.themes["plain"]
}

// GetStyle implements output.StyleProvider.
func (th *Theme) GetStyle(semantic string) output.TextStyle {
	switch output.SemanticType(semantic) {
	case output.SemanticHeader:
		return th.Header
	case output.SemanticID:
		return th.ID
	case output.SemanticPath:
		return th.Path
	case output.SemanticMuted:
		return th.Muted
	case output.SemanticUser:
		return th.User
	case output.SemanticAssistant:
		return th.Assistant
	case output.SemanticSuccess:
		return th.Success
	case output.SemanticWarning:
		return th.Warning
	case output.SemanticError:
		return th.Error
	case output.SemanticInfo:
		return th.Info
	default:
		return lipgloss.NewStyle()
	}
}

// IsAvailable implements output.StyleProvider.
func (th *Theme) IsAvailable() bool {
	return th != nil
}

// GetGlobalThemeService returns the global theme service instance.
func GetGlobalThemeService() (*ThemeService, error) {
	serviceInterface, err := GetGlobalRegistry().GetService(ThemeServiceName)
	if err != nil {
		return nil, fmt.Errorf("theme service not registered: %w", err)
	}

	themeService, ok := serviceInterface.(*ThemeService)
	if !ok {
		return nil, fmt.Errorf("service is not a ThemeService")
	}

	return themeService, nil
}

func init() {
	// Register the ThemeService with the global registry
	if err := GlobalRegistry.RegisterService(NewThemeService()); err != nil {
		panic(fmt.Sprintf("failed to register theme service: %v", err))
	}
}
