package theme

import (
	"errors"
	"regexp"
	"strings"
)

// Palette holds the console colours.
type Palette struct {
	Primary      string // accent for buttons and focus rings
	PrimaryLight string
	PrimaryDark  string
	Background   string
	Paper        string
	Text         string
	TextMuted    string
	Success      string
	Warning      string
	Error        string
}

// Typography holds the font tokens.
type Typography struct {
	FontFamily    string
	HeadingWeight int
	BorderRadius  int // px
}

// Theme is the presentation configuration handed to the renderer.
// It is passed explicitly to the web layer; templates never read ambient style state.
// INVARIANT: every palette entry is a #rgb or #rrggbb colour.
type Theme struct {
	Name       string
	Palette    Palette
	Typography Typography
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Default returns the dark red club theme.
func Default() Theme {
	return Theme{
		Name: "club-dark",
		Palette: Palette{
			Primary:      "#ff3b3b",
			PrimaryLight: "#ff6b6b",
			PrimaryDark:  "#cc0000",
			Background:   "#0a0a0a",
			Paper:        "#1a1a1a",
			Text:         "#ffffff",
			TextMuted:    "#d9d9d9",
			Success:      "#00ff88",
			Warning:      "#ffa500",
			Error:        "#ff3b3b",
		},
		Typography: Typography{
			FontFamily:    `"Inter", -apple-system, "Segoe UI", "Roboto", sans-serif`,
			HeadingWeight: 700,
			BorderRadius:  12,
		},
	}
}

// Validate checks the theme's invariants.
// PRE: none
// POST: returns nil if valid, error describing the first violation otherwise
func (t Theme) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("theme name cannot be empty")
	}
	for name, c := range t.colours() {
		if !hexColor.MatchString(c) {
			return errors.New("theme colour " + name + " must be a hex colour")
		}
	}
	if t.Typography.FontFamily == "" {
		return errors.New("theme font family cannot be empty")
	}
	if t.Typography.BorderRadius < 0 {
		return errors.New("theme border radius cannot be negative")
	}
	return nil
}

// CSSVariables returns the palette as CSS custom properties, keyed without the leading dashes.
func (t Theme) CSSVariables() map[string]string {
	vars := t.colours()
	vars["font-family"] = t.Typography.FontFamily
	return vars
}

func (t Theme) colours() map[string]string {
	p := t.Palette
	return map[string]string{
		"primary":       p.Primary,
		"primary-light": p.PrimaryLight,
		"primary-dark":  p.PrimaryDark,
		"background":    p.Background,
		"paper":         p.Paper,
		"text":          p.Text,
		"text-muted":    p.TextMuted,
		"success":       p.Success,
		"warning":       p.Warning,
		"error":         p.Error,
	}
}
