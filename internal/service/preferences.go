package service

import (
	"context"
	"fmt"
	"strings"
)

// Theme is the global look preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

const themeKey = "theme"

// ParseTheme accepts light or dark in any casing.
func ParseTheme(raw string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight, true
	case ThemeDark:
		return ThemeDark, true
	default:
		return "", false
	}
}

// Preferences reads and writes global settings.
type Preferences struct {
	settings SettingStore
}

func NewPreferences(settings SettingStore) *Preferences {
	return &Preferences{settings: settings}
}

// Theme returns the stored theme, light when unset or unknown.
func (p *Preferences) Theme(ctx context.Context) (Theme, error) {
	raw, ok, err := p.settings.Get(ctx, themeKey)
	if err != nil {
		return ThemeLight, err
	}
	if !ok {
		return ThemeLight, nil
	}
	theme, ok := ParseTheme(raw)
	if !ok {
		return ThemeLight, nil
	}
	return theme, nil
}

func (p *Preferences) SetTheme(ctx context.Context, theme Theme) error {
	if _, ok := ParseTheme(string(theme)); !ok {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return p.settings.Set(ctx, themeKey, string(theme))
}

// ToggleTheme switches between light and dark and returns the new theme.
func (p *Preferences) ToggleTheme(ctx context.Context) (Theme, error) {
	current, err := p.Theme(ctx)
	if err != nil {
		return current, err
	}
	next := ThemeDark
	if current == ThemeDark {
		next = ThemeLight
	}
	return next, p.SetTheme(ctx, next)
}
