package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences_Theme(t *testing.T) {
	ctx := context.Background()
	settings := newMemSettings()
	prefs := NewPreferences(settings)

	theme, err := prefs.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)

	next, err := prefs.ToggleTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, next)
	theme, err = prefs.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, theme)

	require.NoError(t, prefs.SetTheme(ctx, ThemeLight))
	assert.Error(t, prefs.SetTheme(ctx, "sepia"))

	require.NoError(t, settings.Set(ctx, "theme", "garbage"))
	theme, err = prefs.Theme(ctx)
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, theme)
}

func TestParseTheme(t *testing.T) {
	theme, ok := ParseTheme(" DARK ")
	assert.True(t, ok)
	assert.Equal(t, ThemeDark, theme)
	_, ok = ParseTheme("blue")
	assert.False(t, ok)
}
