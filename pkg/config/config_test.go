package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	m := NewManager("")
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.Bar.Height)
	assert.True(t, cfg.Bar.ShowOnStartup)
	assert.Equal(t, 2*time.Second, cfg.Windowing.DestroyAfter)
	assert.Equal(t, 5*time.Second, cfg.Windowing.KillAfter)
	require.Len(t, cfg.Workspaces, 9)
	assert.Equal(t, "1", cfg.Workspaces[0].Name)
	assert.Equal(t, "left-leader", cfg.Workspaces[0].DefaultDrawMode)
	assert.InDelta(t, 2.0, cfg.TilingModifiers.LeftLeader, 1e-6)
	assert.NotEmpty(t, cfg.TilingModifiers.VerticallyTiled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canopy.yaml")
	content := `
bar:
  height: 24
windowing:
  padding: 8
  destroy_after: 1s
workspaces:
  - name: web
    default_draw_mode: tabbed
    class_names: [firefox]
  - name: term
    default_draw_mode: center-leader
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewManager(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Bar.Height)
	assert.Equal(t, 8, cfg.Windowing.Padding)
	assert.Equal(t, time.Second, cfg.Windowing.DestroyAfter)
	require.Len(t, cfg.Workspaces, 2)
	assert.Equal(t, []string{"firefox"}, cfg.Workspaces[0].ClassNames)
	assert.Equal(t, "center-leader", cfg.Workspaces[1].DefaultDrawMode)
}

func TestLoadRejectsBadDrawMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canopy.yaml")
	content := `
workspaces:
  - name: a
    default_draw_mode: spiral
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	_, err := NewManager(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draw mode")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		m := NewManager("")
		cfg, err := m.Load()
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Workspaces = nil
	assert.Error(t, Validate(cfg))

	cfg = base()
	cfg.TilingModifiers.LeftLeader = 0
	assert.Error(t, Validate(cfg))

	cfg = base()
	cfg.TilingModifiers.VerticallyTiled[2] = -1
	assert.Error(t, Validate(cfg))

	cfg = base()
	cfg.Windowing.KillAfter = 0
	assert.Error(t, Validate(cfg))

	cfg = base()
	cfg.Colors.BarText = "red"
	assert.Error(t, Validate(cfg))

	assert.NoError(t, Validate(base()))
}

func TestParseHexColor(t *testing.T) {
	v, err := ParseHexColor("#a1b2c3")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xa1b2c3), v)

	_, err = ParseHexColor("a1b2c3")
	assert.Error(t, err)
	_, err = ParseHexColor("#a1b2")
	assert.Error(t, err)
	_, err = ParseHexColor("#zzzzzz")
	assert.Error(t, err)
}

func TestParseColorsFillsEverySlot(t *testing.T) {
	cfg, err := NewManager("").Load()
	require.NoError(t, err)
	p, err := ParseColors(&cfg.Colors)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x83a598), p.WindowBorderFocused)
	assert.Equal(t, uint32(0x1d2021), p.BarBackground)
}
