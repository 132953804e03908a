// Package config handles configuration loading and management for the
// window manager: defaults, file loading through viper, validation and
// change watching.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ActionKind names a user-triggerable operation.
type ActionKind string

const (
	ActionFocusNextWindow  ActionKind = "focus-next-window"
	ActionFocusPrevWindow  ActionKind = "focus-prev-window"
	ActionFocusNextMonitor ActionKind = "focus-next-monitor"
	ActionSendToFront      ActionKind = "send-to-front"
	ActionCycleLayout      ActionKind = "cycle-layout"
	ActionToggleTabbed     ActionKind = "toggle-tabbed"
	ActionToggleFloating   ActionKind = "toggle-floating"
	ActionToggleFullscreen ActionKind = "toggle-fullscreen"
	ActionResizeWindow     ActionKind = "resize-window"
	ActionSendToWorkspace  ActionKind = "send-to-workspace"
	ActionToggleWorkspace  ActionKind = "toggle-workspace"
	ActionToggleBar        ActionKind = "toggle-bar"
	ActionCloseWindow      ActionKind = "close-window"
	ActionDragMove         ActionKind = "drag-move"
	ActionSpawn            ActionKind = "spawn"
	ActionRestart          ActionKind = "restart"
	ActionQuit             ActionKind = "quit"
)

// Action is one bound operation with its arguments.
type Action struct {
	Kind ActionKind `mapstructure:"kind"`
	// Index is the target workspace for workspace actions.
	Index int `mapstructure:"index"`
	// Diff is the size-modifier delta for resize actions.
	Diff float32 `mapstructure:"diff"`
	// Command is the argv for spawn actions.
	Command []string `mapstructure:"command"`
}

// KeyBinding maps a modifier mask and keysym to an action.
type KeyBinding struct {
	Mods   uint16 `mapstructure:"mods"`
	Keysym uint32 `mapstructure:"keysym"`
	Action Action `mapstructure:"action"`
}

// MouseTarget names where on screen a mouse binding applies.
type MouseTarget string

const (
	TargetClientWindow MouseTarget = "client-window"
	TargetWorkspaceTag MouseTarget = "workspace-tag"
	TargetShortcut     MouseTarget = "shortcut"
	TargetStatus       MouseTarget = "status"
	TargetWindowTitle  MouseTarget = "window-title"
)

// MouseBinding maps a button, modifier mask and target to an action.
type MouseBinding struct {
	Button uint8       `mapstructure:"button"`
	Mods   uint16      `mapstructure:"mods"`
	Target MouseTarget `mapstructure:"target"`
	Action Action      `mapstructure:"action"`
}

// WorkspaceConfig seeds one workspace.
type WorkspaceConfig struct {
	Name string `mapstructure:"name"`
	// DefaultDrawMode is left-leader, center-leader or tabbed.
	DefaultDrawMode string `mapstructure:"default_draw_mode"`
	// ClassNames maps clients with these WM_CLASS names onto this
	// workspace at map time.
	ClassNames []string `mapstructure:"class_names"`
}

// TilingModifiersConfig are the base size weights applied to every
// workspace until the user resizes.
type TilingModifiersConfig struct {
	LeftLeader      float32   `mapstructure:"left_leader"`
	CenterLeader    float32   `mapstructure:"center_leader"`
	VerticallyTiled []float32 `mapstructure:"vertically_tiled"`
}

// ColorsConfig is the palette, as #rrggbb strings.
type ColorsConfig struct {
	WindowBorder        string `mapstructure:"window_border"`
	WindowBorderFocused string `mapstructure:"window_border_focused"`
	WindowBorderUrgent  string `mapstructure:"window_border_urgent"`
	BarBackground       string `mapstructure:"bar_background"`
	BarText             string `mapstructure:"bar_text"`
	TagFocused          string `mapstructure:"tag_focused"`
	TagUrgent           string `mapstructure:"tag_urgent"`
	TabBarFocused       string `mapstructure:"tab_bar_focused"`
	TabBarUnfocused     string `mapstructure:"tab_bar_unfocused"`
	ShortcutBackground  string `mapstructure:"shortcut_background"`
	StatusBackground    string `mapstructure:"status_background"`
}

// BarConfig controls the per-monitor bars.
type BarConfig struct {
	Height        int      `mapstructure:"height"`
	TabBarHeight  int      `mapstructure:"tab_bar_height"`
	TagPadding    int      `mapstructure:"tag_padding"`
	ShowOnStartup bool     `mapstructure:"show_on_startup"`
	Shortcuts     []string `mapstructure:"shortcuts"`
}

// WindowingConfig controls tiling geometry and the close escalation.
type WindowingConfig struct {
	Padding      int           `mapstructure:"padding"`
	PadOnSingle  bool          `mapstructure:"pad_on_single"`
	BorderWidth  int           `mapstructure:"border_width"`
	DestroyAfter time.Duration `mapstructure:"destroy_after"`
	KillAfter    time.Duration `mapstructure:"kill_after"`
}

// StatusCheck is one periodic status segment on the bar. Content
// collection is external; the WM only schedules redraws.
type StatusCheck struct {
	Name     string        `mapstructure:"name"`
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config represents the complete window manager configuration.
type Config struct {
	Logging         LoggingConfig         `mapstructure:"logging"`
	Bar             BarConfig             `mapstructure:"bar"`
	Windowing       WindowingConfig       `mapstructure:"windowing"`
	Colors          ColorsConfig          `mapstructure:"colors"`
	Workspaces      []WorkspaceConfig     `mapstructure:"workspaces"`
	TilingModifiers TilingModifiersConfig `mapstructure:"tiling_modifiers"`
	Keys            []KeyBinding          `mapstructure:"keys"`
	Mouse           []MouseBinding        `mapstructure:"mouse"`
	StatusChecks    []StatusCheck         `mapstructure:"status_checks"`
}

// Manager handles configuration loading and management.
type Manager struct {
	viper      *viper.Viper
	configPath string
}

// NewManager creates a configuration manager. configPath may be empty, in
// which case only defaults and the standard search paths apply.
func NewManager(configPath string) *Manager {
	v := viper.New()
	v.SetConfigName("canopy")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("$HOME/.config/canopy")
		v.AddConfigPath("/etc/canopy")
	}
	v.SetEnvPrefix("CANOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Manager{viper: v, configPath: configPath}
}

// Load reads configuration from file over defaults and validates it.
func (m *Manager) Load() (*Config, error) {
	m.setDefaults()
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	var cfg Config
	if err := m.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Watch invokes fn with the freshly loaded configuration whenever the
// config file changes on disk. Invalid updates are dropped.
func (m *Manager) Watch(fn func(*Config)) {
	m.viper.OnConfigChange(func(fsnotify.Event) {
		var cfg Config
		if err := m.viper.Unmarshal(&cfg); err != nil {
			return
		}
		if err := Validate(&cfg); err != nil {
			return
		}
		fn(&cfg)
	})
	m.viper.WatchConfig()
}

func (m *Manager) setDefaults() {
	m.viper.SetDefault("logging.level", "info")
	m.viper.SetDefault("logging.format", "text")
	m.viper.SetDefault("bar.height", 20)
	m.viper.SetDefault("bar.tab_bar_height", 20)
	m.viper.SetDefault("bar.tag_padding", 6)
	m.viper.SetDefault("bar.show_on_startup", true)
	m.viper.SetDefault("windowing.padding", 4)
	m.viper.SetDefault("windowing.pad_on_single", true)
	m.viper.SetDefault("windowing.border_width", 2)
	m.viper.SetDefault("windowing.destroy_after", 2*time.Second)
	m.viper.SetDefault("windowing.kill_after", 5*time.Second)
	m.viper.SetDefault("colors.window_border", "#282828")
	m.viper.SetDefault("colors.window_border_focused", "#83a598")
	m.viper.SetDefault("colors.window_border_urgent", "#cc241d")
	m.viper.SetDefault("colors.bar_background", "#1d2021")
	m.viper.SetDefault("colors.bar_text", "#ebdbb2")
	m.viper.SetDefault("colors.tag_focused", "#458588")
	m.viper.SetDefault("colors.tag_urgent", "#cc241d")
	m.viper.SetDefault("colors.tab_bar_focused", "#458588")
	m.viper.SetDefault("colors.tab_bar_unfocused", "#1d2021")
	m.viper.SetDefault("colors.shortcut_background", "#1d2021")
	m.viper.SetDefault("colors.status_background", "#1d2021")
	m.viper.SetDefault("tiling_modifiers.left_leader", 2.0)
	m.viper.SetDefault("tiling_modifiers.center_leader", 2.0)
	m.viper.SetDefault("tiling_modifiers.vertically_tiled",
		[]float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	workspaces := make([]map[string]interface{}, 0, 9)
	for i := 1; i <= 9; i++ {
		workspaces = append(workspaces, map[string]interface{}{
			"name":              strconv.Itoa(i),
			"default_draw_mode": "left-leader",
		})
	}
	m.viper.SetDefault("workspaces", workspaces)
}

// Validate checks cross-field constraints the type system cannot.
func Validate(cfg *Config) error {
	if len(cfg.Workspaces) == 0 {
		return fmt.Errorf("at least one workspace is required")
	}
	for i, ws := range cfg.Workspaces {
		switch ws.DefaultDrawMode {
		case "left-leader", "center-leader", "tabbed":
		default:
			return fmt.Errorf("workspace %d: unknown draw mode %q", i, ws.DefaultDrawMode)
		}
		if ws.Name == "" {
			return fmt.Errorf("workspace %d: empty name", i)
		}
	}
	if cfg.TilingModifiers.LeftLeader <= 0 || cfg.TilingModifiers.CenterLeader <= 0 {
		return fmt.Errorf("tiling modifiers must be strictly positive")
	}
	for i, v := range cfg.TilingModifiers.VerticallyTiled {
		if v <= 0 {
			return fmt.Errorf("vertical tiling modifier %d must be strictly positive", i)
		}
	}
	if cfg.Windowing.BorderWidth < 0 || cfg.Windowing.Padding < 0 {
		return fmt.Errorf("border width and padding cannot be negative")
	}
	if cfg.Windowing.DestroyAfter <= 0 || cfg.Windowing.KillAfter <= 0 {
		return fmt.Errorf("escalation timeouts must be positive")
	}
	if cfg.Bar.Height <= 0 || cfg.Bar.TabBarHeight <= 0 {
		return fmt.Errorf("bar heights must be positive")
	}
	if _, err := ParseColors(&cfg.Colors); err != nil {
		return err
	}
	return nil
}

// Palette is the parsed color palette as X pixel values.
type Palette struct {
	WindowBorder        uint32
	WindowBorderFocused uint32
	WindowBorderUrgent  uint32
	BarBackground       uint32
	BarText             uint32
	TagFocused          uint32
	TagUrgent           uint32
	TabBarFocused       uint32
	TabBarUnfocused     uint32
	ShortcutBackground  uint32
	StatusBackground    uint32
}

// ParseColors converts the configured #rrggbb strings into pixel values.
func ParseColors(c *ColorsConfig) (*Palette, error) {
	p := &Palette{}
	for _, slot := range []struct {
		name string
		src  string
		dst  *uint32
	}{
		{"window_border", c.WindowBorder, &p.WindowBorder},
		{"window_border_focused", c.WindowBorderFocused, &p.WindowBorderFocused},
		{"window_border_urgent", c.WindowBorderUrgent, &p.WindowBorderUrgent},
		{"bar_background", c.BarBackground, &p.BarBackground},
		{"bar_text", c.BarText, &p.BarText},
		{"tag_focused", c.TagFocused, &p.TagFocused},
		{"tag_urgent", c.TagUrgent, &p.TagUrgent},
		{"tab_bar_focused", c.TabBarFocused, &p.TabBarFocused},
		{"tab_bar_unfocused", c.TabBarUnfocused, &p.TabBarUnfocused},
		{"shortcut_background", c.ShortcutBackground, &p.ShortcutBackground},
		{"status_background", c.StatusBackground, &p.StatusBackground},
	} {
		pixel, err := ParseHexColor(slot.src)
		if err != nil {
			return nil, fmt.Errorf("color %s: %w", slot.name, err)
		}
		*slot.dst = pixel
	}
	return p, nil
}

// ParseHexColor parses a #rrggbb string into a pixel value.
func ParseHexColor(s string) (uint32, error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, fmt.Errorf("malformed color %q, want #rrggbb", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed color %q: %w", s, err)
	}
	return uint32(v), nil
}
