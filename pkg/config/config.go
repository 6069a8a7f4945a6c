// Package config persists FlowSTT's user-facing settings to a JSON file
// in the platform configuration directory, shared by the CLI and the
// background service. Grounded on original_source/src-common/src/config.rs.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/keathmilligan/flowstt-core/pkg/hotkey"
	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

// ThemeMode selects the UI's color scheme.
type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

const (
	defaultAutoPasteEnabled  = true
	defaultAutoPasteDelayMS  = 50
	configDirName            = "flowstt"
	configFileName           = "config.json"
)

// Config is the service configuration that persists across restarts.
type Config struct {
	TranscriptionMode pipeline.TranscriptionMode `json:"transcription_mode"`
	PttHotkeys        []hotkey.Combination       `json:"ptt_hotkeys"`
	AutoToggleHotkeys []hotkey.Combination       `json:"auto_toggle_hotkeys"`
	AutoPasteEnabled  bool                       `json:"auto_paste_enabled"`
	AutoPasteDelayMS  uint32                     `json:"auto_paste_delay_ms"`
	ThemeMode         ThemeMode                  `json:"theme_mode"`
}

// legacyConfig mirrors every shape a config.json has ever been written
// in, including the pre-migration single ptt_key field. New-format files
// parse into it just as well since ptt_hotkeys/auto_toggle_hotkeys round-trip
// unchanged.
type legacyConfig struct {
	TranscriptionMode pipeline.TranscriptionMode `json:"transcription_mode"`
	PttKey            *hotkey.KeyCode            `json:"ptt_key,omitempty"`
	PttHotkeys        []hotkey.Combination       `json:"ptt_hotkeys,omitempty"`
	AutoToggleHotkeys []hotkey.Combination       `json:"auto_toggle_hotkeys,omitempty"`
	AutoPasteEnabled  *bool                      `json:"auto_paste_enabled,omitempty"`
	AutoPasteDelayMS  *uint32                    `json:"auto_paste_delay_ms,omitempty"`
	ThemeMode         *ThemeMode                 `json:"theme_mode,omitempty"`
}

// Path returns the config file location for the current platform,
// deferring to os.UserConfigDir (Linux: $XDG_CONFIG_HOME or
// ~/.config; macOS: ~/Library/Application Support; Windows: %AppData%).
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, configDirName, configFileName)
}

// DefaultWithHotkeys returns a default configuration carrying the
// default hotkey binding, used whenever no config file can be read.
func DefaultWithHotkeys() Config {
	return Config{
		TranscriptionMode: pipeline.PushToTalk,
		PttHotkeys:        []hotkey.Combination{hotkey.Default()},
		AutoToggleHotkeys: nil,
		AutoPasteEnabled:  defaultAutoPasteEnabled,
		AutoPasteDelayMS:  defaultAutoPasteDelayMS,
		ThemeMode:         ThemeAuto,
	}
}

// Load reads the config file, migrating the legacy single ptt_key field
// to ptt_hotkeys if present. Any read or parse failure yields the
// default configuration rather than an error, matching the original's
// fail-open behavior: a corrupt config must never block startup.
func Load() Config {
	path := Path()

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultWithHotkeys()
	}

	var legacy legacyConfig
	if err := json.Unmarshal(data, &legacy); err != nil {
		return DefaultWithHotkeys()
	}
	return fromLegacy(legacy)
}

// NeedsSetup reports whether no config file exists yet, used to decide
// whether to show first-run setup.
func NeedsSetup() bool {
	_, err := os.Stat(Path())
	return os.IsNotExist(err)
}

// Save writes cfg to the config file, creating its parent directory if
// necessary.
func (c Config) Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fromLegacy(legacy legacyConfig) Config {
	var pttHotkeys []hotkey.Combination
	switch {
	case len(legacy.PttHotkeys) > 0:
		pttHotkeys = legacy.PttHotkeys
	case legacy.PttKey != nil:
		pttHotkeys = []hotkey.Combination{hotkey.Single(*legacy.PttKey)}
	default:
		pttHotkeys = []hotkey.Combination{hotkey.Default()}
	}

	autoPasteEnabled := defaultAutoPasteEnabled
	if legacy.AutoPasteEnabled != nil {
		autoPasteEnabled = *legacy.AutoPasteEnabled
	}
	autoPasteDelayMS := uint32(defaultAutoPasteDelayMS)
	if legacy.AutoPasteDelayMS != nil {
		autoPasteDelayMS = *legacy.AutoPasteDelayMS
	}
	theme := ThemeAuto
	if legacy.ThemeMode != nil {
		theme = *legacy.ThemeMode
	}

	return Config{
		TranscriptionMode: legacy.TranscriptionMode,
		PttHotkeys:        pttHotkeys,
		AutoToggleHotkeys: legacy.AutoToggleHotkeys,
		AutoPasteEnabled:  autoPasteEnabled,
		AutoPasteDelayMS:  autoPasteDelayMS,
		ThemeMode:         theme,
	}
}
