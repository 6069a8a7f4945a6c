// Package hotkey defines platform-independent key codes and hotkey
// combinations used for push-to-talk and auto-mode-toggle bindings.
// The actual key-press monitoring backend is out of scope (spec.md
// Non-goals); this package only carries the configuration shape.
package hotkey

import "sort"

// KeyCode names a single physical key, independent of platform scan
// codes. Values marshal to the lowercase snake_case strings the config
// file and the legacy single-key field use.
type KeyCode string

const (
	RightAlt     KeyCode = "right_alt"
	LeftAlt      KeyCode = "left_alt"
	RightControl KeyCode = "right_control"
	LeftControl  KeyCode = "left_control"
	RightShift   KeyCode = "right_shift"
	LeftShift    KeyCode = "left_shift"
	CapsLock     KeyCode = "caps_lock"
	LeftMeta     KeyCode = "left_meta"
	RightMeta    KeyCode = "right_meta"

	F1  KeyCode = "f1"
	F2  KeyCode = "f2"
	F3  KeyCode = "f3"
	F4  KeyCode = "f4"
	F5  KeyCode = "f5"
	F6  KeyCode = "f6"
	F7  KeyCode = "f7"
	F8  KeyCode = "f8"
	F9  KeyCode = "f9"
	F10 KeyCode = "f10"
	F11 KeyCode = "f11"
	F12 KeyCode = "f12"
	F13 KeyCode = "f13"
	F14 KeyCode = "f14"
	F15 KeyCode = "f15"

	Space     KeyCode = "space"
	Enter     KeyCode = "enter"
	Escape    KeyCode = "escape"
	Tab       KeyCode = "tab"
	Backspace KeyCode = "backspace"
)

// DefaultKeyCode is the binding used when no hotkey has been configured,
// matching the original's macOS-friendly default.
const DefaultKeyCode = RightAlt

var modifiers = map[KeyCode]bool{
	LeftControl: true, RightControl: true,
	LeftAlt: true, RightAlt: true,
	LeftShift: true, RightShift: true,
	LeftMeta: true, RightMeta: true,
}

// IsModifier reports whether k is a modifier key, used to order a
// combination's Display() output with modifiers first.
func (k KeyCode) IsModifier() bool {
	return modifiers[k]
}

var displayNames = map[KeyCode]string{
	RightAlt: "Right Alt", LeftAlt: "Left Alt",
	RightControl: "Right Ctrl", LeftControl: "Left Ctrl",
	RightShift: "Right Shift", LeftShift: "Left Shift",
	CapsLock: "Caps Lock", LeftMeta: "Left Meta", RightMeta: "Right Meta",
	F13: "F13", F14: "F14", F15: "F15",
	Space: "Space", Enter: "Enter", Escape: "Escape", Tab: "Tab", Backspace: "Backspace",
}

// DisplayName returns a human-readable label, falling back to the raw
// code for keys that don't need a friendlier name (letters, digits,
// function keys F1-F12).
func (k KeyCode) DisplayName() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return string(k)
}

// Combination is a set of keys that must all be held simultaneously to
// trigger an action. Keys are de-duplicated; order doesn't affect
// equality or the persisted JSON shape.
type Combination struct {
	Keys []KeyCode `json:"keys"`
}

// New builds a Combination from keys, removing duplicates.
func New(keys ...KeyCode) Combination {
	seen := make(map[KeyCode]bool, len(keys))
	unique := make([]KeyCode, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return Combination{Keys: unique}
}

// Single builds a one-key Combination, the shape every legacy
// single-key binding migrates into.
func Single(key KeyCode) Combination {
	return Combination{Keys: []KeyCode{key}}
}

// Default returns the combination used when no configuration exists.
func Default() Combination {
	return Single(DefaultKeyCode)
}

// IsSubsetOf reports whether every key in the combination is present in
// pressed.
func (c Combination) IsSubsetOf(pressed map[KeyCode]bool) bool {
	for _, k := range c.Keys {
		if !pressed[k] {
			return false
		}
	}
	return true
}

// Display renders the combination as "Modifier + Modifier + Key",
// modifiers first, each group sorted by its KeyCode string.
func (c Combination) Display() string {
	var mods, others []KeyCode
	for _, k := range c.Keys {
		if k.IsModifier() {
			mods = append(mods, k)
		} else {
			others = append(others, k)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i] < mods[j] })
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })

	names := make([]string, 0, len(mods)+len(others))
	for _, k := range mods {
		names = append(names, k.DisplayName())
	}
	for _, k := range others {
		names = append(names, k.DisplayName())
	}

	out := ""
	for i, n := range names {
		if i > 0 {
			out += " + "
		}
		out += n
	}
	return out
}

func (c Combination) String() string { return c.Display() }
