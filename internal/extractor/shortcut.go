package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"commentflow/internal/domain"
)

// KeyEvent is a keydown reported by the page.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
}

// Shortcut is a key combination such as Ctrl+Shift+S.
type Shortcut struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// ParseShortcut parses "Ctrl+Shift+S" style combinations. Modifier names
// are case-insensitive; exactly one non-modifier key is required.
func ParseShortcut(s string) (Shortcut, error) {
	var sc Shortcut
	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		switch strings.ToLower(part) {
		case "ctrl", "control":
			sc.Ctrl = true
		case "shift":
			sc.Shift = true
		case "alt", "option":
			sc.Alt = true
		case "meta", "cmd", "command":
			sc.Meta = true
		case "":
			return Shortcut{}, fmt.Errorf("invalid shortcut %q: empty key", s)
		default:
			if sc.Key != "" {
				return Shortcut{}, fmt.Errorf("invalid shortcut %q: more than one key", s)
			}
			sc.Key = strings.ToLower(part)
		}
	}
	if sc.Key == "" {
		return Shortcut{}, fmt.Errorf("invalid shortcut %q: no key", s)
	}
	return sc, nil
}

// Matches reports whether ev is exactly this combination.
func (sc Shortcut) Matches(ev KeyEvent) bool {
	return strings.ToLower(ev.Key) == sc.Key &&
		ev.Ctrl == sc.Ctrl && ev.Shift == sc.Shift &&
		ev.Alt == sc.Alt && ev.Meta == sc.Meta
}

func (sc Shortcut) String() string {
	var parts []string
	if sc.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if sc.Shift {
		parts = append(parts, "Shift")
	}
	if sc.Alt {
		parts = append(parts, "Alt")
	}
	if sc.Meta {
		parts = append(parts, "Meta")
	}
	return strings.Join(append(parts, strings.ToUpper(sc.Key)), "+")
}

// ToggleOnShortcut toggles streaming when ev matches sc. It reports
// whether the event was consumed.
func ToggleOnShortcut(ctx context.Context, caller domain.Caller, sc Shortcut, ev KeyEvent, logger *slog.Logger) bool {
	if !sc.Matches(ev) {
		return false
	}
	if !caller.Alive() {
		return true
	}
	resp, err := caller.Call(ctx, "shortcut", domain.ToggleIsEnabledStreaming{})
	if err != nil {
		logger.Error("failed to toggle streaming", "err", err)
		return true
	}
	if resp.Flag {
		logger.Info("streaming enabled", "shortcut", sc.String())
	} else {
		logger.Info("streaming disabled", "shortcut", sc.String())
	}
	return true
}
