package coordinator

import (
	"log/slog"
	"sync"
)

const (
	badgeOnText  = "ON"
	badgeOnColor = "#4CAF50"
)

// BadgeIndicator is the on/off streaming badge. Observers receive every
// change, which is how the metrics gauge and the page title follow it.
type BadgeIndicator struct {
	mu        sync.Mutex
	text      string
	color     string
	logger    *slog.Logger
	observers []func(enabled bool)
}

func NewBadgeIndicator(logger *slog.Logger) *BadgeIndicator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgeIndicator{logger: logger}
}

// OnChange registers fn to be called after every SetStreaming.
func (b *BadgeIndicator) OnChange(fn func(enabled bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

func (b *BadgeIndicator) SetStreaming(enabled bool) {
	b.mu.Lock()
	if enabled {
		b.text, b.color = badgeOnText, badgeOnColor
	} else {
		b.text = ""
	}
	observers := append([]func(bool){}, b.observers...)
	b.mu.Unlock()

	b.logger.Info("streaming indicator", "enabled", enabled)
	for _, fn := range observers {
		fn(enabled)
	}
}

// Badge returns the badge text and background color. Text is empty when off.
func (b *BadgeIndicator) Badge() (text, color string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text, b.color
}
