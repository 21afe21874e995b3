package coordinator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"
)

// DispatcherConfig configures the delivery trigger.
type DispatcherConfig struct {
	Interval time.Duration // retry tick while a comment is pending, default 2s
	Logger   *slog.Logger
}

// Dispatcher issues InjectCommentToFocusedTab: immediately after each
// stored comment, and on every tick while a comment is pending and no
// render is in flight (covers comments stored while no tab had focus).
type Dispatcher struct {
	caller   domain.Caller
	slot     *Slot
	interval time.Duration
	kick     chan struct{}
	inflight atomic.Bool
	logger   *slog.Logger
}

// NewDispatcher subscribes to events and returns a dispatcher that
// delivers through caller. Start must be called to run it.
func NewDispatcher(cfg DispatcherConfig, caller domain.Caller, slot *Slot, events *bus.EventBus) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Dispatcher{
		caller:   caller,
		slot:     slot,
		interval: cfg.Interval,
		kick:     make(chan struct{}, 1),
		logger:   cfg.Logger,
	}

	// Handlers run on the coordinator goroutine; they must not block.
	events.On(bus.EventCommentStored, func(bus.Event) { d.trigger() })
	events.On(bus.EventCommentInjected, func(bus.Event) { d.inflight.Store(true) })
	events.On(bus.EventCommentCleared, func(bus.Event) { d.inflight.Store(false) })
	events.On(bus.EventRenderFinished, func(bus.Event) { d.inflight.Store(false) })
	events.On(bus.EventRenderFailed, func(bus.Event) { d.inflight.Store(false) })
	return d
}

func (d *Dispatcher) trigger() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start runs the delivery loop. Blocks until ctx is cancelled or the
// coordinator is gone.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("dispatcher started", "interval", d.interval)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return
		case <-d.kick:
			if !d.deliver() {
				return
			}
		case <-ticker.C:
			if d.slot.Len() == 0 || d.inflight.Load() {
				continue
			}
			if !d.deliver() {
				return
			}
		}
	}
}

// deliver reports false once the coordinator can no longer be reached.
func (d *Dispatcher) deliver() bool {
	if err := d.caller.Post("dispatcher", domain.InjectCommentToFocusedTab{}); err != nil {
		if !d.caller.Alive() {
			d.logger.Info("dispatcher stopped: coordinator gone")
			return false
		}
		d.logger.Warn("delivery request failed", "err", err)
	}
	return true
}
