// Package coordinator is the background side of the pipeline: it owns the
// pending comment slot and the preference cells, and answers requests from
// the extractor, the renderer and the CLI.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"commentflow/internal/bus"
	"commentflow/internal/domain"
)

// Config wires a Coordinator.
type Config struct {
	Store     domain.PreferenceStore
	Tabs      domain.TabHost   // nil disables injection
	Indicator domain.Indicator // nil disables the badge
	Events    *bus.EventBus    // nil disables events
	BurstSize int              // pending slot capacity, default 1
	Logger    *slog.Logger
}

// Coordinator routes requests to the slot, the store and the tab host.
type Coordinator struct {
	store     domain.PreferenceStore
	tabs      domain.TabHost
	indicator domain.Indicator
	events    *bus.EventBus
	slot      *Slot
	logger    *slog.Logger
}

func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		store:     cfg.Store,
		tabs:      cfg.Tabs,
		indicator: cfg.Indicator,
		events:    cfg.Events,
		slot:      NewSlot(cfg.BurstSize),
		logger:    cfg.Logger,
	}
}

// Slot exposes the pending comment slot.
func (c *Coordinator) Slot() *Slot { return c.slot }

// SyncIndicator sets the indicator from the stored streaming flag.
func (c *Coordinator) SyncIndicator(ctx context.Context) error {
	enabled, _, err := c.streamingFlag(ctx)
	if err != nil {
		return err
	}
	c.setIndicator(enabled)
	return nil
}

// Handle executes one request. Requests of unknown type are logged and
// answered with an empty response.
func (c *Coordinator) Handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	switch r := req.(type) {
	case domain.SetComment:
		c.setComment(r)
		return domain.Response{}, nil

	case domain.DeleteComment:
		c.slot.Clear()
		c.emit(bus.EventCommentCleared, nil)
		return domain.Response{}, nil

	case domain.InjectCommentToFocusedTab:
		return domain.Response{}, c.injectFocused(ctx)

	case domain.SetColor:
		return domain.Response{}, c.store.Set(ctx, domain.KeyColor, r.Value)
	case domain.GetColor:
		return c.getString(ctx, domain.KeyColor)

	case domain.SetFontSize:
		return domain.Response{}, c.store.Set(ctx, domain.KeyFontSize, r.Value)
	case domain.GetFontSize:
		return c.getString(ctx, domain.KeyFontSize)

	case domain.SetFontFamily:
		return domain.Response{}, c.store.Set(ctx, domain.KeyFontFamily, r.Value)
	case domain.GetFontFamily:
		return c.getString(ctx, domain.KeyFontFamily)

	case domain.SetIsEnabledStreaming:
		if err := c.store.Set(ctx, domain.KeyIsEnabledStreaming, strconv.FormatBool(r.Value)); err != nil {
			return domain.Response{}, err
		}
		c.setIndicator(r.Value)
		return domain.Response{}, nil

	case domain.GetIsEnabledStreaming:
		enabled, stored, err := c.streamingFlag(ctx)
		if err != nil || !stored {
			return domain.Response{}, err
		}
		return domain.BoolResponse(enabled), nil

	case domain.ToggleIsEnabledStreaming:
		current, _, err := c.streamingFlag(ctx)
		if err != nil {
			return domain.Response{}, err
		}
		next := !current
		if err := c.store.Set(ctx, domain.KeyIsEnabledStreaming, strconv.FormatBool(next)); err != nil {
			return domain.Response{}, err
		}
		c.setIndicator(next)
		return domain.BoolResponse(next), nil

	default:
		c.logger.Warn("no method", "type", fmt.Sprintf("%T", req))
		c.emit(bus.EventRequestUnknown, map[string]any{"type": fmt.Sprintf("%T", req)})
		return domain.Response{}, nil
	}
}

func (c *Coordinator) setComment(r domain.SetComment) {
	comment := domain.Comment{Text: r.Text, SenderColor: r.Color}
	if dropped := c.slot.Put(comment); dropped {
		c.logger.Debug("pending comment overwritten before delivery")
	}
	c.emit(bus.EventCommentStored, map[string]any{"text": r.Text, "color": r.Color})
}

func (c *Coordinator) injectFocused(ctx context.Context) error {
	comment, ok := c.slot.Peek()
	if !ok || comment.Text == "" || c.tabs == nil {
		return nil
	}
	tabID, ok := c.tabs.FocusedTab(ctx)
	if !ok {
		return nil
	}
	// The render may fail and report render.failed before InjectComment
	// returns, so the injection is announced first.
	c.emit(bus.EventCommentInjected, map[string]any{"tab": tabID, "text": comment.Text})
	if err := c.tabs.InjectComment(ctx, tabID, comment); err != nil {
		err = fmt.Errorf("inject comment into tab %s: %w", tabID, err)
		c.emit(bus.EventRenderFailed, map[string]any{"text": comment.Text, "error": err.Error()})
		return err
	}
	return nil
}

func (c *Coordinator) getString(ctx context.Context, key string) (domain.Response, error) {
	v, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		return domain.Response{}, err
	}
	return domain.StringResponse(v), nil
}

// streamingFlag reads the stored flag. stored is false when the cell is
// missing or does not hold a boolean.
func (c *Coordinator) streamingFlag(ctx context.Context) (enabled, stored bool, err error) {
	v, found, err := c.store.Get(ctx, domain.KeyIsEnabledStreaming)
	if err != nil || !found {
		return false, false, err
	}
	b, perr := strconv.ParseBool(v)
	if perr != nil {
		return false, false, nil
	}
	return b, true, nil
}

func (c *Coordinator) setIndicator(enabled bool) {
	if c.indicator != nil {
		c.indicator.SetStreaming(enabled)
	}
	c.emit(bus.EventStreamingToggled, map[string]any{"enabled": enabled})
}

func (c *Coordinator) emit(eventType string, payload map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Emit(bus.Event{Type: eventType, Source: "coordinator", Payload: payload})
}

// Serve answers requests from rb one at a time until ctx ends or rb is
// closed. Requests still queued at shutdown are answered with
// ErrContextInvalidated.
func (c *Coordinator) Serve(ctx context.Context, rb *bus.RequestBus) {
	c.logger.Info("coordinator started")
	defer c.logger.Info("coordinator stopped")

	for {
		select {
		case <-ctx.Done():
			c.drain(rb)
			return
		case env, ok := <-rb.Requests():
			if !ok {
				return
			}
			c.serveOne(ctx, env)
		}
	}
}

func (c *Coordinator) serveOne(ctx context.Context, env bus.Envelope) {
	resp, err := c.Handle(ctx, env.Request)
	if err != nil {
		c.logger.Error("request failed",
			"method", env.Request.Method(),
			"origin", env.Origin,
			"id", env.ID,
			"err", err,
		)
	}
	if env.Reply != nil {
		env.Reply <- bus.Result{Response: resp, Err: err}
	}
}

func (c *Coordinator) drain(rb *bus.RequestBus) {
	for {
		select {
		case env, ok := <-rb.Requests():
			if !ok {
				return
			}
			if env.Reply != nil {
				env.Reply <- bus.Result{Err: domain.ErrContextInvalidated}
			}
		default:
			return
		}
	}
}
