// Package renderer turns one pending comment into one overlay element that
// crosses the viewport from right to left and is then removed.
package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"
)

// Viewport describes the page at mount time.
type Viewport struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ScrollY    float64 `json:"scrollY"`
	FullScreen bool    `json:"fullScreen"` // mounted on the presentation node instead of body
}

// Surface is the page the overlay is drawn on.
type Surface interface {
	// Mount creates a new text element, attaches it to the full-screen
	// presentation node when present or else to the body, and reports
	// the viewport.
	Mount(ctx context.Context, text string) (Element, Viewport, error)
	// EnsureStylesheet adds a stylesheet link with the given id unless
	// one already exists.
	EnsureStylesheet(ctx context.Context, id, href string) error
}

// Element is one mounted comment.
type Element interface {
	Apply(ctx context.Context, s Style) error
	// Animate starts a linear slide to fully off-screen on the left.
	Animate(ctx context.Context, d time.Duration) (Animation, error)
	Remove(ctx context.Context) error
}

// Animation is a started animation on an Element.
type Animation interface {
	// Ready blocks until the animation is actually running.
	Ready(ctx context.Context) error
	// Finished blocks until the animation has completed.
	Finished(ctx context.Context) error
}

// State is a Task's lifecycle position.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Task tracks one comment from element creation to teardown. It moves
// forward only: created, running, finished.
type Task struct {
	Comment  domain.Comment
	Style    Style
	Duration time.Duration
	state    atomic.Int32
}

// State returns the current lifecycle state.
func (t *Task) State() State { return State(t.state.Load()) }

func (t *Task) advance(to State) bool {
	from := to - 1
	return t.state.CompareAndSwap(int32(from), int32(to))
}

// Config configures a Renderer.
type Config struct {
	Caller domain.Caller
	Events *bus.EventBus // optional
	Logger *slog.Logger
}

// Renderer draws comments. It holds no per-comment state; every Render
// builds its own Task and element.
type Renderer struct {
	caller domain.Caller
	events *bus.EventBus
	logger *slog.Logger
	random func() float64
}

func New(cfg Config) *Renderer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		caller: cfg.Caller,
		events: cfg.Events,
		logger: cfg.Logger,
		random: rand.Float64,
	}
}

// Render mounts, styles and animates one comment, asks the coordinator to
// clear the pending slot as soon as the animation is running, and removes
// the element when it finishes. It returns after removal. A render that
// never reaches running emits render.failed; the comment stays pending.
func (r *Renderer) Render(ctx context.Context, surface Surface, c domain.Comment) (*Task, error) {
	task := &Task{Comment: c, Duration: Duration(c.Text)}

	el, vp, err := surface.Mount(ctx, c.Text)
	if err != nil {
		return task, r.fail(c, fmt.Errorf("mount comment: %w", err))
	}

	task.Style = r.buildStyle(ctx, surface, c, vp)
	if err := el.Apply(ctx, task.Style); err != nil {
		r.remove(ctx, el)
		return task, r.fail(c, fmt.Errorf("apply style: %w", err))
	}

	anim, err := el.Animate(ctx, task.Duration)
	if err != nil {
		r.remove(ctx, el)
		return task, r.fail(c, fmt.Errorf("start animation: %w", err))
	}

	if err := anim.Ready(ctx); err != nil {
		r.remove(ctx, el)
		return task, r.fail(c, fmt.Errorf("animation not running: %w", err))
	}
	task.advance(StateRunning)
	// Clearing the slot lets the same text be sent again.
	if err := r.caller.Post("renderer", domain.DeleteComment{}); err != nil {
		r.logger.Warn("clear pending comment failed", "err", err)
	}
	r.emit(bus.EventRenderStarted, map[string]any{"text": c.Text, "duration": task.Duration})

	if err := anim.Finished(ctx); err != nil {
		r.logger.Warn("animation did not finish cleanly", "err", err)
	}
	r.remove(ctx, el)
	task.advance(StateFinished)
	r.emit(bus.EventRenderFinished, map[string]any{"text": c.Text, "duration": task.Duration})
	return task, nil
}

func (r *Renderer) fail(c domain.Comment, err error) error {
	r.emit(bus.EventRenderFailed, map[string]any{"text": c.Text, "error": err.Error()})
	return err
}

func (r *Renderer) buildStyle(ctx context.Context, surface Surface, c domain.Comment, vp Viewport) Style {
	size := r.pref(ctx, domain.GetFontSize{})
	letter := LetterSize(vp.Height, SizeCoefficient(size))

	style := Style{
		Left:     vp.Width,
		Top:      TopPosition(vp.ScrollY, vp.Height, letter, r.random()),
		FontSize: letter,
	}

	if family := r.pref(ctx, domain.GetFontFamily{}); family != "" {
		id, href := FontLink(family)
		if err := surface.EnsureStylesheet(ctx, id, href); err != nil {
			r.logger.Warn("font stylesheet not added", "family", family, "err", err)
		}
		style.FontFamily = FontFamilyValue(family)
	}

	style.Color = ResolveColor(r.pref(ctx, domain.GetColor{}), c.SenderColor)
	return style
}

// pref reads a string preference; failures fall back to "" so a missing
// store never blocks rendering.
func (r *Renderer) pref(ctx context.Context, req domain.Request) string {
	resp, err := r.caller.Call(ctx, "renderer", req)
	if err != nil {
		r.logger.Debug("preference unavailable", "method", req.Method(), "err", err)
		return ""
	}
	return resp.Value
}

func (r *Renderer) remove(ctx context.Context, el Element) {
	if err := el.Remove(ctx); err != nil {
		r.logger.Warn("remove comment element failed", "err", err)
	}
}

func (r *Renderer) emit(eventType string, payload map[string]any) {
	if r.events == nil {
		return
	}
	r.events.Emit(bus.Event{Type: eventType, Source: "renderer", Payload: payload})
}
