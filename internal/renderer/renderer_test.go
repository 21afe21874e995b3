package renderer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeCaller struct {
	mu      sync.Mutex
	prefs   map[domain.Method]string
	deletes int
	log     []string
}

func (f *fakeCaller) Call(_ context.Context, _ string, req domain.Request) (domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.prefs[req.Method()]
	if !ok {
		return domain.Response{}, nil
	}
	return domain.StringResponse(v), nil
}

func (f *fakeCaller) Post(_ string, req domain.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := req.(domain.DeleteComment); ok {
		f.deletes++
		f.log = append(f.log, "delete")
	}
	return nil
}

func (f *fakeCaller) Alive() bool { return true }

type fakeSurface struct {
	vp          Viewport
	mounted     []*fakeElement
	stylesheets map[string]string
	mountErr    error
	readyErr    error
	trace       *[]string
}

func (s *fakeSurface) Mount(_ context.Context, text string) (Element, Viewport, error) {
	if s.mountErr != nil {
		return nil, Viewport{}, s.mountErr
	}
	el := &fakeElement{text: text, surface: s}
	s.mounted = append(s.mounted, el)
	return el, s.vp, nil
}

func (s *fakeSurface) EnsureStylesheet(_ context.Context, id, href string) error {
	if s.stylesheets == nil {
		s.stylesheets = map[string]string{}
	}
	if _, ok := s.stylesheets[id]; !ok {
		s.stylesheets[id] = href
	}
	return nil
}

type fakeElement struct {
	text     string
	style    Style
	duration time.Duration
	removed  int
	surface  *fakeSurface
}

func (e *fakeElement) Apply(_ context.Context, st Style) error { e.style = st; return nil }

func (e *fakeElement) Animate(_ context.Context, d time.Duration) (Animation, error) {
	e.duration = d
	return &fakeAnimation{el: e}, nil
}

func (e *fakeElement) Remove(context.Context) error {
	e.removed++
	*e.surface.trace = append(*e.surface.trace, "remove")
	return nil
}

type fakeAnimation struct{ el *fakeElement }

func (a *fakeAnimation) Ready(context.Context) error {
	*a.el.surface.trace = append(*a.el.surface.trace, "ready")
	return a.el.surface.readyErr
}

func (a *fakeAnimation) Finished(context.Context) error {
	*a.el.surface.trace = append(*a.el.surface.trace, "finished")
	return nil
}

func newFixture(prefs map[domain.Method]string) (*Renderer, *fakeCaller, *fakeSurface) {
	caller := &fakeCaller{prefs: prefs}
	trace := []string{}
	surface := &fakeSurface{vp: Viewport{Width: 1280, Height: 1000, ScrollY: 0}, trace: &trace}
	r := New(Config{Caller: caller, Logger: testLogger()})
	r.random = func() float64 { return 0.5 }
	return r, caller, surface
}

func TestRender_FullCycle(t *testing.T) {
	r, caller, surface := newFixture(map[domain.Method]string{
		domain.MethodGetFontSize:   "M",
		domain.MethodGetFontFamily: "Yusei Magic",
		domain.MethodGetColor:      "auto",
	})

	task, err := r.Render(context.Background(), surface, domain.Comment{Text: "hello", SenderColor: "rgb(1, 2, 3)"})
	if err != nil {
		t.Fatal(err)
	}

	if len(surface.mounted) != 1 {
		t.Fatalf("exactly one element per call, got %d", len(surface.mounted))
	}
	el := surface.mounted[0]
	if el.removed != 1 {
		t.Fatalf("element should be removed once, got %d", el.removed)
	}
	if task.State() != StateFinished {
		t.Fatalf("task state = %v, want finished", task.State())
	}
	if caller.deletes != 1 {
		t.Fatalf("pending slot should be cleared once, got %d", caller.deletes)
	}

	// letter = 1000 * 0.05 * 1 = 50; top = floor((1000 - 50 - 88) * 0.5) = 431
	want := Style{Left: 1280, Top: 431, FontSize: 50, Color: "rgb(1, 2, 3)", FontFamily: `"Yusei Magic", sans-serif`}
	if el.style != want {
		t.Fatalf("style = %+v, want %+v", el.style, want)
	}
	if el.duration != 5*time.Second {
		t.Fatalf("duration = %v", el.duration)
	}
	if _, ok := surface.stylesheets["commentflow-font-Yusei-Magic"]; !ok {
		t.Fatalf("font stylesheet not added: %v", surface.stylesheets)
	}
}

func TestRender_ClearsSlotOnlyOnceRunning(t *testing.T) {
	r, caller, surface := newFixture(nil)

	if _, err := r.Render(context.Background(), surface, domain.Comment{Text: "x"}); err != nil {
		t.Fatal(err)
	}

	trace := *surface.trace
	if len(trace) != 3 || trace[0] != "ready" || trace[1] != "finished" || trace[2] != "remove" {
		t.Fatalf("unexpected lifecycle %v", trace)
	}
	if caller.deletes != 1 {
		t.Fatalf("expected one clear, got %d", caller.deletes)
	}
}

func TestRender_FallbacksWithoutPreferences(t *testing.T) {
	r, _, surface := newFixture(nil)

	if _, err := r.Render(context.Background(), surface, domain.Comment{Text: "plain"}); err != nil {
		t.Fatal(err)
	}
	st := surface.mounted[0].style
	if st.Color != "green" {
		t.Errorf("color = %q, want green", st.Color)
	}
	if st.FontSize != 100 { // 1000 * 0.05 * 2
		t.Errorf("font size = %v, want 100", st.FontSize)
	}
	if st.FontFamily != "" || len(surface.stylesheets) != 0 {
		t.Error("no font family should be applied")
	}
}

func TestRender_StylesheetIsIdempotent(t *testing.T) {
	r, _, surface := newFixture(map[domain.Method]string{domain.MethodGetFontFamily: "Reggae One"})

	for i := 0; i < 3; i++ {
		if _, err := r.Render(context.Background(), surface, domain.Comment{Text: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(surface.stylesheets) != 1 {
		t.Fatalf("expected one stylesheet, got %v", surface.stylesheets)
	}
	if len(surface.mounted) != 3 {
		t.Fatalf("each render mounts a fresh element, got %d", len(surface.mounted))
	}
}

func TestRender_NotRunningKeepsSlot(t *testing.T) {
	r, caller, surface := newFixture(nil)
	surface.readyErr = errors.New("animation cancelled")

	task, err := r.Render(context.Background(), surface, domain.Comment{Text: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if task.State() != StateCreated {
		t.Fatalf("task state = %v, want created", task.State())
	}
	if caller.deletes != 0 {
		t.Fatal("slot must not be cleared when the animation never ran")
	}
	if surface.mounted[0].removed != 1 {
		t.Fatal("element should still be torn down")
	}
}

func TestRender_EmitsEvents(t *testing.T) {
	r, _, surface := newFixture(nil)
	events := bus.NewEventBus(testLogger())
	r.events = events

	var types []string
	events.On("*", func(e bus.Event) { types = append(types, e.Type) })

	if _, err := r.Render(context.Background(), surface, domain.Comment{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if len(types) != 2 || types[0] != bus.EventRenderStarted || types[1] != bus.EventRenderFinished {
		t.Fatalf("unexpected events %v", types)
	}
}

func TestRender_FailureEmitsRenderFailed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fakeSurface)
	}{
		{"mount", func(s *fakeSurface) { s.mountErr = errors.New("no body") }},
		{"ready", func(s *fakeSurface) { s.readyErr = errors.New("animation cancelled") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, surface := newFixture(nil)
			tt.mutate(surface)
			events := bus.NewEventBus(testLogger())
			r.events = events

			var got []bus.Event
			events.On("*", func(e bus.Event) { got = append(got, e) })

			if _, err := r.Render(context.Background(), surface, domain.Comment{Text: "x"}); err == nil {
				t.Fatal("expected error")
			}
			if len(got) != 1 || got[0].Type != bus.EventRenderFailed {
				t.Fatalf("events = %+v, want a single render.failed", got)
			}
			if got[0].Payload["text"] != "x" || got[0].Payload["error"] == "" {
				t.Errorf("payload = %v", got[0].Payload)
			}
		})
	}
}

func TestTask_StatesOnlyAdvance(t *testing.T) {
	task := &Task{}
	if task.advance(StateFinished) {
		t.Fatal("cannot skip running")
	}
	if !task.advance(StateRunning) || !task.advance(StateFinished) {
		t.Fatal("expected created -> running -> finished")
	}
	if task.advance(StateRunning) {
		t.Fatal("cannot go back")
	}
	if task.State().String() != "finished" {
		t.Fatalf("unexpected state %v", task.State())
	}
}
