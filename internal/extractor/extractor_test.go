package extractor

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

// fakeCaller stands in for the coordinator side of the request bus.
type fakeCaller struct {
	mu        sync.Mutex
	streaming bool
	alive     bool
	callErr   error
	postErr   error
	failAfter int // when > 0, posts after this many succeed fail with postErr
	posted    []domain.SetComment
	toggles   int
}

func newFakeCaller(streaming bool) *fakeCaller {
	return &fakeCaller{streaming: streaming, alive: true}
}

func (f *fakeCaller) Call(_ context.Context, _ string, req domain.Request) (domain.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return domain.Response{}, f.callErr
	}
	switch req.(type) {
	case domain.GetIsEnabledStreaming:
		return domain.BoolResponse(f.streaming), nil
	case domain.ToggleIsEnabledStreaming:
		f.toggles++
		f.streaming = !f.streaming
		return domain.BoolResponse(f.streaming), nil
	}
	return domain.Response{}, nil
}

func (f *fakeCaller) Post(_ string, req domain.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil && (f.failAfter == 0 || len(f.posted) >= f.failAfter) {
		return f.postErr
	}
	if sc, ok := req.(domain.SetComment); ok {
		f.posted = append(f.posted, sc)
	}
	return nil
}

func (f *fakeCaller) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeCaller) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.posted))
	for i, p := range f.posted {
		out[i] = p.Text
	}
	return out
}

type fakePage struct {
	mu        sync.Mutex
	snap      Snapshot
	calls     int
	script    func(call int) (Snapshot, error) // overrides snap when set
	mutations chan []Mutation
}

func newFakePage(chat ...string) *fakePage {
	p := &fakePage{mutations: make(chan []Mutation, 8)}
	p.snap.Chat = nodes(chat...)
	return p
}

func (p *fakePage) Snapshot(context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.script != nil {
		return p.script(p.calls)
	}
	return p.snap, nil
}

func (p *fakePage) Mutations() <-chan []Mutation { return p.mutations }

func (p *fakePage) setChat(texts ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Chat = nodes(texts...)
}

func nodes(texts ...string) []Node {
	out := make([]Node, len(texts))
	for i, t := range texts {
		out[i] = Node{Text: t}
	}
	return out
}

var added = []Mutation{{Added: 1}}

func newTestExtractor(caller domain.Caller) *Extractor {
	return New(Config{Caller: caller, Logger: testLogger()})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCycle_ForwardsOnlyNewMessages(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("hello")
	e := newTestExtractor(caller)
	ctx := context.Background()

	e.Prime(Snapshot{Chat: nodes("hello")})

	page.setChat("hello", "world")
	if err := e.Cycle(ctx, page, added); err != nil {
		t.Fatal(err)
	}
	page.setChat("hello", "world", "again")
	if err := e.Cycle(ctx, page, added); err != nil {
		t.Fatal(err)
	}
	// same list re-observed: nothing new
	if err := e.Cycle(ctx, page, added); err != nil {
		t.Fatal(err)
	}

	if got := caller.texts(); !equalStrings(got, []string{"world", "again"}) {
		t.Fatalf("unexpected forwards %v", got)
	}
}

func TestCycle_PreExistingNeverForwarded(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("old one", "old two")
	e := newTestExtractor(caller)

	snap, _ := page.Snapshot(context.Background())
	e.Prime(snap)
	for i := 0; i < 3; i++ {
		if err := e.Cycle(context.Background(), page, added); err != nil {
			t.Fatal(err)
		}
	}

	if got := caller.texts(); len(got) != 0 {
		t.Fatalf("history should never be streamed, got %v", got)
	}
}

func TestCycle_SameTextDifferentPositionsBothSent(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("lol", "lol")
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if got := caller.texts(); !equalStrings(got, []string{"lol", "lol"}) {
		t.Fatalf("both positions should be sent, got %v", got)
	}
}

func TestCycle_FailedForwardRetriedNextCycle(t *testing.T) {
	tests := []struct {
		name      string
		failAfter int
		firstPass []string
	}{
		{"first send fails", 0, nil},
		{"fails mid burst", 1, []string{"one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newFakeCaller(true)
			caller.postErr = errors.New("bus full")
			caller.failAfter = tt.failAfter
			page := newFakePage("one", "two", "three")
			e := newTestExtractor(caller)

			if err := e.Cycle(context.Background(), page, added); err == nil {
				t.Fatal("expected forward error")
			}
			if got := caller.texts(); !equalStrings(got, tt.firstPass) {
				t.Fatalf("first cycle forwarded %v, want %v", got, tt.firstPass)
			}
			if e.Seen() != len(tt.firstPass) {
				t.Fatalf("seen = %d, only forwarded messages count", e.Seen())
			}

			caller.mu.Lock()
			caller.postErr = nil
			caller.mu.Unlock()
			if err := e.Cycle(context.Background(), page, added); err != nil {
				t.Fatal(err)
			}
			if got := caller.texts(); !equalStrings(got, []string{"one", "two", "three"}) {
				t.Fatalf("after retry forwarded %v", got)
			}
			if e.Seen() != 3 {
				t.Fatalf("seen = %d, want 3", e.Seen())
			}
		})
	}
}

func TestCycle_NoAddedNodesIsNoOp(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("new")
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, []Mutation{{Added: 0}, {Added: 0}}); err != nil {
		t.Fatal(err)
	}
	if len(caller.texts()) != 0 {
		t.Fatal("removal-only batches must not extract")
	}
	if e.Seen() != 0 {
		t.Fatal("seen-set should be untouched")
	}
}

func TestCycle_StreamingDisabled(t *testing.T) {
	caller := newFakeCaller(false)
	page := newFakePage("new")
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if len(caller.texts()) != 0 {
		t.Fatal("disabled streaming must not forward")
	}

	// Messages that arrived while disabled are still new once enabled.
	caller.streaming = true
	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if got := caller.texts(); !equalStrings(got, []string{"new"}) {
		t.Fatalf("unexpected forwards %v", got)
	}
}

func TestCycle_PrefersPopupList(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("chat copy")
	page.snap.Popup = nodes("popup copy")
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if got := caller.texts(); !equalStrings(got, []string{"popup copy"}) {
		t.Fatalf("popup list should be authoritative, got %v", got)
	}
}

func TestCycle_SkipsEmptyTextAndDecodesEntities(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("", "fish &amp; chips &lt;3")
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if got := caller.texts(); !equalStrings(got, []string{"fish & chips <3"}) {
		t.Fatalf("unexpected forwards %v", got)
	}
}

func TestCycle_DerivesSenderColor(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage()
	page.snap.Chat = []Node{{
		Text: "hi",
		Colors: []ColorCandidate{
			{Source: SourceAvatar, Value: "rgba(0, 0, 0, 0)"},
			{Source: SourceAvatar, Value: "rgb(1, 2, 3)"},
		},
	}}
	e := newTestExtractor(caller)

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if len(caller.posted) != 1 || caller.posted[0].Color != "rgb(1, 2, 3)" {
		t.Fatalf("unexpected forwards %+v", caller.posted)
	}
}

func TestCycle_BurstKeepsOrderWithPacing(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("a", "b", "c")
	e := New(Config{Caller: caller, Pacing: 250 * time.Millisecond, Logger: testLogger()})

	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	if err := e.Cycle(context.Background(), page, added); err != nil {
		t.Fatal(err)
	}
	if got := caller.texts(); !equalStrings(got, []string{"a", "b", "c"}) {
		t.Fatalf("burst should keep list order, got %v", got)
	}
	if len(sleeps) != 2 || sleeps[0] != 250*time.Millisecond {
		t.Fatalf("expected a pacing delay between each send, got %v", sleeps)
	}
}

func TestCycle_StopsWhenCoordinatorGone(t *testing.T) {
	caller := newFakeCaller(true)
	caller.alive = false
	page := newFakePage("x")
	events := bus.NewEventBus(testLogger())
	e := New(Config{Caller: caller, Events: events, Logger: testLogger()})

	var stops int
	events.On(bus.EventExtractorStopped, func(bus.Event) { stops++ })

	err := e.Cycle(context.Background(), page, added)
	if !errors.Is(err, ErrStopped) || !errors.Is(err, domain.ErrContextInvalidated) {
		t.Fatalf("expected stop, got %v", err)
	}
	if !e.Stopped() {
		t.Fatal("extractor should be stopped")
	}

	// permanent: even with the coordinator back, no retry
	caller.alive = true
	if err := e.Cycle(context.Background(), page, added); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if stops != 1 {
		t.Fatalf("stop should be reported once, got %d", stops)
	}
	if len(caller.texts()) != 0 {
		t.Fatal("stopped extractor must not forward")
	}
}

func TestCycle_InvalidatedDuringCall(t *testing.T) {
	caller := newFakeCaller(true)
	caller.callErr = domain.ErrContextInvalidated
	e := newTestExtractor(caller)

	err := e.Cycle(context.Background(), newFakePage("x"), added)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestRun_TransientErrorsKeepObserving(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage()
	events := bus.NewEventBus(testLogger())
	e := New(Config{Caller: caller, Events: events, Logger: testLogger()})

	var failures int
	events.On(bus.EventCycleFailed, func(bus.Event) { failures++ })

	page.script = func(call int) (Snapshot, error) {
		switch call {
		case 1: // priming
			return Snapshot{}, nil
		case 2:
			return Snapshot{}, errors.New("node detached")
		default:
			return Snapshot{Chat: nodes("after error")}, nil
		}
	}
	page.mutations <- added
	page.mutations <- added

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), page) }()

	close(page.mutations)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("navigation should end Run cleanly, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}

	if failures != 1 {
		t.Fatalf("expected 1 failed cycle, got %d", failures)
	}
	if got := caller.texts(); !equalStrings(got, []string{"after error"}) {
		t.Fatalf("unexpected forwards %v", got)
	}
}

func TestRun_ReturnsStoppedWhenInvalidated(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage()
	e := newTestExtractor(caller)

	caller.alive = false
	page.mutations <- added

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background(), page) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestExtractors_AreIndependent(t *testing.T) {
	caller := newFakeCaller(true)
	page := newFakePage("same")

	first := newTestExtractor(caller)
	first.Cycle(context.Background(), page, added)

	// a new page load starts with an empty seen-set
	second := newTestExtractor(caller)
	second.Cycle(context.Background(), page, added)

	if got := caller.texts(); !equalStrings(got, []string{"same", "same"}) {
		t.Fatalf("each page load should have its own seen-set, got %v", got)
	}
	if first.ID() == second.ID() {
		t.Fatal("extractor IDs should differ")
	}
}
