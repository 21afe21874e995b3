package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"commentflow/internal/domain"
	"commentflow/internal/extractor"
	"commentflow/internal/renderer"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
)

// SessionConfig configures a Session.
type SessionConfig struct {
	MeetURL   string
	Selectors Selectors
	Shortcut  extractor.Shortcut
	Renderer  *renderer.Renderer
	Logger    *slog.Logger
}

// Session is one meeting tab. It reports page loads and shortcut presses,
// and draws comments into the tab as a domain.TabHost.
type Session struct {
	tabCtx   context.Context // chromedp context owning the tab
	meetURL  string
	sel      Selectors
	shortcut extractor.Shortcut
	renderer *renderer.Renderer
	overlay  *Overlay
	logger   *slog.Logger

	pages chan *PageLoad
	keys  chan extractor.KeyEvent

	mu      sync.Mutex
	current *PageLoad
	closed  bool

	renders sync.WaitGroup
}

var _ domain.TabHost = (*Session)(nil)

// NewSession wraps a chromedp context created by Bridge.NewContext.
func NewSession(tabCtx context.Context, cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MeetURL == "" {
		cfg.MeetURL = DefaultMeetURL
	}
	s := &Session{
		tabCtx:   tabCtx,
		meetURL:  cfg.MeetURL,
		sel:      cfg.Selectors.WithDefaults(),
		shortcut: cfg.Shortcut,
		renderer: cfg.Renderer,
		logger:   cfg.Logger.With("component", "browser"),
		pages:    make(chan *PageLoad, 4),
		keys:     make(chan extractor.KeyEvent, 8),
	}
	s.overlay = &Overlay{session: s, fullScreen: s.sel.FullScreen}
	return s
}

// Open installs the page bindings and scripts and navigates to the meeting.
func (s *Session) Open(ctx context.Context) error {
	chromedp.ListenTarget(s.tabCtx, s.handleEvent)

	err := s.run(ctx,
		runtime.AddBinding(bindingMutation),
		runtime.AddBinding(bindingKey),
		runtime.AddBinding(bindingReady),
		addScript(observerScript()),
		addScript(keyScript(s.shortcut)),
		chromedp.Navigate(s.meetURL),
	)
	if err != nil {
		return fmt.Errorf("open meeting: %w", err)
	}
	s.logger.Info("meeting page opened", "url", s.meetURL)
	return nil
}

func addScript(source string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	})
}

// run executes actions on the tab, aborting when ctx ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Pages delivers one PageLoad per document that finished loading.
func (s *Session) Pages() <-chan *PageLoad { return s.pages }

// Keys delivers shortcut presses from the page.
func (s *Session) Keys() <-chan extractor.KeyEvent { return s.keys }

// FocusedTab returns the meeting tab while the browser is alive.
func (s *Session) FocusedTab(context.Context) (string, bool) {
	if s.tabCtx.Err() != nil {
		return "", false
	}
	c := chromedp.FromContext(s.tabCtx)
	if c == nil || c.Target == nil {
		return "", false
	}
	return string(c.Target.TargetID), true
}

// InjectComment starts rendering c and returns without waiting for it.
func (s *Session) InjectComment(_ context.Context, tabID string, c domain.Comment) error {
	if id, ok := s.FocusedTab(s.tabCtx); !ok || id != tabID {
		return fmt.Errorf("tab %q is not attached", tabID)
	}
	if s.renderer == nil {
		return fmt.Errorf("no renderer configured")
	}

	s.renders.Add(1)
	go func() {
		defer s.renders.Done()
		if _, err := s.renderer.Render(s.tabCtx, s.overlay, c); err != nil {
			s.logger.Warn("render failed", "err", err)
		}
	}()
	return nil
}

// Wait blocks until all started renders have returned.
func (s *Session) Wait() { s.renders.Wait() }

// Close ends the current page load and stops reporting new ones.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.current != nil {
		s.current.close()
		s.current = nil
	}
	close(s.pages)
}

// handleEvent runs on the chromedp event loop and must not block.
func (s *Session) handleEvent(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		s.onBinding(e.Name, e.Payload)
	case *page.EventFrameNavigated:
		if e.Frame != nil && e.Frame.ParentID == "" {
			s.onNavigated()
		}
	}
}

func (s *Session) onBinding(name, payload string) {
	switch name {
	case bindingReady:
		s.onReady()
	case bindingMutation:
		var batch []extractor.Mutation
		if err := json.Unmarshal([]byte(payload), &batch); err != nil {
			s.logger.Debug("malformed mutation payload", "err", err)
			return
		}
		s.mu.Lock()
		p := s.current
		s.mu.Unlock()
		if p != nil {
			p.deliver(batch)
		}
	case bindingKey:
		var ev extractor.KeyEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			s.logger.Debug("malformed key payload", "err", err)
			return
		}
		select {
		case s.keys <- ev:
		default:
			s.logger.Warn("shortcut dropped; handler busy")
		}
	}
}

func (s *Session) onReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.current != nil {
		s.current.close()
	}
	p := newPageLoad(s)
	s.current = p
	select {
	case s.pages <- p:
		s.logger.Debug("page ready", "page", p.id[:8])
	default:
		s.logger.Warn("page load dropped; consumer busy", "page", p.id[:8])
	}
}

func (s *Session) onNavigated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.close()
		s.current = nil
	}
}

// PageLoad is one loaded meeting document. Its mutation channel closes
// when the tab navigates or reloads.
type PageLoad struct {
	id      string
	session *Session

	mu        sync.Mutex
	closed    bool
	mutations chan []extractor.Mutation
}

var _ extractor.Page = (*PageLoad)(nil)

func newPageLoad(s *Session) *PageLoad {
	return &PageLoad{
		id:        uuid.NewString(),
		session:   s,
		mutations: make(chan []extractor.Mutation, 64),
	}
}

// ID identifies the page load in logs.
func (p *PageLoad) ID() string { return p.id }

// Snapshot reads both message lists from the live document.
func (p *PageLoad) Snapshot(ctx context.Context) (extractor.Snapshot, error) {
	var snap extractor.Snapshot
	err := p.session.run(ctx, chromedp.Evaluate(snapshotScript(p.session.sel), &snap))
	if err != nil {
		return extractor.Snapshot{}, fmt.Errorf("read message lists: %w", err)
	}
	return snap, nil
}

func (p *PageLoad) Mutations() <-chan []extractor.Mutation { return p.mutations }

// deliver queues a batch. A full queue already guarantees a pending
// snapshot, so the batch is dropped.
func (p *PageLoad) deliver(batch []extractor.Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.mutations <- batch:
	default:
	}
}

func (p *PageLoad) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.mutations)
	}
}
