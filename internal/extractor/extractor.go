// Package extractor watches the meeting page's message lists and forwards
// each newly appeared message to the coordinator exactly once per page load.
//
// Identity is the node's index in the active list plus its raw text. This
// forwards every message of a burst in order, and never re-sends a message
// that is re-observed at the same position. The cost: when the host page
// trims or reorders the list, shifted nodes get new keys and fire again.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"time"

	"commentflow/internal/bus"
	"commentflow/internal/domain"

	"github.com/google/uuid"
)

// ErrStopped is returned once the extractor has shut itself down.
var ErrStopped = errors.New("extractor stopped")

// Node is one message element as seen by the page.
type Node struct {
	Text   string           `json:"text"`
	Colors []ColorCandidate `json:"colors,omitempty"`
}

// Snapshot holds both message surfaces read in a single page evaluation.
type Snapshot struct {
	Popup []Node `json:"popup"`
	Chat  []Node `json:"chat"`
}

// Active returns the authoritative list: the popup captions when any are
// showing, else the chat panel. Never both, so one utterance shown in two
// places is counted once.
func (s Snapshot) Active() []Node {
	if len(s.Popup) > 0 {
		return s.Popup
	}
	return s.Chat
}

// Mutation summarizes one MutationRecord.
type Mutation struct {
	Added int `json:"added"`
}

// Page is the host page the extractor observes.
type Page interface {
	// Snapshot reads the current message lists.
	Snapshot(ctx context.Context) (Snapshot, error)
	// Mutations delivers batched change notifications. It is closed when the
	// page navigates away or reloads.
	Mutations() <-chan []Mutation
}

// Config configures an Extractor.
type Config struct {
	Caller domain.Caller
	Pacing time.Duration // delay between sends when a cycle finds several messages
	Events *bus.EventBus // optional
	Logger *slog.Logger
}

// Extractor owns the seen-set for one page load.
type Extractor struct {
	id      string
	caller  domain.Caller
	pacing  time.Duration
	events  *bus.EventBus
	logger  *slog.Logger
	seen    map[string]struct{}
	stopped bool
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Extractor{
		id:     id,
		caller: cfg.Caller,
		pacing: cfg.Pacing,
		events: cfg.Events,
		logger: cfg.Logger.With("extractor", id[:8]),
		seen:   make(map[string]struct{}),
		sleep:  sleepCtx,
	}
}

// ID identifies this page load in logs and events.
func (e *Extractor) ID() string { return e.id }

// Stopped reports whether the extractor has shut itself down.
func (e *Extractor) Stopped() bool { return e.stopped }

// Seen returns the number of identity keys recorded.
func (e *Extractor) Seen() int { return len(e.seen) }

func identityKey(index int, raw string) string {
	return strconv.Itoa(index) + ":" + raw
}

// Prime marks every message already on the page as seen, so chat history
// present when the page becomes ready is never streamed.
func (e *Extractor) Prime(snap Snapshot) {
	for i, n := range snap.Active() {
		if n.Text == "" {
			continue
		}
		e.seen[identityKey(i, n.Text)] = struct{}{}
	}
	e.logger.Debug("seen-set primed", "messages", len(e.seen))
}

// Cycle handles one batch of mutations from the page. It returns an error
// wrapping ErrStopped once the coordinator is gone; any other error means
// this cycle was skipped and observation can continue.
func (e *Extractor) Cycle(ctx context.Context, page Page, batch []Mutation) error {
	if e.stopped {
		return ErrStopped
	}
	if !hasAddedNodes(batch) {
		return nil
	}
	if !e.caller.Alive() {
		return e.stop(domain.ErrContextInvalidated)
	}

	resp, err := e.caller.Call(ctx, "extractor", domain.GetIsEnabledStreaming{})
	if err != nil {
		return e.classify(fmt.Errorf("get streaming flag: %w", err))
	}
	if !resp.Flag {
		return nil
	}

	snap, err := page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	fresh, skipped := e.collect(snap.Active())
	if skipped > 0 {
		e.emit(bus.EventDuplicateSkipped, map[string]any{"count": skipped})
	}

	// A message is marked seen only once forwarded, so a failed send leaves
	// it and the rest of the burst for the next cycle.
	for i, f := range fresh {
		if i > 0 && e.pacing > 0 {
			if err := e.sleep(ctx, e.pacing); err != nil {
				return err
			}
		}
		c := f.comment
		if err := e.caller.Post("extractor", domain.SetComment{Text: c.Text, Color: c.SenderColor}); err != nil {
			return e.classify(fmt.Errorf("forward comment: %w", err))
		}
		e.seen[f.key] = struct{}{}
		e.logger.Debug("comment forwarded", "len", len(c.Text), "color", c.SenderColor)
		e.emit(bus.EventCommentForwarded, map[string]any{"text": c.Text, "color": c.SenderColor})
	}
	return nil
}

type unseen struct {
	key     string
	comment domain.Comment
}

// collect returns the nodes not yet seen, in list order.
func (e *Extractor) collect(nodes []Node) (fresh []unseen, skipped int) {
	for i, n := range nodes {
		if n.Text == "" {
			continue
		}
		key := identityKey(i, n.Text)
		if _, ok := e.seen[key]; ok {
			skipped++
			continue
		}
		fresh = append(fresh, unseen{key: key, comment: domain.Comment{
			Text:        html.UnescapeString(n.Text),
			SenderColor: DeriveColor(n.Colors),
		}})
	}
	return fresh, skipped
}

// Run primes the seen-set from the current page, then processes mutation
// batches until ctx ends, the page navigates away (nil), or the
// coordinator disappears (ErrStopped).
func (e *Extractor) Run(ctx context.Context, page Page) error {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	e.Prime(snap)
	e.logger.Info("observing messages", "primed", len(e.seen))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-page.Mutations():
			if !ok {
				e.logger.Info("page unloaded; seen-set discarded", "seen", len(e.seen))
				return nil
			}
			err := e.Cycle(ctx, page, batch)
			switch {
			case err == nil:
			case errors.Is(err, ErrStopped):
				return err
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				e.logger.Error("observation cycle failed", "err", err)
				e.emit(bus.EventCycleFailed, map[string]any{"err": err.Error()})
			}
		}
	}
}

// classify turns an invalidated-context failure into a permanent stop.
func (e *Extractor) classify(err error) error {
	if errors.Is(err, domain.ErrContextInvalidated) || !e.caller.Alive() {
		return e.stop(err)
	}
	return err
}

func (e *Extractor) stop(cause error) error {
	if !e.stopped {
		e.stopped = true
		e.logger.Warn("coordinator unreachable; observer stopped", "cause", cause)
		e.emit(bus.EventExtractorStopped, map[string]any{"cause": cause.Error()})
	}
	return fmt.Errorf("%w: %w", ErrStopped, cause)
}

func (e *Extractor) emit(eventType string, payload map[string]any) {
	if e.events == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["extractor"] = e.id
	e.events.Emit(bus.Event{Type: eventType, Source: "extractor", Payload: payload})
}

func hasAddedNodes(batch []Mutation) bool {
	for _, m := range batch {
		if m.Added > 0 {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
