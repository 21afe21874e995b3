package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"commentflow/internal/domain"

	"github.com/google/uuid"
)

const publishTimeout = 10 * time.Second

// Envelope carries one request across the context boundary. Reply is nil
// for fire-and-forget posts.
type Envelope struct {
	ID      string
	Origin  string
	Request domain.Request
	Reply   chan<- Result
}

// Result is the coordinator's answer to an Envelope.
type Result struct {
	Response domain.Response
	Err      error
}

// RequestBus is a Go-channel based request/response channel between the
// page side and the coordinator. Sends from one goroutine arrive in order.
type RequestBus struct {
	requests chan Envelope
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a new RequestBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *RequestBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestBus{
		requests: make(chan Envelope, bufferSize),
		logger:   logger,
	}
}

// Call sends req and waits for the response or ctx cancellation.
func (b *RequestBus) Call(ctx context.Context, origin string, req domain.Request) (domain.Response, error) {
	reply := make(chan Result, 1)
	env := Envelope{ID: uuid.NewString(), Origin: origin, Request: req, Reply: reply}
	if err := b.publish(ctx, env); err != nil {
		return domain.Response{}, err
	}

	select {
	case res, ok := <-reply:
		if !ok {
			return domain.Response{}, domain.ErrContextInvalidated
		}
		return res.Response, res.Err
	case <-ctx.Done():
		return domain.Response{}, ctx.Err()
	}
}

// Post sends req without waiting for a response.
func (b *RequestBus) Post(origin string, req domain.Request) error {
	env := Envelope{ID: uuid.NewString(), Origin: origin, Request: req}
	return b.publish(context.Background(), env)
}

// Blocks up to publishTimeout if the bus is full instead of dropping.
func (b *RequestBus) publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return domain.ErrContextInvalidated
	}

	select {
	case b.requests <- env:
		return nil
	default:
	}

	b.logger.Warn("request bus full, waiting...", "method", env.Request.Method(), "origin", env.Origin)
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case b.requests <- env:
		b.logger.Info("request delivered after wait", "method", env.Request.Method())
		return nil
	case <-timer.C:
		b.logger.Error("request dropped: bus full",
			"method", env.Request.Method(),
			"origin", env.Origin,
			"id", env.ID,
		)
		return fmt.Errorf("request %s dropped: bus full for %s", env.Request.Method(), publishTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests returns the stream consumed by the coordinator. It is closed by Close.
func (b *RequestBus) Requests() <-chan Envelope {
	return b.requests
}

// Alive reports whether the bus still accepts requests.
func (b *RequestBus) Alive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

// Close stops accepting requests. Pending callers see ErrContextInvalidated.
func (b *RequestBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.requests)
	}
}

var _ domain.Caller = (*RequestBus)(nil)
