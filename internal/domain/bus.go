package domain

import "context"

// Caller sends requests to the coordinator across the context boundary.
type Caller interface {
	// Call sends req and waits for the coordinator's response.
	Call(ctx context.Context, origin string, req Request) (Response, error)
	// Post sends req without waiting for a response.
	Post(origin string, req Request) error
	// Alive reports whether the coordinator side is still reachable.
	Alive() bool
}
