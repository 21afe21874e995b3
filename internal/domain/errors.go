package domain

import "errors"

// ErrContextInvalidated is returned by every cross-context call once the
// coordinator side has gone away. It is not retryable.
var ErrContextInvalidated = errors.New("context invalidated")

// ErrUnknownMethod is returned when decoding a request with an unrecognized method name.
var ErrUnknownMethod = errors.New("unknown method")
