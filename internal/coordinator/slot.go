package coordinator

import (
	"sync"

	"commentflow/internal/domain"
)

// Slot holds pending comments awaiting rendering. With capacity 1 a write
// overwrites whatever is pending; with a larger capacity writes queue in
// order and the oldest entry is dropped when full.
//
// Nothing ties a Clear to the comment that was peeked: a write that lands
// between a renderer's Peek and its Clear is erased unseen.
type Slot struct {
	mu      sync.Mutex
	cap     int
	pending []domain.Comment
}

// NewSlot returns a slot holding at most capacity comments (minimum 1).
func NewSlot(capacity int) *Slot {
	if capacity < 1 {
		capacity = 1
	}
	return &Slot{cap: capacity}
}

// Put stores c and reports whether an older comment was discarded to make room.
func (s *Slot) Put(c domain.Comment) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= s.cap {
		s.pending = s.pending[1:]
		dropped = true
	}
	s.pending = append(s.pending, c)
	return dropped
}

// Peek returns the comment to render next.
func (s *Slot) Peek() (domain.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return domain.Comment{}, false
	}
	return s.pending[0], true
}

// Clear removes the comment at the head of the slot.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > 0 {
		s.pending = s.pending[1:]
	}
}

// Len returns the number of pending comments.
func (s *Slot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
