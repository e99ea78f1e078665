// Package interact coordinates user-triggered operations: it discards the
// results of superseded interactions, delays the waiting indicator to
// avoid flicker, and turns errors into user alerts.
package interact

import "sync/atomic"

// Session holds the interaction generation of one user session. Starting
// a new interaction supersedes every earlier one.
//
// Thread-safety: Session is safe for concurrent use (atomic operations).
type Session struct {
	generation atomic.Uint64
}

// NewSession creates a session with no interaction started.
func NewSession() *Session {
	return &Session{}
}

// Begin starts a new interaction.
func (s *Session) Begin() Interaction {
	return Interaction{session: s, generation: s.generation.Add(1)}
}

// Generation returns the generation of the latest interaction.
func (s *Session) Generation() uint64 {
	return s.generation.Load()
}

// Interaction is one user-triggered operation.
type Interaction struct {
	session    *Session
	generation uint64
}

// Current reports whether no later interaction has begun. Results of an
// interaction that is no longer current must be discarded.
func (i Interaction) Current() bool {
	return i.session.generation.Load() == i.generation
}
