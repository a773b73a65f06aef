package memory

import (
	"context"
	"sync"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Sink implements ports.EventSink by recording events in memory. Used in
// tests to assert on the audit trail.
type Sink struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewSink creates an in-memory event sink.
func NewSink() *Sink {
	return &Sink{}
}

// Emit records the event.
func (s *Sink) Emit(ctx context.Context, event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a snapshot of recorded events.
func (s *Sink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events of the given type.
func (s *Sink) ByType(typ domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears recorded events.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
