package memory

import (
	"context"
	"sync"

	audit "docexchange/pkg/platform/audit"
)

// DefaultCapacity bounds the store when no capacity is given.
const DefaultCapacity = 10000

// InMemoryStore keeps the newest events in insertion order, indexed by
// document request. Once full, each append evicts the oldest event.
type InMemoryStore struct {
	mu        sync.RWMutex
	capacity  int
	events    []audit.Event
	byRequest map[string][]audit.Event
}

type Option func(*InMemoryStore)

// WithCapacity caps how many events are retained. Non-positive values keep
// the default.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		capacity:  DefaultCapacity,
		byRequest: make(map[string][]audit.Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= s.capacity {
		s.evictOldest()
	}
	s.events = append(s.events, event)
	if event.DocumentRequestID != "" {
		s.byRequest[event.DocumentRequestID] = append(s.byRequest[event.DocumentRequestID], event)
	}
	return nil
}

// evictOldest drops the first event. It is also the first entry of its
// request's trail, since both keep insertion order.
func (s *InMemoryStore) evictOldest() {
	oldest := s.events[0]
	s.events[0] = audit.Event{}
	s.events = s.events[1:]
	if id := oldest.DocumentRequestID; id != "" {
		trail := s.byRequest[id]
		if len(trail) <= 1 {
			delete(s.byRequest, id)
		} else {
			s.byRequest[id] = trail[1:]
		}
	}
}

// ListByRequest returns the retained trail of one document request, oldest first.
func (s *InMemoryStore) ListByRequest(_ context.Context, documentRequestID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.byRequest[documentRequestID]...), nil
}

func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
