package store

import (
	"context"
	"slices"
	"sync"

	"docexchange/internal/requests/models"
	"docexchange/pkg/platform/sentinel"
)

// InMemory is a map-backed request store. One mutex covers every record, so
// Execute's validate-then-mutate step is atomic.
type InMemory struct {
	mu       sync.RWMutex
	requests map[models.RequestID]*models.DocumentRequest
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[models.RequestID]*models.DocumentRequest)}
}

func (s *InMemory) Create(_ context.Context, req *models.DocumentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return sentinel.ErrInvalidState
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id models.RequestID) (*models.DocumentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return req.Clone(), nil
}

// List returns matching requests ordered by creation time, oldest first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.DocumentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.DocumentRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if filter.Matches(req) {
			out = append(out, req.Clone())
		}
	}
	slices.SortFunc(out, compareByCreation)
	return out, nil
}

// Execute runs validate and then mutate against the stored record while
// holding the write lock. A validate error is returned unchanged and nothing
// is written.
func (s *InMemory) Execute(_ context.Context, id models.RequestID, validate func(*models.DocumentRequest) error, mutate func(*models.DocumentRequest)) (*models.DocumentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := stored.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.requests[id] = working
	return working.Clone(), nil
}

// Delete removes the request. It reports whether a record existed; a missing
// id is not an error.
func (s *InMemory) Delete(_ context.Context, id models.RequestID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.requests[id]
	delete(s.requests, id)
	return ok, nil
}

// Ping always succeeds.
func (s *InMemory) Ping(context.Context) error {
	return nil
}

func compareByCreation(a, b *models.DocumentRequest) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID.String() < b.ID.String():
		return -1
	case a.ID.String() > b.ID.String():
		return 1
	}
	return 0
}
