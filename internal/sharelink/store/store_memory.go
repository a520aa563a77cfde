package store

import (
	"context"
	"sync"
	"time"

	"docexchange/internal/requests/models"
	"docexchange/internal/sharelink"
	"docexchange/pkg/platform/sentinel"
)

// InMemory keeps share tokens in process memory, indexed by request.
type InMemory struct {
	mu        sync.RWMutex
	tokens    map[string]*sharelink.Token
	byRequest map[models.RequestID]map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		tokens:    make(map[string]*sharelink.Token),
		byRequest: make(map[models.RequestID]map[string]struct{}),
	}
}

func (s *InMemory) Save(_ context.Context, token *sharelink.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.ID]; exists {
		return sentinel.ErrInvalidState
	}
	cp := *token
	s.tokens[token.ID] = &cp
	ids, ok := s.byRequest[token.RequestID]
	if !ok {
		ids = make(map[string]struct{})
		s.byRequest[token.RequestID] = ids
	}
	ids[token.ID] = struct{}{}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (*sharelink.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *InMemory) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id), nil
}

func (s *InMemory) DeleteByRequest(_ context.Context, requestID models.RequestID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.byRequest[requestID] {
		if s.deleteLocked(id) {
			removed++
		}
	}
	delete(s.byRequest, requestID)
	return removed, nil
}

// RemoveExpiredAt drops tokens whose expiry is at or before cutoff.
func (s *InMemory) RemoveExpiredAt(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, token := range s.tokens {
		if !token.ExpiresAt.After(cutoff) && s.deleteLocked(id) {
			removed++
		}
	}
	return removed, nil
}

func (s *InMemory) deleteLocked(id string) bool {
	token, ok := s.tokens[id]
	if !ok {
		return false
	}
	delete(s.tokens, id)
	if ids := s.byRequest[token.RequestID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byRequest, token.RequestID)
		}
	}
	return true
}
