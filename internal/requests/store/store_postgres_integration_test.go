//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docexchange/internal/requests/models"
	"docexchange/internal/requests/store"
	"docexchange/pkg/platform/sentinel"
	"docexchange/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "document_requests"))
}

func newTestRequest(civilID string) *models.DocumentRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	req, err := models.NewDocumentRequest(models.NewRequestID(), civilID, []string{"passport", "birth_certificate"}, "bring originals", "org-1", now, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return req
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	req := newTestRequest("C1")
	s.Require().NoError(s.store.Create(ctx, req))

	found, err := s.store.FindByID(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.RequestedDocuments, found.RequestedDocuments)
	s.Equal(req.Note, found.Note)
	s.Equal(req.RequestedBy, found.RequestedBy)
	s.True(req.ExpiresAt.Equal(found.ExpiresAt))

	_, err = s.store.FindByID(ctx, models.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	a := newTestRequest("C1")
	b := newTestRequest("C2")
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))

	_, err := s.store.Execute(ctx, b.ID,
		func(r *models.DocumentRequest) error { return r.CanTransitionTo(models.StatusAccepted, time.Now()) },
		func(r *models.DocumentRequest) { r.ApplyTransition(models.StatusAccepted, time.Now()) },
	)
	s.Require().NoError(err)

	pending, err := s.store.List(ctx, models.ListFilter{Status: models.StatusPending})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(a.ID, pending[0].ID)

	byCivil, err := s.store.List(ctx, models.ListFilter{CivilID: "C2"})
	s.Require().NoError(err)
	s.Require().Len(byCivil, 1)
	s.Equal(models.StatusAccepted, byCivil[0].Status)
}

// TestConcurrentTransitions verifies FOR UPDATE serialises competing
// transitions out of pending.
func (s *PostgresStoreSuite) TestConcurrentTransitions() {
	ctx := context.Background()
	req := newTestRequest("C1")
	s.Require().NoError(s.store.Create(ctx, req))

	const goroutines = 10
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := range goroutines {
		target := models.StatusAccepted
		if i%2 == 0 {
			target = models.StatusRejected
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now()
			_, err := s.store.Execute(ctx, req.ID,
				func(r *models.DocumentRequest) error { return r.CanTransitionTo(target, now) },
				func(r *models.DocumentRequest) { r.ApplyTransition(target, now) },
			)
			if err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *PostgresStoreSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()
	req := newTestRequest("C1")
	s.Require().NoError(s.store.Create(ctx, req))

	existed, err := s.store.Delete(ctx, req.ID)
	s.Require().NoError(err)
	s.True(existed)

	existed, err = s.store.Delete(ctx, req.ID)
	s.Require().NoError(err)
	s.False(existed)
}
