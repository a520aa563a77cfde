//go:build integration

package notification_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"docexchange/internal/notification"
	"docexchange/internal/requests/models"
	"docexchange/pkg/testutil/containers"
)

type RedisSlotSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	coord *notification.Coordinator
}

func TestRedisSlotSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSlotSuite))
}

func (s *RedisSlotSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.coord = notification.New(
		notification.NewRedisSlot(s.redis.Client),
		notification.WithSignaler(notification.NewRedisSignaler(s.redis.Client, logger)),
		notification.WithLogger(logger),
	)
}

func (s *RedisSlotSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSlotSuite) TestPendingLastWriteWinsAndSignals() {
	ctx := context.Background()
	sub := s.redis.Client.Subscribe(ctx, notification.Topic("org-1"))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	s.Require().NoError(err)

	now := time.Now().UTC()
	a, err := models.NewDocumentRequest(models.NewRequestID(), "A", []string{"passport"}, "", "org-1", now, time.Hour)
	s.Require().NoError(err)
	b, err := models.NewDocumentRequest(models.NewRequestID(), "B", []string{"visa"}, "", "org-1", now, time.Hour)
	s.Require().NoError(err)

	s.Require().NoError(s.coord.PostPending(ctx, "org-1", a))
	s.Require().NoError(s.coord.PostPending(ctx, "org-1", b))

	got, err := s.coord.TakePending(ctx, "org-1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(b.ID.String(), got.RequestID)

	got, err = s.coord.TakePending(ctx, "org-1")
	s.Require().NoError(err)
	s.Nil(got)

	msg, err := sub.ReceiveMessage(ctx)
	s.Require().NoError(err)
	s.Equal(a.ID.String(), msg.Payload)
}

func (s *RedisSlotSuite) TestMalformedResponseIsCleared() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "docexchange:notify:org-1:response", "garbage", 0).Err())

	got, err := s.coord.TakeResponse(ctx, "org-1")
	s.Require().NoError(err)
	s.Nil(got)

	exists, err := s.redis.Client.Exists(ctx, "docexchange:notify:org-1:response").Result()
	s.Require().NoError(err)
	s.Zero(exists)
}
