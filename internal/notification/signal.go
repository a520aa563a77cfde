package notification

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LogSignaler records interest signals in the log only.
type LogSignaler struct {
	logger *slog.Logger
}

func NewLogSignaler(logger *slog.Logger) *LogSignaler {
	return &LogSignaler{logger: logger}
}

func (s *LogSignaler) Signal(ctx context.Context, channel, requestID string) {
	s.logger.InfoContext(ctx, "pending notification posted",
		"channel", channel,
		"document_request_id", requestID,
	)
}

// RedisSignaler publishes the request id on the channel's pub/sub topic so
// live listeners can open the request. Publish failures are logged.
type RedisSignaler struct {
	client redis.Cmdable
	logger *slog.Logger
}

func NewRedisSignaler(client redis.Cmdable, logger *slog.Logger) *RedisSignaler {
	return &RedisSignaler{client: client, logger: logger}
}

// Topic is the pub/sub topic listeners of channel subscribe to.
func Topic(channel string) string {
	return keyPrefix + channel + ":events"
}

func (s *RedisSignaler) Signal(ctx context.Context, channel, requestID string) {
	receivers, err := s.client.Publish(ctx, Topic(channel), requestID).Result()
	if err != nil {
		s.logger.WarnContext(ctx, "pending notification signal failed",
			"channel", channel,
			"document_request_id", requestID,
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "pending notification posted",
		"channel", channel,
		"document_request_id", requestID,
		"listeners", receivers,
	)
}
