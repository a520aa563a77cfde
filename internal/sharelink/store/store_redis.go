package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docexchange/internal/requests/models"
	"docexchange/internal/sharelink"
	"docexchange/pkg/platform/sentinel"
)

const (
	tokenKeyPrefix   = "docexchange:share:token:"
	requestKeyPrefix = "docexchange:share:request:"
)

// RedisStore keeps tokens as JSON values with a TTL of expiry plus the
// retention window, so Redis does the cleanup itself. A per-request set
// indexes token ids for revocation.
type RedisStore struct {
	client    redis.Cmdable
	retention time.Duration
	now       func() time.Time
}

func NewRedis(client redis.Cmdable, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention, now: time.Now}
}

type tokenRecord struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	OwnerID    string    `json:"owner_id"`
	SecretHash string    `json:"secret_hash"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func tokenKey(id string) string {
	return tokenKeyPrefix + id
}

func requestKey(id models.RequestID) string {
	return requestKeyPrefix + id.String()
}

func (s *RedisStore) Save(ctx context.Context, token *sharelink.Token) error {
	payload, err := json.Marshal(tokenRecord{
		ID:         token.ID,
		RequestID:  token.RequestID.String(),
		OwnerID:    token.OwnerID,
		SecretHash: token.SecretHash,
		CreatedAt:  token.CreatedAt,
		ExpiresAt:  token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode share token: %w", err)
	}
	ttl := token.ExpiresAt.Add(s.retention).Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}

	// Token and index entry go out in one MULTI so a live token is never
	// missing from its request's index.
	idx := requestKey(token.RequestID)
	pipe := s.client.TxPipeline()
	created := pipe.SetNX(ctx, tokenKey(token.ID), payload, ttl)
	pipe.SAdd(ctx, idx, token.ID)
	// The index lives at least as long as its longest-lived token.
	pipe.ExpireGT(ctx, idx, ttl)
	pipe.ExpireNX(ctx, idx, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store share token: %w", err)
	}
	if !created.Val() {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*sharelink.Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load share token: %w", err)
	}
	var rec tokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode share token: %w", sentinel.ErrMalformed)
	}
	reqID, err := models.ParseRequestID(rec.RequestID)
	if err != nil {
		return nil, fmt.Errorf("decode share token request id: %w", sentinel.ErrMalformed)
	}
	return &sharelink.Token{
		ID:         rec.ID,
		RequestID:  reqID,
		OwnerID:    rec.OwnerID,
		SecretHash: rec.SecretHash,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
	}, nil
}

// Delete removes the token. The request index entry is left to expire; a
// stale id there only costs a no-op DEL on revocation.
func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, tokenKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("delete share token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) DeleteByRequest(ctx context.Context, requestID models.RequestID) (int, error) {
	idx := requestKey(requestID)
	ids, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, fmt.Errorf("list share tokens: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, tokenKey(id))
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete share tokens: %w", err)
	}
	if err := s.client.Del(ctx, idx).Err(); err != nil {
		return int(n), fmt.Errorf("delete share token index: %w", err)
	}
	return int(n), nil
}

// RemoveExpiredAt is a no-op; key TTLs already enforce retention.
func (s *RedisStore) RemoveExpiredAt(context.Context, time.Time) (int, error) {
	return 0, nil
}
