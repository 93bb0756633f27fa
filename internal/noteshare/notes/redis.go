package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "noteshare:note:"

// redisRecord is the stored form; Note hides the hash from JSON.
type redisRecord struct {
	Text         string    `json:"text"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// RedisStore keeps each note under its own key with a TTL equal to the
// remaining retention, so Redis expires notes by itself.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

// NewRedis wraps client. The caller keeps ownership of client; Close is a no-op.
func NewRedis(client redis.UniversalClient, retention time.Duration, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, retention: retention, now: now}
}

func redisKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, note *Note) (string, error) {
	createdAt := note.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	ttl := s.retention - s.now().Sub(createdAt)
	if ttl <= 0 {
		return "", fmt.Errorf("note already past retention")
	}

	payload, err := json.Marshal(redisRecord{
		Text:         note.Text,
		PasswordHash: note.PasswordHash,
		CreatedAt:    createdAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("encode note: %w", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.NewString()
		ok, err := s.client.SetNX(ctx, redisKey(id), payload, ttl).Result()
		if err != nil {
			return "", fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique note id")
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*Note, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode note %s: %w", id, err)
	}
	// TTL rounding can leave a key alive slightly past the window.
	if Expired(rec.CreatedAt, s.now(), s.retention) {
		return nil, ErrNotFound
	}
	return &Note{
		ID:           id,
		Text:         rec.Text,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return nil }
