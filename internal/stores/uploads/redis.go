// Package uploads stores the ephemeral upload sessions issued to callers.
package uploads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "storyvideo:upload:"

// RedisStore keeps upload sessions in Redis under a TTL
type RedisStore struct {
	client goredis.UniversalClient
}

// NewRedisStore creates a store backed by the given Redis client
func NewRedisStore(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(uploadID string) string {
	return keyPrefix + uploadID
}

// Save records a session that expires after ttl
func (s *RedisStore) Save(ctx context.Context, session *content.UploadSession, ttl time.Duration) error {
	if session.UploadID == "" {
		return fmt.Errorf("upload_id cannot be empty")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode upload session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(session.UploadID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save upload session: %w", err)
	}
	return nil
}

// Lookup returns the live session for an upload handle, or content.ErrNotFound
func (s *RedisStore) Lookup(ctx context.Context, uploadID string) (*content.UploadSession, error) {
	if uploadID == "" {
		return nil, content.ErrNotFound
	}

	data, err := s.client.Get(ctx, sessionKey(uploadID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, content.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}

	var session content.UploadSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode upload session: %w", err)
	}
	return &session, nil
}

// Consume removes a session. Missing sessions are not an error
func (s *RedisStore) Consume(ctx context.Context, uploadID string) error {
	if err := s.client.Del(ctx, sessionKey(uploadID)).Err(); err != nil {
		return fmt.Errorf("failed to consume upload session: %w", err)
	}
	return nil
}

// Ensure RedisStore implements content.UploadSessionStore
var _ content.UploadSessionStore = (*RedisStore)(nil)
