package uploads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
)

type entry struct {
	session   content.UploadSession
	expiresAt time.Time
}

// InMemoryStore provides an in-memory implementation of content.UploadSessionStore for testing
type InMemoryStore struct {
	sessions map[string]entry
	now      func() time.Time
	mutex    sync.Mutex
}

// NewInMemoryStore creates a new in-memory upload session store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// Save records a session that expires after ttl. A zero ttl never expires
func (s *InMemoryStore) Save(_ context.Context, session *content.UploadSession, ttl time.Duration) error {
	if session.UploadID == "" {
		return fmt.Errorf("upload_id cannot be empty")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	e := entry{session: *session}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.sessions[session.UploadID] = e
	return nil
}

// Lookup returns the live session for an upload handle
func (s *InMemoryStore) Lookup(_ context.Context, uploadID string) (*content.UploadSession, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, exists := s.sessions[uploadID]
	if !exists {
		return nil, content.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.sessions, uploadID)
		return nil, content.ErrNotFound
	}

	session := e.session
	return &session, nil
}

// Consume removes a session
func (s *InMemoryStore) Consume(_ context.Context, uploadID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, uploadID)
	return nil
}

// Ensure InMemoryStore implements content.UploadSessionStore
var _ content.UploadSessionStore = (*InMemoryStore)(nil)
