// Package delegation resolves which sharer a caller may act for.
package delegation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethanbaker/storyvideo/pkg/content"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DelegationModel grants an executor the right to act for a sharer once verified
type DelegationModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	ExecutorID string `gorm:"column:executor_id;size:64;not null;uniqueIndex:ux_delegation_executor_sharer,priority:1"`
	SharerID   string `gorm:"column:sharer_id;size:64;not null;uniqueIndex:ux_delegation_executor_sharer,priority:2"`
	Verified   bool   `gorm:"column:verified;not null;default:false"`
}

// TableName sets the table name for GORM
func (DelegationModel) TableName() string {
	return "sharer_delegations"
}

// Store resolves delegations from MySQL
type Store struct {
	db *gorm.DB
}

// NewStoreFromDB wraps an existing GORM connection
func NewStoreFromDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the delegation table
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&DelegationModel{})
}

// Grant creates or updates a delegation
func (s *Store) Grant(ctx context.Context, executorID, sharerID string, verified bool) error {
	model := &DelegationModel{ExecutorID: executorID, SharerID: sharerID, Verified: verified}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "executor_id"}, {Name: "sharer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"verified", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to grant delegation: %w", err)
	}
	return nil
}

// EffectiveSharer returns the caller for self-service requests and the named sharer
// when the caller holds a verified delegation for them
func (s *Store) EffectiveSharer(ctx context.Context, callerID, actingFor string) (string, error) {
	return resolve(callerID, actingFor, func() (bool, error) {
		var count int64
		err := s.db.WithContext(ctx).Model(&DelegationModel{}).
			Where("executor_id = ? AND sharer_id = ? AND verified = ?", callerID, actingFor, true).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("failed to check delegation: %w", err)
		}
		return count > 0, nil
	})
}

func resolve(callerID, actingFor string, delegated func() (bool, error)) (string, error) {
	if callerID == "" {
		return "", content.ErrUnauthenticated
	}
	if actingFor == "" || actingFor == callerID {
		return callerID, nil
	}

	ok, err := delegated()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s for %s", content.ErrUnauthorized, callerID, actingFor)
	}
	return actingFor, nil
}

// InMemoryStore provides an in-memory implementation of content.AccessResolver for testing
type InMemoryStore struct {
	verified map[[2]string]bool
	mutex    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory delegation store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{verified: make(map[[2]string]bool)}
}

// Grant creates or updates a delegation
func (s *InMemoryStore) Grant(_ context.Context, executorID, sharerID string, verified bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.verified[[2]string{executorID, sharerID}] = verified
	return nil
}

// EffectiveSharer resolves the sharer the caller acts for
func (s *InMemoryStore) EffectiveSharer(_ context.Context, callerID, actingFor string) (string, error) {
	return resolve(callerID, actingFor, func() (bool, error) {
		s.mutex.RLock()
		defer s.mutex.RUnlock()
		return s.verified[[2]string{callerID, actingFor}], nil
	})
}

// Ensure both stores implement content.AccessResolver
var (
	_ content.AccessResolver = (*Store)(nil)
	_ content.AccessResolver = (*InMemoryStore)(nil)
)
