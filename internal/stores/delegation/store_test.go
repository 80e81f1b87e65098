package delegation

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethanbaker/storyvideo/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInMemoryStore_EffectiveSharer(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.Grant(ctx, "executor-1", "sharer-1", true))
	require.NoError(t, store.Grant(ctx, "executor-1", "sharer-2", false))

	tests := []struct {
		name      string
		callerID  string
		actingFor string
		want      string
		wantErr   error
	}{
		{name: "self service", callerID: "sharer-1", want: "sharer-1"},
		{name: "self named explicitly", callerID: "sharer-1", actingFor: "sharer-1", want: "sharer-1"},
		{name: "verified delegation", callerID: "executor-1", actingFor: "sharer-1", want: "sharer-1"},
		{name: "unverified delegation", callerID: "executor-1", actingFor: "sharer-2", wantErr: content.ErrUnauthorized},
		{name: "no delegation", callerID: "stranger", actingFor: "sharer-1", wantErr: content.ErrUnauthorized},
		{name: "no caller", callerID: "", wantErr: content.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.EffectiveSharer(ctx, tt.callerID, tt.actingFor)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewStoreFromDB(gdb), mock
}

func TestStore_EffectiveSharer(t *testing.T) {
	ctx := context.Background()

	t.Run("verified delegation", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `sharer_delegations` WHERE executor_id = \\? AND sharer_id = \\? AND verified = \\?").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

		got, err := store.EffectiveSharer(ctx, "executor-1", "sharer-1")
		require.NoError(t, err)
		assert.Equal(t, "sharer-1", got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no delegation", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `sharer_delegations`").
			WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

		_, err := store.EffectiveSharer(ctx, "executor-1", "sharer-1")
		assert.ErrorIs(t, err, content.ErrUnauthorized)
	})

	t.Run("lookup failure is not an authorization result", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT count\\(\\*\\) FROM `sharer_delegations`").
			WillReturnError(errors.New("connection reset"))

		_, err := store.EffectiveSharer(ctx, "executor-1", "sharer-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, content.ErrUnauthorized)
	})

	t.Run("self service skips the database", func(t *testing.T) {
		store, mock := newMockStore(t)

		got, err := store.EffectiveSharer(ctx, "sharer-1", "")
		require.NoError(t, err)
		assert.Equal(t, "sharer-1", got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
