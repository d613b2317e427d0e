package tokens

import (
	"context"
	"testing"

	"chatdispatch/internal/db"
	"chatdispatch/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockService(t *testing.T) (sqlmock.Sqlmock, *Service) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return mock, &Service{db: &db.PostgresDB{DB: sqlDB}, logger: zap.NewNop()}
}

func TestService_Register_DeactivatesPrevious(t *testing.T) {
	mock, s := setupMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE platform_tokens SET status`).
		WithArgs(model.TokenInactive, sqlmock.AnyArg(), "user-1", model.PlatformTelegram, model.TokenActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO platform_tokens`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tok, err := s.Register(context.Background(), "user-1", model.PlatformTelegram, "tok-abc", nil)
	require.NoError(t, err)
	assert.Equal(t, model.TokenActive, tok.Status)
	assert.Equal(t, "user-1", tok.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetActive_NotFound(t *testing.T) {
	mock, s := setupMockService(t)

	mock.ExpectQuery(`SELECT id, user_id, platform, access_token, refresh_token, status, created_at, updated_at`).
		WithArgs("user-1", model.PlatformVK, model.TokenActive).
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := s.GetActive(context.Background(), "user-1", model.PlatformVK)
	require.ErrorIs(t, err, model.ErrNoActiveToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}
