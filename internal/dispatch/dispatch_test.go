package dispatch

import (
	"context"
	"regexp"
	"testing"
	"time"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/adapter/mock"
	"chatdispatch/internal/db"
	"chatdispatch/internal/model"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDispatcher(t *testing.T) (*Dispatcher, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mockSQL, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	pg := &db.PostgresDB{DB: mockDB}
	st := store.New(pg, zap.NewNop())
	tk := tokens.New(pg, zap.NewNop())

	registry := adapter.NewRegistry(
		mock.New(model.PlatformTelegram, zap.NewNop()),
	)

	return New(st, tk, registry, zap.NewNop()), mockSQL
}

func TestHandleItem_DestinationNotFound(t *testing.T) {
	d, mockSQL := setupDispatcher(t)

	mockSQL.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("dest-missing").
		WillReturnError(model.ErrNotFound)

	err := d.HandleItem(context.Background(), model.QueueItem{
		MessageID:     "msg-1",
		DestinationID: "dest-missing",
		Platform:      model.PlatformTelegram,
	})
	require.NoError(t, err)
	require.NoError(t, mockSQL.ExpectationsWereMet())
}

func TestHandleItem_TerminalDestinationSkipped(t *testing.T) {
	d, mockSQL := setupDispatcher(t)

	rows := sqlmock.NewRows([]string{
		"id", "message_id", "platform", "chat_id", "status", "attempt_count",
		"last_attempt_at", "sent_at", "error_reason", "updated_at",
	}).AddRow("dest-1", "msg-1", "telegram", "123", "sent", 1, nil, nil, nil, time.Now())

	mockSQL.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("dest-1").
		WillReturnRows(rows)

	err := d.HandleItem(context.Background(), model.QueueItem{
		MessageID:     "msg-1",
		DestinationID: "dest-1",
		Platform:      model.PlatformTelegram,
	})
	require.NoError(t, err)
	require.NoError(t, mockSQL.ExpectationsWereMet())
}

func TestHandleItem_NoActiveTokenFailsTerminal(t *testing.T) {
	d, mockSQL := setupDispatcher(t)

	destRows := sqlmock.NewRows([]string{
		"id", "message_id", "platform", "chat_id", "status", "attempt_count",
		"last_attempt_at", "sent_at", "error_reason", "updated_at",
	}).AddRow("dest-1", "msg-1", "telegram", "123", "queued", 0, nil, nil, nil, time.Now())
	mockSQL.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("dest-1").WillReturnRows(destRows)

	msgRows := sqlmock.NewRows([]string{"id", "user_id", "kind", "text", "format", "created_at"}).
		AddRow("msg-1", "user-1", "plain", "hi", "plain", time.Now())
	mockSQL.ExpectQuery(regexp.QuoteMeta("SELECT")).WithArgs("msg-1").WillReturnRows(msgRows)

	mockSQL.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("user-1", model.PlatformTelegram, model.TokenActive).
		WillReturnError(model.ErrNoActiveToken)

	mockSQL.ExpectExec(regexp.QuoteMeta("UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockSQL.ExpectExec(regexp.QuoteMeta("INSERT")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := d.HandleItem(context.Background(), model.QueueItem{
		MessageID:     "msg-1",
		DestinationID: "dest-1",
		Platform:      model.PlatformTelegram,
	})
	require.NoError(t, err)
	require.NoError(t, mockSQL.ExpectationsWereMet())
}

