package api

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"chatdispatch/internal/adapter"
	"chatdispatch/internal/adapter/mock"
	"chatdispatch/internal/db"
	"chatdispatch/internal/model"
	"chatdispatch/internal/send"
	"chatdispatch/internal/store"
	"chatdispatch/internal/tokens"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	pg := &db.PostgresDB{DB: sqlDB}
	st := store.New(pg, zap.NewNop())
	tk := tokens.New(pg, zap.NewNop())
	registry := adapter.NewRegistry(mock.New(model.PlatformTelegram, zap.NewNop()))
	uc := send.New(st, tk, nil, registry, zap.NewNop())

	return NewHandlers(zap.NewNop(), st, uc, nil), mockDB
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	h, _ := setupHandlers(t)
	app := fiber.New()
	app.Get("/healthz", h.HealthCheck)

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetMessage_NotFound(t *testing.T) {
	h, mockDB := setupHandlers(t)
	mockDB.ExpectQuery("SELECT id, user_id, payload_kind, payload_text, payload_format, created_at").
		WithArgs("missing-id").
		WillReturnError(sql.ErrNoRows)

	app := fiber.New()
	app.Get("/v1/messages/:id", h.GetMessage)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/messages/missing-id", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.NoError(t, mockDB.ExpectationsWereMet())
}

func TestSendMessage_RejectsUnauthenticated(t *testing.T) {
	h, _ := setupHandlers(t)
	app := fiber.New()
	app.Post("/v1/messages", h.SendMessage)

	req := httptest.NewRequest("POST", "/v1/messages", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
