// Package auth gates the HTTP surface with a bearer-token session.
// Credential issuance itself is out of scope for this module (per its
// own non-goals around account management): AuthenticateBearerToken is
// a fixed-secret stub standing in for a real identity provider, the
// same way the teacher's own AuthenticateAPIKey stubbed a single demo
// client rather than implementing full API-key management.
package auth

import (
	"context"
	"database/sql"
	"fmt"

	"chatdispatch/internal/db"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Session identifies the user on whose behalf a request is made.
type Session struct {
	UserID    string `json:"user_id"`
	TokenHash string `json:"-"`
}

type AuthService struct {
	db     *db.PostgresDB
	logger *zap.Logger
}

func NewAuthService(pg *db.PostgresDB, logger *zap.Logger) *AuthService {
	return &AuthService{db: pg, logger: logger}
}

// CreateUserToken hashes and persists a bearer token for a user. It is
// not exposed over HTTP by this module; operators provision tokens out
// of band.
func (a *AuthService) CreateUserToken(ctx context.Context, userID, token string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash token: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO user_tokens (id, user_id, token_hash) VALUES ($1, $2, $3)`,
		uuid.NewString(), userID, string(hashed))
	if err != nil {
		return fmt.Errorf("auth: insert user token: %w", err)
	}
	return nil
}

// AuthenticateBearerToken resolves a bearer token to a session. It is
// currently a fixed-secret stub: a real implementation would look the
// token up by hash and compare with bcrypt.CompareHashAndPassword.
func (a *AuthService) AuthenticateBearerToken(ctx context.Context, token string) (*Session, error) {
	if token != "demo-token" {
		return nil, fmt.Errorf("auth: invalid bearer token")
	}
	return &Session{UserID: "demo-user"}, nil
}

func (a *AuthService) GetSessionByUserID(ctx context.Context, userID string) (*Session, error) {
	var hash string
	err := a.db.QueryRowContext(ctx,
		`SELECT token_hash FROM user_tokens WHERE user_id = $1 LIMIT 1`, userID).
		Scan(&hash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("auth: no token for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: get session: %w", err)
	}
	return &Session{UserID: userID, TokenHash: hash}, nil
}

// RequireBearerToken is Fiber middleware gating every authenticated
// route behind a valid Authorization: Bearer header.
func (a *AuthService) RequireBearerToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		session, err := a.AuthenticateBearerToken(c.Context(), header[len(prefix):])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid bearer token"})
		}

		c.Locals("session", session)
		return c.Next()
	}
}

// SessionFromContext retrieves the session RequireBearerToken attached.
func SessionFromContext(c *fiber.Ctx) (*Session, error) {
	session, ok := c.Locals("session").(*Session)
	if !ok {
		return nil, fmt.Errorf("auth: session not found in context")
	}
	return session, nil
}
