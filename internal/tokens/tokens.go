// Package tokens manages per-user, per-platform credentials. Registering
// a new token for a platform deactivates whatever token was previously
// active, so a dispatch lookup never finds more than one candidate.
package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatdispatch/internal/db"
	"chatdispatch/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	db     *db.PostgresDB
	logger *zap.Logger
}

func New(pg *db.PostgresDB, logger *zap.Logger) *Service {
	return &Service{db: pg, logger: logger}
}

// Register upserts a user's credential for a platform: any token
// currently active for that (user, platform) pair is marked inactive in
// the same transaction before the new one is inserted.
func (s *Service) Register(ctx context.Context, userID string, platform model.Platform, accessToken string, refreshToken *string) (model.PlatformToken, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PlatformToken{}, fmt.Errorf("tokens: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE platform_tokens SET status = $1, updated_at = $2
		 WHERE user_id = $3 AND platform = $4 AND status = $5`,
		model.TokenInactive, now, userID, platform, model.TokenActive)
	if err != nil {
		return model.PlatformToken{}, fmt.Errorf("tokens: deactivate previous: %w", err)
	}

	token := model.PlatformToken{
		ID:           uuid.NewString(),
		UserID:       userID,
		Platform:     platform,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Status:       model.TokenActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO platform_tokens (id, user_id, platform, access_token, refresh_token, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		token.ID, token.UserID, token.Platform, token.AccessToken, token.RefreshToken,
		token.Status, token.CreatedAt, token.UpdatedAt)
	if err != nil {
		return model.PlatformToken{}, fmt.Errorf("tokens: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.PlatformToken{}, fmt.Errorf("tokens: commit: %w", err)
	}

	s.logger.Info("token registered", zap.String("user_id", userID), zap.String("platform", string(platform)))
	return token, nil
}

// GetActive returns the single active credential for a (user, platform)
// pair, or model.ErrNoActiveToken if the user never registered one (or
// it was superseded and nothing replaced it).
func (s *Service) GetActive(ctx context.Context, userID string, platform model.Platform) (model.PlatformToken, error) {
	var t model.PlatformToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, platform, access_token, refresh_token, status, created_at, updated_at
		 FROM platform_tokens WHERE user_id = $1 AND platform = $2 AND status = $3`,
		userID, platform, model.TokenActive).
		Scan(&t.ID, &t.UserID, &t.Platform, &t.AccessToken, &t.RefreshToken, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PlatformToken{}, model.ErrNoActiveToken
	}
	if err != nil {
		return model.PlatformToken{}, fmt.Errorf("tokens: get active: %w", err)
	}
	return t, nil
}

func (s *Service) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
