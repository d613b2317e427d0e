package model

import "time"

// TokenStatus distinguishes the single active credential from ones a
// newer upsert has superseded.
type TokenStatus string

const (
	TokenActive   TokenStatus = "active"
	TokenInactive TokenStatus = "inactive"
)

// PlatformToken is the credential a user registered for a platform. At
// most one token per (UserID, Platform) carries TokenActive at a time;
// upserting a new one deactivates the previous active row.
type PlatformToken struct {
	ID           string      `json:"id" db:"id"`
	UserID       string      `json:"user_id" db:"user_id"`
	Platform     Platform    `json:"platform" db:"platform"`
	AccessToken  string      `json:"-" db:"access_token"`
	RefreshToken *string     `json:"-" db:"refresh_token"`
	Status       TokenStatus `json:"status" db:"status"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}
