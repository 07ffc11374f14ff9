package domain

import "time"

// Session is the single live refresh-session for a principal. The unique
// index on PrincipalID enforces at-most-one-session-per-principal; a new
// login supersedes any prior row.
type Session struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	PrincipalID  string    `gorm:"size:36;uniqueIndex;not null" json:"principal_id"`
	RefreshToken string    `gorm:"size:1024;not null" json:"-"`
	ExpiresAt    time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
