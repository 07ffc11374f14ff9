package domain

import "time"

// PasswordResetToken is the short-lived single-use code mailed to a
// principal. At most one per principal; a new forgot-password request
// replaces the existing row.
type PasswordResetToken struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	PrincipalID string    `gorm:"size:36;uniqueIndex;not null" json:"principal_id"`
	Token       string    `gorm:"size:16;index;not null" json:"-"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}
