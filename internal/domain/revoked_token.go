package domain

import "time"

// RevokedToken is a denylist entry recorded at logout. A refresh token
// whose signature still validates is refused until its natural expiry
// elapses and the sweeper deletes the row.
type RevokedToken struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TokenID   string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
