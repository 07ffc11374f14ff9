package domain

import "time"

// Role is the closed set of account variants the directory knows about.
// Profile-specific fields for each variant live in the CRUD layer's own
// tables, related by principal id.
type Role string

const (
	RoleManager Role = "manager"
	RoleCompany Role = "company"
)

func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleCompany:
		return true
	}
	return false
}

// Principal is an authenticable identity. The auth core reads it and
// mutates only the password hash (during reset).
type Principal struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	Role         Role      `gorm:"size:32;not null" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
