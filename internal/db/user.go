package db

import (
	"time"
)

// Roles a dashboard user can hold. Editors and admins may submit metrics;
// only admins manage users and service keys.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// User represents a dashboard user that can sign in to the UI. The
// bootstrap admin user (from env) is created as a row in this table on
// startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	Role string `gorm:"size:16;not null;default:viewer"`

	LastLogin *time.Time

	// TimeFormat: "12" = 12-hour, "24" = 24-hour. Default "12".
	TimeFormat string `gorm:"size:8;default:12"`
	// DateFormat: "dd-mm-yyyy", "mm-dd-yyyy", "yyyy-mm-dd". Default "dd-mm-yyyy".
	DateFormat string `gorm:"size:16;default:dd-mm-yyyy"`
}

// IsAdmin reports whether the user can manage users and keys.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// CanEdit reports whether the user may submit metric changes.
func (u *User) CanEdit() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleEditor)
}

// ValidRole reports whether r names a known role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}
