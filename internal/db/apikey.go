package db

import (
	"time"
)

// APIKey is a service key that lets scripts and feeders write metrics
// with a bearer token instead of a browser session. Writes made with a key
// are attributed to the owning user in the audit log.
type APIKey struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the user who owns it.
	UserID uint `gorm:"index;not null"`

	// Name is a user-friendly identifier for this key (e.g. "nightly-import").
	Name string `gorm:"size:128;not null"`

	// Key is the bearer token value (stored as-is, unique).
	Key string `gorm:"uniqueIndex;size:255;not null"`

	// Active indicates whether this key is currently enabled.
	Active bool `gorm:"default:true"`

	LastUsedAt *time.Time

	// User is the owner of this API key.
	User User `gorm:"foreignKey:UserID"`
}
