package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoSession is returned when a session token is unknown or expired.
var ErrNoSession = errors.New("no such session")

const defaultSessionTTL = 24 * time.Hour

// Session is a signed-in browser. The cookie carries only Token; the user
// is resolved from this table on every request.
type Session struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`

	Token  string `gorm:"uniqueIndex;size:64;not null"`
	UserID uint   `gorm:"index;not null"`

	User User `gorm:"foreignKey:UserID"`
}

// CreateSession issues a new random token for userID valid for ttl. A
// non-positive ttl falls back to one day.
func CreateSession(db *gorm.DB, userID uint, ttl time.Duration, now time.Time) (*Session, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	now = now.UTC()
	s := &Session{
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Token:     uuid.NewString() + uuid.NewString(),
		UserID:    userID,
	}
	if err := db.Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// LookupSession returns the user owning token. Expired sessions are
// deleted and reported as ErrNoSession.
func LookupSession(db *gorm.DB, token string, now time.Time) (*User, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	var s Session
	err := db.Preload("User").Where("token = ?", token).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if !now.UTC().Before(s.ExpiresAt) || s.User.ID == 0 {
		_ = db.Delete(&s).Error
		return nil, ErrNoSession
	}
	return &s.User, nil
}

// DeleteSession signs out one browser.
func DeleteSession(db *gorm.DB, token string) error {
	return db.Where("token = ?", token).Delete(&Session{}).Error
}

// DeleteUserSessions signs a user out everywhere.
func DeleteUserSessions(db *gorm.DB, userID uint) error {
	return db.Where("user_id = ?", userID).Delete(&Session{}).Error
}
