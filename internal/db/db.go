package db

import (
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"execdash/internal/config"
)

const sqlitePrefix = "sqlite://"

// Connect opens a GORM database connection using APP_DATABASE_URL and
// migrates the tables. PostgreSQL URLs are the production target;
// sqlite://<path> is accepted for local runs and the CLI.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL or sqlite://path)")
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		dialector = postgres.Open(dsn)
	case strings.HasPrefix(dsn, sqlitePrefix):
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	default:
		return nil, errors.New("APP_DATABASE_URL must be a postgres://, postgresql:// or sqlite:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(dialector, &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ExecutiveMetrics{}, &User{}, &APIKey{}, &AuditLog{}, &Scenario{}, &Session{})
}

// EnsureBootstrapAdmin makes sure there is at least one admin user
// corresponding to the bootstrap credentials in config. If a user with
// that username already exists, it is left as-is.
func EnsureBootstrapAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("username = ?", cfg.AdminUser).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := CreateUser(db, cfg.AdminUser, cfg.AdminPassword, RoleAdmin)
	return err
}

// CreateUser hashes the password and inserts a user with the given role.
func CreateUser(db *gorm.DB, username, password, role string) (*User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}
	if !ValidRole(role) {
		return nil, errors.New("invalid role")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// EnsureServiceKey registers cfg.ServiceKey as an active API key owned by
// the bootstrap admin. If the key exists under another user it is moved.
func EnsureServiceKey(db *gorm.DB, cfg *config.Config) error {
	if cfg.ServiceKey == "" {
		return nil
	}

	var admin User
	if err := db.Where("username = ?", cfg.AdminUser).First(&admin).Error; err != nil {
		return err
	}

	// Use Find so "not found" doesn't log as error.
	var existing APIKey
	if err := db.Where("key = ?", cfg.ServiceKey).Limit(1).Find(&existing).Error; err == nil && existing.ID != 0 {
		if existing.UserID != admin.ID || !existing.Active {
			existing.UserID = admin.ID
			existing.Active = true
			return db.Save(&existing).Error
		}
		return nil
	}

	return db.Create(&APIKey{
		UserID: admin.ID,
		Name:   "service",
		Key:    cfg.ServiceKey,
		Active: true,
	}).Error
}
