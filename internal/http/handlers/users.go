package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
)

const usersTable = "users"

// userAudit is what the audit log records about a user. Password hashes
// never leave the users table; a password change is recorded as a flag.
type userAudit struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

func auditOf(u *dbpkg.User) *userAudit {
	return &userAudit{Username: u.Username, Role: u.Role}
}

// auditUser writes the audit row for a user change inside tx, so the
// change and its record commit together.
func auditUser(ctx *fasthttp.RequestCtx, tx *gorm.DB, action string, id uint, before, after *userAudit) error {
	e := dbpkg.AuditEntry{
		Actor:    httpctx.Actor(ctx),
		Action:   action,
		Table:    usersTable,
		RecordID: strconv.FormatUint(uint64(id), 10),
		At:       time.Now(),
	}
	if before != nil {
		e.Old = before
	}
	if after != nil {
		e.New = after
	}
	return dbpkg.AppendAudit(tx, e)
}

func CreateUser(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		username := string(ctx.PostArgs().Peek("username"))
		password := string(ctx.PostArgs().Peek("password"))
		role := string(ctx.PostArgs().Peek("role"))
		if role == "" {
			role = dbpkg.RoleViewer
		}

		if username == "" || password == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "username and password required")
			return
		}
		if !dbpkg.ValidRole(role) {
			errResponse(ctx, fasthttp.StatusBadRequest, "role must be admin, editor or viewer")
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			user, err := dbpkg.CreateUser(tx, username, password, role)
			if err != nil {
				return err
			}
			return auditUser(ctx, tx, "INSERT", user.ID, nil, auditOf(user))
		})
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create user (username may already exist)")
			return
		}

		ctx.Redirect("/users", fasthttp.StatusSeeOther)
	}
}

// loadManagedUser resolves {id} to a user other than the bootstrap admin.
func loadManagedUser(ctx *fasthttp.RequestCtx, db *gorm.DB, cfg *config.Config) (*dbpkg.User, bool) {
	id, ok := pathID(ctx)
	if !ok {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid user ID")
		return nil, false
	}

	var user dbpkg.User
	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errResponse(ctx, fasthttp.StatusNotFound, "user not found")
			return nil, false
		}
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load user")
		return nil, false
	}

	if user.Username == cfg.AdminUser {
		errResponse(ctx, fasthttp.StatusForbidden, "cannot modify bootstrap admin user")
		return nil, false
	}
	return &user, true
}

func SetUserRole(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := loadManagedUser(ctx, db, cfg)
		if !ok {
			return
		}
		role := string(ctx.PostArgs().Peek("role"))
		if !dbpkg.ValidRole(role) {
			errResponse(ctx, fasthttp.StatusBadRequest, "role must be admin, editor or viewer")
			return
		}
		if role == user.Role {
			ctx.Redirect("/users", fasthttp.StatusSeeOther)
			return
		}

		before := auditOf(user)
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(user).Update("role", role).Error; err != nil {
				return err
			}
			user.Role = role
			return auditUser(ctx, tx, "UPDATE", user.ID, before, auditOf(user))
		})
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update role")
			return
		}
		ctx.Redirect("/users", fasthttp.StatusSeeOther)
	}
}

// ResetPassword sets a new password for another user and signs them out
// everywhere.
func ResetPassword(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := loadManagedUser(ctx, db, cfg)
		if !ok {
			return
		}

		password := string(ctx.PostArgs().Peek("password"))
		if password == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "password required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		after := auditOf(user)
		after.Password = "reset"
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(user).Update("password_hash", string(hash)).Error; err != nil {
				return err
			}
			if err := dbpkg.DeleteUserSessions(tx, user.ID); err != nil {
				return err
			}
			return auditUser(ctx, tx, "UPDATE", user.ID, auditOf(user), after)
		})
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update password")
			return
		}

		ctx.Redirect("/users", fasthttp.StatusSeeOther)
	}
}

// DeleteUser removes a user together with their service keys and sessions.
func DeleteUser(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := loadManagedUser(ctx, db, cfg)
		if !ok {
			return
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ?", user.ID).Delete(&dbpkg.APIKey{}).Error; err != nil {
				return err
			}
			if err := dbpkg.DeleteUserSessions(tx, user.ID); err != nil {
				return err
			}
			if err := tx.Delete(user).Error; err != nil {
				return err
			}
			return auditUser(ctx, tx, "DELETE", user.ID, auditOf(user), nil)
		})
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to delete user")
			return
		}

		ctx.Redirect("/users", fasthttp.StatusSeeOther)
	}
}
