package handlers

import (
	"bytes"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
	ui "execdash/web"
)

func LoginForm(_ *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		t := ui.Templates().Lookup("login.html")
		if t == nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "login template not found")
			return
		}
		var buf bytes.Buffer
		if err := t.Execute(&buf, nil); err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "render error")
			return
		}
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBody(buf.Bytes())
	}
}

// LoginSubmit checks the password and starts a session. The cookie holds
// an opaque token; the username never leaves the server.
func LoginSubmit(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		username := string(ctx.PostArgs().Peek("username"))
		password := string(ctx.PostArgs().Peek("password"))

		var user dbpkg.User
		if err := db.Where("username = ?", username).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				renderLoginError(ctx, "Invalid username or password.")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			renderLoginError(ctx, "Invalid username or password.")
			return
		}

		now := time.Now()
		session, err := dbpkg.CreateSession(db, user.ID, cfg.SessionTTL, now)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to start session")
			return
		}
		_ = db.Model(&user).Update("last_login", now).Error

		var c fasthttp.Cookie
		c.SetKey(httpctx.SessionCookie)
		c.SetValue(session.Token)
		c.SetPath("/")
		c.SetHTTPOnly(true)
		c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
		c.SetExpire(session.ExpiresAt)
		ctx.Response.Header.SetCookie(&c)

		ctx.Redirect("/", fasthttp.StatusSeeOther)
	}
}

func renderLoginError(ctx *fasthttp.RequestCtx, errMsg string) {
	t := ui.Templates().Lookup("login.html")
	if t != nil {
		var buf bytes.Buffer
		_ = t.Execute(&buf, map[string]any{"Error": errMsg})
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBody(buf.Bytes())
	} else {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString(errMsg)
	}
}

// Logout ends the session named by the cookie and clears it.
func Logout(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if token := ctx.Request.Header.Cookie(httpctx.SessionCookie); len(token) > 0 {
			_ = dbpkg.DeleteSession(db, string(token))
		}

		var c fasthttp.Cookie
		c.SetKey(httpctx.SessionCookie)
		c.SetValue("")
		c.SetPath("/")
		c.SetMaxAge(-1)
		ctx.Response.Header.SetCookie(&c)
		ctx.Redirect("/login", fasthttp.StatusSeeOther)
	}
}

func ChangePasswordSelf(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		if user.Username == cfg.AdminUser {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot change password for bootstrap admin user")
			return
		}

		current := string(ctx.PostArgs().Peek("current_password"))
		newPassword := string(ctx.PostArgs().Peek("new_password"))
		confirm := string(ctx.PostArgs().Peek("confirm_password"))

		if current == "" || newPassword == "" || confirm == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "all password fields are required")
			return
		}
		if newPassword != confirm {
			errResponse(ctx, fasthttp.StatusBadRequest, "new passwords do not match")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
			errResponse(ctx, fasthttp.StatusUnauthorized, "current password is incorrect")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		after := auditOf(user)
		after.Password = "changed"
		keep := string(ctx.Request.Header.Cookie(httpctx.SessionCookie))
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&dbpkg.User{}).Where("id = ?", user.ID).Update("password_hash", string(hash)).Error; err != nil {
				return err
			}
			// Other browsers signed in as this user are signed out.
			if err := tx.Where("user_id = ? AND token <> ?", user.ID, keep).Delete(&dbpkg.Session{}).Error; err != nil {
				return err
			}
			return auditUser(ctx, tx, "UPDATE", user.ID, auditOf(user), after)
		})
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update password")
			return
		}

		ctx.Redirect("/settings", fasthttp.StatusSeeOther)
	}
}
