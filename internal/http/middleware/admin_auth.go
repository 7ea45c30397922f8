package middleware

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
)

// AdminAuth returns middleware that resolves the session cookie to a user
// and sets it on the context. Unknown or expired tokens go back to /login.
func AdminAuth(db *gorm.DB, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := string(ctx.Request.Header.Cookie(httpctx.SessionCookie))
			user, err := dbpkg.LookupSession(db, token, time.Now())
			if err != nil {
				ctx.Redirect("/login", fasthttp.StatusSeeOther)
				return
			}

			// The bootstrap admin keeps admin rights even if demoted in the table.
			if user.Username == cfg.AdminUser {
				user.Role = dbpkg.RoleAdmin
			}

			httpctx.SetUser(ctx, user)
			next(ctx)
		}
	}
}

// RequireEditor rejects session users who may not change metrics. It must
// run after AdminAuth.
func RequireEditor(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := httpctx.UserFromCtx(ctx)
		if !ok || !user.CanEdit() {
			ctx.SetStatusCode(fasthttp.StatusForbidden)
			ctx.SetBodyString("forbidden")
			return
		}
		next(ctx)
	}
}

// RequireAdmin rejects non-admin session users. It must run after AdminAuth.
func RequireAdmin(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := httpctx.UserFromCtx(ctx)
		if !ok || !user.IsAdmin() {
			ctx.SetStatusCode(fasthttp.StatusForbidden)
			ctx.SetBodyString("forbidden")
			return
		}
		next(ctx)
	}
}
