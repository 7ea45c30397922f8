package middleware

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
)

// BearerAuth validates Bearer tokens against service keys in the database.
// Keys whose owner cannot edit metrics are rejected.
func BearerAuth(db *gorm.DB, log *logger.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			auth := ctx.Request.Header.Peek("Authorization")
			if len(auth) == 0 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(auth, []byte(prefix)) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(auth[len(prefix):]))
			if token == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("empty bearer token")
				return
			}

			var apiKey dbpkg.APIKey
			if err := db.Where("key = ? AND active = ?", token, true).Preload("User").First(&apiKey).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					ctx.SetBodyString("invalid API key")
					return
				}
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("database error")
				return
			}
			if !apiKey.User.CanEdit() {
				ctx.SetStatusCode(fasthttp.StatusForbidden)
				ctx.SetBodyString("key owner may not edit metrics")
				return
			}

			now := time.Now()
			if err := db.Model(&apiKey).Update("last_used_at", now).Error; err != nil {
				log.Warn("failed to record key use", "keyID", apiKey.ID, "error", err)
			}
			apiKey.LastUsedAt = &now

			httpctx.SetAPIKey(ctx, &apiKey)
			httpctx.SetUser(ctx, &apiKey.User)
			next(ctx)
		}
	}
}
