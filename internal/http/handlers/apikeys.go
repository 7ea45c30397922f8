package handlers

import (
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
)

const serviceKeyPrefix = "ed_"

func generateServiceKey() string {
	return serviceKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") +
		strings.ReplaceAll(uuid.NewString(), "-", "")
}

func CreateAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		name := strings.TrimSpace(string(ctx.PostArgs().Peek("name")))
		if name == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "name required")
			return
		}

		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		apiKey := &dbpkg.APIKey{
			UserID: user.ID,
			Name:   name,
			Key:    generateServiceKey(),
			Active: true,
		}
		if err := db.Create(apiKey).Error; err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create API key")
			return
		}

		ctx.Redirect("/settings", fasthttp.StatusSeeOther)
	}
}

// loadOwnedKey finds the key named by the "id" argument and checks that
// the session user owns it or is an admin.
func loadOwnedKey(ctx *fasthttp.RequestCtx, db *gorm.DB, id string) (*dbpkg.APIKey, bool) {
	if id == "" {
		errResponse(ctx, fasthttp.StatusBadRequest, "id required")
		return nil, false
	}
	user, ok := MustUser(ctx)
	if !ok {
		return nil, false
	}
	var apiKey dbpkg.APIKey
	if err := db.First(&apiKey, id).Error; err != nil {
		errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
		return nil, false
	}
	if apiKey.UserID != user.ID && !user.IsAdmin() {
		errResponse(ctx, fasthttp.StatusForbidden, "forbidden")
		return nil, false
	}
	return &apiKey, true
}

func DeleteAPIKey(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKey, ok := loadOwnedKey(ctx, db, string(ctx.PostArgs().Peek("id")))
		if !ok {
			return
		}
		if cfg.ServiceKey != "" && apiKey.Key == cfg.ServiceKey {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot delete the configured service key")
			return
		}
		if err := db.Delete(apiKey).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to delete API key")
			return
		}
		ctx.Redirect("/settings", fasthttp.StatusSeeOther)
	}
}

func SetActiveAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		activeStr := string(ctx.PostArgs().Peek("active"))
		if activeStr != "true" && activeStr != "false" {
			errResponse(ctx, fasthttp.StatusBadRequest, "active (true|false) required")
			return
		}
		apiKey, ok := loadOwnedKey(ctx, db, string(ctx.PostArgs().Peek("id")))
		if !ok {
			return
		}
		if err := db.Model(apiKey).Update("active", activeStr == "true").Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update API key")
			return
		}
		ctx.Redirect("/settings", fasthttp.StatusSeeOther)
	}
}
