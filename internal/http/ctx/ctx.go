package ctx

import (
	"context"

	"github.com/valyala/fasthttp"

	dbpkg "execdash/internal/db"
	"execdash/internal/store"
)

const (
	UserKey   = "user"
	APIKeyKey = "apiKey"

	// SessionCookie holds the opaque session token of a signed-in browser.
	SessionCookie = "execdash_session"
)

func SetUser(ctx *fasthttp.RequestCtx, user *dbpkg.User) {
	ctx.SetUserValue(UserKey, user)
}

func UserFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	u, ok := ctx.UserValue(UserKey).(*dbpkg.User)
	return u, ok && u != nil
}

func SetAPIKey(ctx *fasthttp.RequestCtx, apiKey *dbpkg.APIKey) {
	ctx.SetUserValue(APIKeyKey, apiKey)
}

func APIKeyFromCtx(ctx *fasthttp.RequestCtx) (*dbpkg.APIKey, bool) {
	ak, ok := ctx.UserValue(APIKeyKey).(*dbpkg.APIKey)
	return ak, ok && ak != nil
}

// Actor names whoever is making the request, for the audit log: the
// session user, or "key:<name>" followed by the owner for service keys.
func Actor(ctx *fasthttp.RequestCtx) string {
	if ak, ok := APIKeyFromCtx(ctx); ok {
		if ak.User.Username != "" {
			return "key:" + ak.Name + "@" + ak.User.Username
		}
		return "key:" + ak.Name
	}
	if u, ok := UserFromCtx(ctx); ok {
		return u.Username
	}
	return store.SystemActor
}

// Context returns a context carrying the request's actor for store calls.
func Context(ctx *fasthttp.RequestCtx) context.Context {
	return store.WithActor(context.Background(), Actor(ctx))
}
