package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"execdash/internal/config"
	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
	"execdash/internal/testutil"
)

func newKey(t *testing.T, db *gorm.DB, owner, role, key string) {
	t.Helper()
	user, err := dbpkg.CreateUser(db, owner, "pw", role)
	require.NoError(t, err)
	require.NoError(t, db.Create(&dbpkg.APIKey{UserID: user.ID, Name: "feeder", Key: key, Active: true}).Error)
}

func bearerRequest(token string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetRequestURI("/v1/metrics")
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	return &ctx
}

func TestBearerAuth(t *testing.T) {
	db := testutil.NewDB(t)
	newKey(t, db, "amira", dbpkg.RoleEditor, "ed_editor")
	newKey(t, db, "omar", dbpkg.RoleViewer, "ed_viewer")

	var actor string
	h := BearerAuth(db, logger.Nop())(func(ctx *fasthttp.RequestCtx) {
		actor = httpctx.Actor(ctx)
	})

	ctx := bearerRequest("")
	h(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = bearerRequest("ed_unknown")
	h(ctx)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = bearerRequest("ed_viewer")
	h(ctx)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	assert.Empty(t, actor)

	ctx = bearerRequest("ed_editor")
	h(ctx)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "key:feeder@amira", actor)

	var key dbpkg.APIKey
	require.NoError(t, db.Where("key = ?", "ed_editor").First(&key).Error)
	assert.NotNil(t, key.LastUsedAt)
}

func sessionRequest(cookie string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/admin")
	if cookie != "" {
		ctx.Request.Header.SetCookie(httpctx.SessionCookie, cookie)
	}
	return &ctx
}

func newSession(t *testing.T, db *gorm.DB, username, role string) string {
	t.Helper()
	user, err := dbpkg.CreateUser(db, username, "pw", role)
	require.NoError(t, err)
	s, err := dbpkg.CreateSession(db, user.ID, time.Hour, time.Now())
	require.NoError(t, err)
	return s.Token
}

func TestAdminAuthAndRoles(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{AdminUser: "admin"}
	viewer := newSession(t, db, "omar", dbpkg.RoleViewer)
	// bootstrap admin demoted in the table keeps admin rights
	admin := newSession(t, db, "admin", dbpkg.RoleViewer)

	reached := false
	next := func(*fasthttp.RequestCtx) { reached = true }

	ctx := sessionRequest("")
	AdminAuth(db, cfg)(next)(ctx)
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode())
	assert.False(t, reached)

	ctx = sessionRequest(viewer)
	AdminAuth(db, cfg)(RequireEditor(next))(ctx)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
	assert.False(t, reached)

	ctx = sessionRequest(admin)
	AdminAuth(db, cfg)(RequireAdmin(next))(ctx)
	assert.True(t, reached)
}

func TestAdminAuth_RejectsUsernameAsCookie(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{AdminUser: "admin"}
	newSession(t, db, "admin", dbpkg.RoleAdmin)

	reached := false
	ctx := sessionRequest("admin")
	AdminAuth(db, cfg)(RequireAdmin(func(*fasthttp.RequestCtx) { reached = true }))(ctx)

	assert.False(t, reached)
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Location")), "/login")
}

func TestAdminAuth_ExpiredSessionIsRemoved(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.Config{AdminUser: "admin"}
	user, err := dbpkg.CreateUser(db, "amira", "pw", dbpkg.RoleEditor)
	require.NoError(t, err)
	s, err := dbpkg.CreateSession(db, user.ID, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	reached := false
	ctx := sessionRequest(s.Token)
	AdminAuth(db, cfg)(func(*fasthttp.RequestCtx) { reached = true })(ctx)

	assert.False(t, reached)
	assert.Equal(t, fasthttp.StatusSeeOther, ctx.Response.StatusCode())
	var count int64
	require.NoError(t, db.Model(&dbpkg.Session{}).Count(&count).Error)
	assert.Zero(t, count)
}
