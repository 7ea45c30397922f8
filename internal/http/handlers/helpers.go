package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "execdash/internal/db"
	httpctx "execdash/internal/http/ctx"
)

// MustUser returns the current user from context, or sends 401 and returns (nil, false).
func MustUser(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	user, ok := httpctx.UserFromCtx(ctx)
	if !ok {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return user, true
}

func jsonResponse(ctx *fasthttp.RequestCtx, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode response")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// pathID parses the {id} route parameter.
func pathID(ctx *fasthttp.RequestCtx) (uint, bool) {
	idStr, ok := ctx.UserValue("id").(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parseRange reads "hours" (float, e.g. 0.5 or 1) or "days" (int) from
// the query and returns the cutoff time. The default is one day.
func parseRange(ctx *fasthttp.RequestCtx, now time.Time) time.Time {
	if h := string(ctx.QueryArgs().Peek("hours")); h != "" {
		if f, err := strconv.ParseFloat(h, 64); err == nil && f > 0 {
			return now.Add(-time.Duration(f * float64(time.Hour)))
		}
	}
	days := 0
	if d := string(ctx.QueryArgs().Peek("days")); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			days = n
		}
	}
	if days == 0 {
		days = 1
	}
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

func displayPrefs(user *dbpkg.User) (timeFormat, dateFormat string) {
	timeFormat = "12"
	dateFormat = "dd-mm-yyyy"
	if user == nil {
		return
	}
	if user.TimeFormat != "" {
		timeFormat = user.TimeFormat
	}
	if user.DateFormat != "" {
		dateFormat = user.DateFormat
	}
	return
}
