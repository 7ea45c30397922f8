package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "execdash/internal/db"
)

func ListAuditLogs(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
		logs, err := dbpkg.ListAuditLogs(db, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load audit logs")
			return
		}
		timeFormat, dateFormat := displayPrefs(user)
		jsonResponse(ctx, map[string]any{"logs": auditRows(logs, timeFormat, dateFormat)})
	}
}

func AuditLogDetail(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		id, ok := pathID(ctx)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid id")
			return
		}

		var row dbpkg.AuditLog
		if err := db.First(&row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errResponse(ctx, fasthttp.StatusNotFound, "audit log not found")
				return
			}
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load audit log")
			return
		}

		timeFormat, dateFormat := displayPrefs(user)
		resp := map[string]any{
			"id":                 row.ID,
			"created_at":         row.CreatedAt.Format(time.RFC3339Nano),
			"created_at_display": auditRows([]dbpkg.AuditLog{row}, timeFormat, dateFormat)[0].When,
			"actor":              row.Actor,
			"action":             row.Action,
			"table_name":         row.Table,
			"record_id":          row.RecordID,
			"old_data":           row.OldData,
			"new_data":           row.NewData,
		}
		jsonResponse(ctx, resp)
	}
}
