package handlers

import (
	"bytes"
	"strconv"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"execdash/internal/config"
	"execdash/internal/dashboard"
	dbpkg "execdash/internal/db"
	"execdash/internal/editor"
	"execdash/internal/format"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
	ui "execdash/web"
)

type LayoutData struct {
	Title        string
	ActivePage   string
	PageTemplate string

	Username  string
	Role      string
	IsAdmin   bool
	CanEdit   bool
	AdminUser string

	Users      []dbpkg.User
	Roles      []string
	APIKeys    []dbpkg.APIKey
	ServiceKey string

	TimeFormat string
	DateFormat string

	View           dashboard.View
	Demo           bool
	UpdatedDisplay string

	Fields    []FieldInput
	Maps      []MapSection
	Status    string
	Message   string
	AuditLogs []AuditRow
}

// FieldInput is one scalar input on the admin form.
type FieldInput struct {
	Key     string
	Label   string
	Value   string
	Integer bool
}

// MapSection is one group of keyed inputs on the admin form. Input names
// are "<Prefix>.<key>".
type MapSection struct {
	Title   string
	Prefix  string
	Entries []FieldInput
}

type AuditRow struct {
	ID       uint
	When     string
	Actor    string
	Action   string
	Table    string
	RecordID string
}

func getLayoutData(ctx *fasthttp.RequestCtx, cfg *config.Config, activePage, title, pageTemplate string) LayoutData {
	data := LayoutData{
		Title:        title,
		ActivePage:   activePage,
		PageTemplate: pageTemplate,
		AdminUser:    cfg.AdminUser,
	}
	user, _ := httpctx.UserFromCtx(ctx)
	data.TimeFormat, data.DateFormat = displayPrefs(user)
	if user != nil {
		data.Username = user.Username
		data.Role = user.Role
		data.IsAdmin = user.IsAdmin()
		data.CanEdit = user.CanEdit()
	}
	return data
}

func renderLayout(ctx *fasthttp.RequestCtx, data LayoutData) {
	var buf bytes.Buffer
	if err := ui.Templates().ExecuteTemplate(&buf, "layout", data); err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "render error")
		return
	}
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBody(buf.Bytes())
}

// Dashboard renders the metric cards server side. The page then follows
// /api/dashboard/stream to replace them in place.
func Dashboard(st dashboard.Loader, cfg *config.Config, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		data := getLayoutData(ctx, cfg, "dashboard", "Executive Dashboard", "dashboard")

		s, err := st.GetLatest(httpctx.Context(ctx))
		if err != nil {
			log.Debug("dashboard page using defaults", "error", err)
			s = snapshot.Default()
			data.Demo = true
		}
		data.View = dashboard.BuildView(s)
		data.UpdatedDisplay = format.DateTime(s.UpdatedAt, data.TimeFormat, data.DateFormat)
		renderLayout(ctx, data)
	}
}

// AdminPage shows the editor form filled from the latest snapshot, or the
// defaults when nothing can be loaded.
func AdminPage(db *gorm.DB, st editor.MetricsStore, cfg *config.Config, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		data := getLayoutData(ctx, cfg, "admin", "Admin Editor", "admin")

		ed := editor.New(st, log)
		s := ed.Load(httpctx.Context(ctx))
		status, msg := ed.Status()
		data.Status = string(status)
		data.Message = msg
		data.Demo = status == editor.StatusDemo

		// Status set by the submit redirect wins over the load status.
		if q := string(ctx.QueryArgs().Peek("status")); q != "" {
			data.Status = q
			data.Message = string(ctx.QueryArgs().Peek("message"))
		}

		data.Fields = fieldInputs(s)
		data.Maps = mapSections(s)
		data.UpdatedDisplay = format.DateTime(s.UpdatedAt, data.TimeFormat, data.DateFormat)

		logs, err := dbpkg.ListAuditLogs(db, 10)
		if err != nil {
			log.Warn("failed to load audit logs", "error", err)
		}
		data.AuditLogs = auditRows(logs, data.TimeFormat, data.DateFormat)

		renderLayout(ctx, data)
	}
}

func fieldInputs(s snapshot.Snapshot) []FieldInput {
	out := make([]FieldInput, 0, len(snapshot.Fields))
	for _, f := range snapshot.Fields {
		v, _ := s.Value(f.Key)
		out = append(out, FieldInput{Key: f.Key, Label: f.Label, Value: formValue(v), Integer: f.Integer})
	}
	return out
}

func mapSections(s snapshot.Snapshot) []MapSection {
	s = snapshot.Normalize(s)
	section := func(title, prefix string, keys []string, m map[string]float64) MapSection {
		sec := MapSection{Title: title, Prefix: prefix}
		for _, k := range keys {
			sec.Entries = append(sec.Entries, FieldInput{Key: k, Label: k, Value: formValue(m[k])})
		}
		return sec
	}
	return []MapSection{
		section("Scenario Factors", "scenario_factors", snapshot.ScenarioFactorKeys, s.ScenarioFactors),
		section("Chart Deltas", "chart_deltas", snapshot.ChartDeltaKeys, s.ChartDeltas),
		section("Global Indicators", "global_indicators", snapshot.GlobalIndicatorKeys, s.GlobalIndicators),
	}
}

func formValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func auditRows(logs []dbpkg.AuditLog, timeFormat, dateFormat string) []AuditRow {
	rows := make([]AuditRow, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, AuditRow{
			ID:       l.ID,
			When:     format.DateTime(l.CreatedAt, timeFormat, dateFormat),
			Actor:    l.Actor,
			Action:   l.Action,
			Table:    l.Table,
			RecordID: l.RecordID,
		})
	}
	return rows
}

func SettingsPage(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		q := db.Preload("User").Order("created_at DESC")
		if !user.IsAdmin() {
			q = q.Where("user_id = ?", user.ID)
		}
		var apiKeys []dbpkg.APIKey
		if err := q.Find(&apiKeys).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load API keys")
			return
		}

		data := getLayoutData(ctx, cfg, "settings", "Settings", "settings")
		data.APIKeys = apiKeys
		if user.IsAdmin() {
			data.ServiceKey = cfg.ServiceKey
		}
		renderLayout(ctx, data)
	}
}

func UsersPage(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var users []dbpkg.User
		if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load users")
			return
		}

		data := getLayoutData(ctx, cfg, "users", "Users", "users")
		data.Users = users
		data.Roles = []string{dbpkg.RoleAdmin, dbpkg.RoleEditor, dbpkg.RoleViewer}
		renderLayout(ctx, data)
	}
}

func UpdateDisplaySettings(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}
		timeFormat := string(ctx.PostArgs().Peek("time_format"))
		dateFormat := string(ctx.PostArgs().Peek("date_format"))
		if timeFormat != "12" && timeFormat != "24" {
			timeFormat = "12"
		}
		switch dateFormat {
		case "dd-mm-yyyy", "mm-dd-yyyy", "yyyy-mm-dd":
		default:
			dateFormat = "dd-mm-yyyy"
		}
		if err := db.Model(&dbpkg.User{}).Where("id = ?", user.ID).Updates(map[string]any{
			"time_format": timeFormat,
			"date_format": dateFormat,
		}).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to save display settings")
			return
		}
		ctx.Redirect("/settings", fasthttp.StatusSeeOther)
	}
}
