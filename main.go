package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"execdash/internal/config"
	"execdash/internal/db"
	"execdash/internal/feed"
	"execdash/internal/http/handlers"
	appmw "execdash/internal/http/middleware"
	"execdash/internal/logger"
	"execdash/internal/scenario"
	"execdash/internal/store"
	"execdash/internal/telemetry"
	ui "execdash/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database", "error", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatal("failed to ensure bootstrap admin", "error", err)
	}
	if cfg.ServiceKey != "" {
		if err := db.EnsureServiceKey(sqlDB, cfg); err != nil {
			log.Warn("failed to register service key", "error", err)
		} else {
			log.Info("service key registered for bootstrap admin")
		}
	}

	telemetry.Register()

	hub := feed.NewHub(log)
	defer hub.Close()

	var pub feed.Publisher = hub
	if cfg.FeedBackend == config.FeedBackendRedis {
		bus, err := feed.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Fatal("failed to connect change feed", "error", err)
		}
		defer bus.Close()
		// Writes from any replica reach local subscribers through Redis.
		if err := bus.StartForwarder(ctx, hub.Broadcast); err != nil {
			log.Fatal("failed to subscribe to change feed", "error", err)
		}
		pub = bus
	}

	metrics := store.New(sqlDB,
		store.WithPublisher(pub),
		store.WithWriteMode(cfg.WriteMode),
		store.WithLogger(log),
	)
	scenarios := scenario.NewStore(sqlDB, log)

	policy := db.RetentionPolicy{
		AuditRetention: time.Duration(cfg.AuditRetentionDays) * 24 * time.Hour,
	}
	if cfg.WriteMode == config.WriteModeAppend {
		policy.HistoryKeep = cfg.HistoryKeep
	}
	db.StartRetentionWorker(ctx, sqlDB, policy, log)

	r := router.New()
	handler := appmw.RequestLogger(log)(r.Handler)

	auth := appmw.AdminAuth(sqlDB, cfg)
	editorOnly := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth(appmw.RequireEditor(h))
	}
	adminOnly := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth(appmw.RequireAdmin(h))
	}

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	r.GET("/metrics", handlers.PrometheusMetrics(prometheus.DefaultGatherer))

	r.ServeFS("/static/{filepath:*}", ui.StaticFS())

	r.GET("/login", handlers.LoginForm(cfg))
	r.POST("/login", handlers.LoginSubmit(sqlDB, cfg))
	r.POST("/logout", handlers.Logout(sqlDB))

	r.GET("/", auth(handlers.Dashboard(metrics, cfg, log)))
	r.GET("/admin", editorOnly(handlers.AdminPage(sqlDB, metrics, cfg, log)))
	r.POST("/admin/metrics", editorOnly(handlers.AdminMetricsSubmit(metrics, log)))
	r.GET("/settings", auth(handlers.SettingsPage(sqlDB, cfg)))
	r.GET("/users", adminOnly(handlers.UsersPage(sqlDB, cfg)))

	r.POST("/admin/users/create", adminOnly(handlers.CreateUser(sqlDB)))
	r.POST("/admin/users/{id}/role", adminOnly(handlers.SetUserRole(sqlDB, cfg)))
	r.POST("/admin/users/{id}/reset-password", adminOnly(handlers.ResetPassword(sqlDB, cfg)))
	r.POST("/admin/users/{id}/delete", adminOnly(handlers.DeleteUser(sqlDB, cfg)))

	r.POST("/settings/password", auth(handlers.ChangePasswordSelf(sqlDB, cfg)))
	r.POST("/settings/display", auth(handlers.UpdateDisplaySettings(sqlDB)))

	r.POST("/admin/apikeys/create", editorOnly(handlers.CreateAPIKey(sqlDB)))
	r.POST("/admin/apikeys/delete", editorOnly(handlers.DeleteAPIKey(sqlDB, cfg)))
	r.POST("/admin/apikeys/set-active", editorOnly(handlers.SetActiveAPIKey(sqlDB)))

	r.GET("/api/metrics", auth(handlers.GetMetrics(metrics, log)))
	r.POST("/api/metrics", editorOnly(handlers.PostMetrics(metrics, log)))
	r.GET("/api/metrics/history", auth(handlers.MetricsHistory(metrics)))

	r.GET("/api/dashboard", auth(handlers.DashboardView(metrics, hub, log)))
	r.GET("/api/dashboard/stream", auth(handlers.DashboardStream(ctx, metrics, hub, log)))

	r.GET("/api/scenarios", auth(handlers.ListScenarios(scenarios)))
	r.POST("/api/scenarios", editorOnly(handlers.CreateScenario(scenarios, metrics)))
	r.PUT("/api/scenarios/{id}", editorOnly(handlers.UpdateScenario(scenarios, metrics)))
	r.DELETE("/api/scenarios/{id}", editorOnly(handlers.DeleteScenario(scenarios)))
	r.GET("/api/scenarios/{id}/projection", auth(handlers.ScenarioProjection(scenarios, metrics)))

	r.GET("/api/audit-logs", editorOnly(handlers.ListAuditLogs(sqlDB)))
	r.GET("/api/audit-logs/{id}", editorOnly(handlers.AuditLogDetail(sqlDB)))

	r.POST("/v1/metrics", appmw.BearerAuth(sqlDB, log)(handlers.IngestMetrics(metrics, log)))

	srv := &fasthttp.Server{
		Handler: handler,
		Name:    "execdash",
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("execdash listening", "addr", cfg.ListenAddr, "writeMode", cfg.WriteMode, "feed", cfg.FeedBackend)
		errc <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.Fatal("server error", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			log.Warn("shutdown incomplete", "error", err)
		}
	}
}
