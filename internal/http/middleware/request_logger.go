package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"execdash/internal/logger"
	"execdash/internal/telemetry"
)

// RequestLogger logs method, path, status and duration of every request
// and records them in the HTTP collectors. Scrapes of /metrics and
// /healthz are counted but not logged.
func RequestLogger(log *logger.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	log = log.With("component", "HTTP")
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			elapsed := time.Since(start)

			method := string(ctx.Method())
			status := ctx.Response.StatusCode()
			telemetry.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
			telemetry.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())

			path := string(ctx.Path())
			if path == "/metrics" || path == "/healthz" {
				return
			}
			log.Info("request",
				"method", method,
				"path", path,
				"status", status,
				"duration", elapsed,
				"ip", ctx.RemoteAddr().String())
		}
	}
}
