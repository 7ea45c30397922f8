package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"execdash/internal/dashboard"
	"execdash/internal/feed"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
)

const streamHeartbeat = 15 * time.Second

type viewResponse struct {
	View dashboard.View `json:"view"`
	Demo bool           `json:"demo"`
}

// DashboardView returns the view a freshly mounted dashboard would show.
func DashboardView(st dashboard.Loader, sub feed.Subscriber, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		r := dashboard.NewRenderer(st, sub, log)
		defer r.Unmount()
		view := r.Mount(httpctx.Context(ctx))
		jsonResponse(ctx, viewResponse{View: view, Demo: r.Demo()})
	}
}

// DashboardStream mounts one renderer per connection and pushes the
// rebuilt view as a "view" event after every change. The renderer is
// unmounted when the server shuts down or a write fails. A client that
// disconnects is only noticed on the next write, so an idle renderer can
// outlive its client by up to one heartbeat interval.
func DashboardStream(shutdown context.Context, st dashboard.Loader, sub feed.Subscriber, log *logger.Logger) fasthttp.RequestHandler {
	log = log.With("component", "DashboardStream")
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("text/event-stream")
		ctx.Response.Header.Set("Cache-Control", "no-cache")
		ctx.Response.Header.Set("Connection", "keep-alive")
		ctx.Response.Header.Set("X-Accel-Buffering", "no")

		// ctx must not be touched once the stream writer runs.
		mountCtx := httpctx.Context(ctx)
		clientID := uuid.New()

		ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
			r := dashboard.NewRenderer(st, sub, log)
			defer r.Unmount()

			r.Mount(mountCtx)
			log.Debug("dashboard stream opened", "clientID", clientID)
			defer log.Debug("dashboard stream closed", "clientID", clientID)

			// Mount signals once for the initial view; consume it before
			// sending so a change arriving meanwhile is not lost.
			changes := r.Changes()
			select {
			case <-changes:
			default:
			}
			if err := writeViewEvent(w, r.View(), r.Demo()); err != nil {
				return
			}

			ticker := time.NewTicker(streamHeartbeat)
			defer ticker.Stop()

			for {
				select {
				case <-shutdown.Done():
					return
				case _, ok := <-changes:
					if !ok {
						return
					}
					if err := writeViewEvent(w, r.View(), r.Demo()); err != nil {
						return
					}
				case <-ticker.C:
					if _, err := w.WriteString(": ping\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})
	}
}

func writeViewEvent(w *bufio.Writer, view dashboard.View, demo bool) error {
	b, err := json.Marshal(viewResponse{View: view, Demo: demo})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", b); err != nil {
		return err
	}
	return w.Flush()
}
