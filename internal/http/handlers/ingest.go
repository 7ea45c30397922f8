package handlers

import (
	"github.com/valyala/fasthttp"

	"execdash/internal/editor"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
)

// IngestMetrics accepts a JSON partial from a feeder script holding a
// service key. It merges onto the latest snapshot like the admin editor,
// but a write that only lands locally is an error for the caller, since
// scripts have no session to keep it in.
func IngestMetrics(st editor.MetricsStore, log *logger.Logger) fasthttp.RequestHandler {
	log = log.With("component", "Ingest")
	return func(ctx *fasthttp.RequestCtx) {
		p, err := decodeEdit(ctx.PostBody())
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if p.IsEmpty() {
			errResponse(ctx, fasthttp.StatusBadRequest, "no fields to update")
			return
		}

		actor := httpctx.Actor(ctx)
		res := editor.New(st, log).Submit(httpctx.Context(ctx), p)
		if res.Status != editor.StatusSaved {
			log.Warn("service write not stored", "actor", actor, "status", res.Status)
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			jsonResponse(ctx, res)
			return
		}

		log.Info("service write stored", "actor", actor, "id", res.Snapshot.ID)
		jsonResponse(ctx, res)
	}
}
