package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"execdash/internal/editor"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/logger"
	"execdash/internal/snapshot"
	"execdash/internal/store"
)

type metricsResponse struct {
	Snapshot snapshot.Snapshot `json:"snapshot"`
	Demo     bool              `json:"demo"`
}

// GetMetrics returns the latest snapshot. An empty or unreachable store
// yields the defaults with demo set.
func GetMetrics(st editor.MetricsStore, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		s, err := st.GetLatest(httpctx.Context(ctx))
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Warn("serving default metrics", "error", err)
			}
			jsonResponse(ctx, metricsResponse{Snapshot: snapshot.Default(), Demo: true})
			return
		}
		jsonResponse(ctx, metricsResponse{Snapshot: s})
	}
}

// PostMetrics merges a JSON partial onto the latest snapshot through the
// editor flow. A failed write is reported in the result status, not as an
// HTTP error.
func PostMetrics(st editor.MetricsStore, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, err := decodeEdit(ctx.PostBody())
		if err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}
		if p.IsEmpty() {
			errResponse(ctx, fasthttp.StatusBadRequest, "no fields to update")
			return
		}
		res := editor.New(st, log).Submit(httpctx.Context(ctx), p)
		jsonResponse(ctx, res)
	}
}

// decodeEdit parses a JSON edit for the editor. A row id from the client is
// dropped: edits always target the snapshot the editor loads.
func decodeEdit(body []byte) (snapshot.Partial, error) {
	p, err := snapshot.DecodePartial(body)
	if err != nil {
		return snapshot.Partial{}, err
	}
	p.ID = nil
	return p, nil
}

// AdminMetricsSubmit handles the admin form. The form carries every value
// the operator saw, so the submit replaces the snapshot with that view.
func AdminMetricsSubmit(st editor.MetricsStore, log *logger.Logger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p, err := partialFromForm(ctx.PostArgs())
		if err != nil {
			redirectAdmin(ctx, "error", err.Error())
			return
		}
		if p.IsEmpty() {
			redirectAdmin(ctx, "error", "no fields to update")
			return
		}

		ed := editor.New(st, log)
		sctx := httpctx.Context(ctx)
		ed.Load(sctx)
		res := ed.Submit(sctx, p)
		redirectAdmin(ctx, string(res.Status), res.Message)
	}
}

func redirectAdmin(ctx *fasthttp.RequestCtx, status, message string) {
	var q fasthttp.Args
	q.Set("status", status)
	if message != "" {
		q.Set("message", message)
	}
	ctx.Redirect("/admin?"+q.String(), fasthttp.StatusSeeOther)
}

// partialFromForm reads scalar fields by key and map entries named
// "<section>.<key>". Blank inputs are skipped.
func partialFromForm(args *fasthttp.Args) (snapshot.Partial, error) {
	var (
		p      snapshot.Partial
		errOut error
	)
	args.VisitAll(func(k, v []byte) {
		if errOut != nil {
			return
		}
		key := string(k)
		raw := strings.TrimSpace(string(v))
		if raw == "" {
			return
		}

		section, sub, isMap := strings.Cut(key, ".")
		if !isMap {
			if _, known := snapshot.LookupField(key); !known {
				return
			}
		}

		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errOut = errors.New(key + ": not a number")
			return
		}

		if !isMap {
			errOut = p.Set(key, n)
			return
		}
		switch section {
		case "scenario_factors":
			p.ScenarioFactors = setEntry(p.ScenarioFactors, sub, n)
		case "chart_deltas":
			p.ChartDeltas = setEntry(p.ChartDeltas, sub, n)
		case "global_indicators":
			p.GlobalIndicators = setEntry(p.GlobalIndicators, sub, n)
		}
	})
	return p, errOut
}

func setEntry(m map[string]float64, k string, v float64) map[string]float64 {
	if m == nil {
		m = map[string]float64{}
	}
	m[k] = v
	return m
}

// MetricsHistory lists stored snapshots in the requested window, newest
// first.
func MetricsHistory(st *store.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		since := parseRange(ctx, time.Now())
		limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))

		rows, err := st.History(httpctx.Context(ctx), since, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusServiceUnavailable, "metrics store unavailable")
			return
		}
		jsonResponse(ctx, map[string]any{
			"since":     since.UTC().Format(time.RFC3339),
			"snapshots": rows,
		})
	}
}
