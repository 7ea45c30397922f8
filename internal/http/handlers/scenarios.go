package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"execdash/internal/dashboard"
	httpctx "execdash/internal/http/ctx"
	"execdash/internal/scenario"
	"execdash/internal/snapshot"
)

// latestOrDefault is the base every projection is computed against.
func latestOrDefault(ctx context.Context, st dashboard.Loader) snapshot.Snapshot {
	s, err := st.GetLatest(ctx)
	if err != nil {
		return snapshot.Default()
	}
	return s
}

func ListScenarios(sc *scenario.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := sc.List(httpctx.Context(ctx))
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load scenarios")
			return
		}
		jsonResponse(ctx, map[string]any{"scenarios": rows})
	}
}

func CreateScenario(sc *scenario.Store, st dashboard.Loader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var in scenario.Input
		if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		sctx := httpctx.Context(ctx)
		row, err := sc.Create(sctx, in, latestOrDefault(sctx, st))
		if err != nil {
			scenarioError(ctx, err)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusCreated)
		jsonResponse(ctx, row)
	}
}

func UpdateScenario(sc *scenario.Store, st dashboard.Loader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := pathID(ctx)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid scenario ID")
			return
		}
		var in scenario.Input
		if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		sctx := httpctx.Context(ctx)
		row, err := sc.Update(sctx, id, in, latestOrDefault(sctx, st))
		if err != nil {
			scenarioError(ctx, err)
			return
		}
		jsonResponse(ctx, row)
	}
}

func DeleteScenario(sc *scenario.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := pathID(ctx)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid scenario ID")
			return
		}
		if err := sc.Delete(httpctx.Context(ctx), id); err != nil {
			scenarioError(ctx, err)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	}
}

// ScenarioProjection runs a saved scenario against the current snapshot.
func ScenarioProjection(sc *scenario.Store, st dashboard.Loader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id, ok := pathID(ctx)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid scenario ID")
			return
		}
		sctx := httpctx.Context(ctx)
		row, err := sc.Get(sctx, id)
		if err != nil {
			scenarioError(ctx, err)
			return
		}
		factors := scenario.StoredFactors(row)
		jsonResponse(ctx, map[string]any{
			"scenario":   row,
			"factors":    factors,
			"projection": scenario.Project(latestOrDefault(sctx, st), factors),
		})
	}
}

func scenarioError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, scenario.ErrNotFound):
		errResponse(ctx, fasthttp.StatusNotFound, "scenario not found")
	case errors.Is(err, scenario.ErrInvalid):
		errResponse(ctx, fasthttp.StatusBadRequest, err.Error())
	default:
		errResponse(ctx, fasthttp.StatusInternalServerError, "scenario store error")
	}
}
