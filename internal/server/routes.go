// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/engine"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
	s.registerSSERoute()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "execute-query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query",
		Summary:     "Execute a query against the current snapshot of a branch",
		Tags:        []string{"query"},
	}, s.handleExecuteQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "validate-query",
		Method:      http.MethodPost,
		Path:        "/api/v1/query/validate",
		Summary:     "Validate a query and return its canonical form",
		Tags:        []string{"query"},
	}, s.handleValidateQuery)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshot",
		Summary:     "Current snapshot per branch",
		Tags:        []string{"snapshot"},
	}, s.handleListSnapshots)

	huma.Register(s.api, huma.Operation{
		OperationID: "cache-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/cache/stats",
		Summary:     "Result cache statistics",
		Tags:        []string{"system"},
	}, s.handleCacheStats)
}

// --- Request/Response types for huma ---

type executeQueryInput struct {
	Body struct {
		Query     json.RawMessage `json:"query" doc:"Query in wire form: clause array or clause object"`
		Branch    string          `json:"branch,omitempty" default:"main" doc:"Branch whose current snapshot is queried"`
		Explain   bool            `json:"explain,omitempty" doc:"Include per-stage explain output"`
		NoCache   bool            `json:"noCache,omitempty" doc:"Bypass the result cache"`
		Strict    bool            `json:"strict,omitempty" doc:"Reject relation types absent from the snapshot"`
		MaxSteps  int             `json:"maxSteps,omitempty" minimum:"0" doc:"Node expansion budget; 0 uses the server default"`
		TimeoutMs int             `json:"timeoutMs,omitempty" minimum:"0" doc:"Execution deadline in milliseconds; 0 uses the server default"`
	}
}

type executeQueryOutput struct {
	RequestID string `header:"X-Request-Id"`
	Body      struct {
		RequestID string         `json:"requestId" doc:"Identifier for this execution"`
		Result    *engine.Result `json:"result"`
	}
}

type validateQueryInput struct {
	Body struct {
		Query json.RawMessage `json:"query" doc:"Query in wire form"`
	}
}

type validateQueryOutput struct {
	Body struct {
		Canonical   json.RawMessage `json:"canonical" doc:"Canonical clause array"`
		Fingerprint string          `json:"fingerprint" doc:"Hex xxhash of the canonical form"`
		Clauses     int             `json:"clauses"`
	}
}

// SnapshotSummary describes the current snapshot of one branch.
type SnapshotSummary struct {
	Branch        string   `json:"branch"`
	Version       int64    `json:"version"`
	Entities      int      `json:"entities"`
	RelationTypes []string `json:"relationTypes"`
}

type listSnapshotsOutput struct {
	Body struct {
		Snapshots []SnapshotSummary `json:"snapshots"`
	}
}

type cacheStatsOutput struct {
	Body cache.Stats
}

// --- Handlers ---

func (s *Server) handleExecuteQuery(ctx context.Context, input *executeQueryInput) (*executeQueryOutput, error) {
	q, err := query.Decode(input.Body.Query)
	if err != nil {
		return nil, s.humaError(err)
	}

	branch := input.Body.Branch
	if branch == "" {
		branch = "main"
	}
	snap, err := s.services.snapshots.Current(branch)
	if err != nil {
		return nil, s.humaError(err)
	}

	opts := []engine.ExecOption{engine.WithCache(!input.Body.NoCache)}
	if input.Body.Explain {
		opts = append(opts, engine.WithExplain())
	}
	if input.Body.Strict {
		opts = append(opts, engine.WithStrict())
	}
	if input.Body.MaxSteps > 0 || input.Body.TimeoutMs > 0 {
		b := engine.Budget{MaxSteps: input.Body.MaxSteps}
		if input.Body.TimeoutMs > 0 {
			b.Deadline = time.Now().Add(time.Duration(input.Body.TimeoutMs) * time.Millisecond)
		}
		opts = append(opts, engine.WithBudget(b))
	}

	res, err := s.services.engine.Execute(ctx, q, snap, opts...)
	if err != nil {
		return nil, s.humaError(err)
	}

	id := uuid.NewString()
	s.services.logger.Debug("query executed",
		slog.String("request_id", id),
		slog.String("ref", snap.Ref().String()),
		slog.Int("matched", res.Stats.Matched),
		slog.Bool("cached", res.Stats.Cached))

	out := &executeQueryOutput{RequestID: id}
	out.Body.RequestID = id
	out.Body.Result = res
	return out, nil
}

func (s *Server) handleValidateQuery(_ context.Context, input *validateQueryInput) (*validateQueryOutput, error) {
	q, err := query.Decode(input.Body.Query)
	if err != nil {
		return nil, s.humaError(err)
	}
	plan, err := q.Compile()
	if err != nil {
		return nil, s.humaError(err)
	}
	out := &validateQueryOutput{}
	out.Body.Canonical = plan.Canonical
	out.Body.Fingerprint = strconv.FormatUint(plan.Fingerprint, 16)
	out.Body.Clauses = len(plan.Clauses)
	return out, nil
}

func (s *Server) handleListSnapshots(_ context.Context, _ *struct{}) (*listSnapshotsOutput, error) {
	state := s.services.snapshots.State()
	out := &listSnapshotsOutput{}
	out.Body.Snapshots = make([]SnapshotSummary, 0)
	for _, branch := range state.Branches() {
		snap, ok := state.Current(branch)
		if !ok {
			continue
		}
		out.Body.Snapshots = append(out.Body.Snapshots, summarize(snap))
	}
	return out, nil
}

func (s *Server) handleCacheStats(_ context.Context, _ *struct{}) (*cacheStatsOutput, error) {
	if s.services.cache == nil {
		return nil, huma.Error503ServiceUnavailable("result cache disabled")
	}
	return &cacheStatsOutput{Body: s.services.cache.Stats()}, nil
}

func summarize(snap *graph.Snapshot) SnapshotSummary {
	ref := snap.Ref()
	idx := snap.Index()
	return SnapshotSummary{
		Branch:        ref.Branch,
		Version:       ref.Version,
		Entities:      len(idx.EntitiesByType("")),
		RelationTypes: idx.RelationTypes(),
	}
}

// humaError maps a coded error to an HTTP problem response. Internal
// failures are logged and reported without detail.
func (s *Server) humaError(err error) error {
	status := sieveerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		s.services.logger.Error("request failed", slog.String("code", string(sieveerr.CodeOf(err))), slog.Any("error", err))
		return huma.NewError(status, "internal error")
	}
	detail := &huma.ErrorDetail{Message: err.Error(), Location: "body"}
	if code := sieveerr.CodeOf(err); code != "" {
		detail.Value = string(code)
	}
	return huma.NewError(status, err.Error(), detail)
}
