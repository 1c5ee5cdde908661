// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package engine executes compiled queries against graph snapshots.
//
// Execution is synchronous and runs entirely in the caller's goroutine. The
// pipeline is the declared clause order and is never rewritten, so the same
// query against the same snapshot always produces the same result content.
package engine

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/sigil-dev/sieve/internal/cache"
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

var tracer = otel.Tracer("sieve.engine")

// ResultCache stores encoded result content by key.
type ResultCache interface {
	Get(ctx context.Context, key cache.Key) ([]byte, bool)
	Put(ctx context.Context, key cache.Key, content []byte)
}

// Engine runs queries. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	cache    ResultCache
	logger   *slog.Logger
	now      func() time.Time
	strict   bool
	maxSteps int
	timeout  time.Duration
	flight   singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

func WithResultCache(c ResultCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now for timing and deadlines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStrictMode makes strict relation type checking the default.
func WithStrictMode(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithDefaultBudget applies a step limit and a per-execution timeout to calls
// that do not pass their own budget.
func WithDefaultBudget(maxSteps int, timeout time.Duration) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
		e.timeout = timeout
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type execConfig struct {
	cache     bool
	explain   bool
	strict    bool
	budget    Budget
	hasBudget bool
}

// ExecOption configures one Execute call.
type ExecOption func(*execConfig)

// WithCache enables or disables the result cache for this call. The default
// is enabled.
func WithCache(enabled bool) ExecOption {
	return func(c *execConfig) { c.cache = enabled }
}

// WithExplain adds per-stage explain output to the result.
func WithExplain() ExecOption {
	return func(c *execConfig) { c.explain = true }
}

func WithBudget(b Budget) ExecOption {
	return func(c *execConfig) {
		c.budget = b
		c.hasBudget = true
	}
}

// WithStrict fails the execution when a navigation clause names a relation
// type the snapshot does not contain.
func WithStrict() ExecOption {
	return func(c *execConfig) { c.strict = true }
}

// Execute runs q against snap. Every call returns either a result or a coded
// error; soft failures are reported in the result stats.
func (e *Engine) Execute(ctx context.Context, q *query.Query, snap *graph.Snapshot, opts ...ExecOption) (*Result, error) {
	start := e.now()
	cfg := execConfig{cache: true, strict: e.strict}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.hasBudget {
		cfg.budget = Budget{MaxSteps: e.maxSteps}
		if e.timeout > 0 {
			cfg.budget.Deadline = start.Add(e.timeout)
		}
	}

	ctx, span := tracer.Start(ctx, "engine.Execute")
	defer span.End()

	res, outcome, err := e.execute(ctx, q, snap, cfg)
	executionsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("query execution failed", slog.String("code", string(sieveerr.CodeOf(err))), slog.Any("error", err))
		return nil, err
	}

	res.Stats.ExecutionTimeMs = float64(e.now().Sub(start).Microseconds()) / 1000
	span.SetAttributes(
		attribute.Int("sieve.matched", res.Stats.Matched),
		attribute.Bool("sieve.partial", res.Stats.Partial),
		attribute.Bool("sieve.cached", res.Stats.Cached),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

func (e *Engine) execute(ctx context.Context, q *query.Query, snap *graph.Snapshot, cfg execConfig) (*Result, string, error) {
	if snap == nil || snap.Index() == nil {
		return nil, outcomeError, sieveerr.New(sieveerr.CodeExecSnapshotInvalid, "snapshot is required")
	}
	if q == nil {
		return nil, outcomeError, sieveerr.New(sieveerr.CodeQueryClauseInvalid, "query is required")
	}
	plan, err := q.Compile()
	if err != nil {
		return nil, outcomeError, err
	}
	if cfg.strict {
		if err := checkRelationTypes(plan, snap.Index()); err != nil {
			return nil, outcomeError, err
		}
	}

	ref := snap.Ref()
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("sieve.branch", ref.Branch),
		attribute.Int64("sieve.version", ref.Version),
		attribute.String("sieve.fingerprint", strconv.FormatUint(plan.Fingerprint, 16)),
	)

	if !cfg.cache || e.cache == nil {
		res := e.run(ctx, plan, snap, cfg)
		return res, runOutcome(res), nil
	}

	key := cache.NewKey(plan.Canonical, cfg.explain, ref)
	if res, ok := e.lookup(ctx, key); ok {
		return res, outcomeCached, nil
	}

	// Bounded calls are not coalesced: a partial result must not be handed
	// to a caller with a different budget.
	if cfg.budget != (Budget{}) {
		res := e.run(ctx, plan, snap, cfg)
		e.store(ctx, key, res)
		return res, runOutcome(res), nil
	}

	var own *Result
	v, err, shared := e.flight.Do(key.String(), func() (any, error) {
		own = e.run(ctx, plan, snap, cfg)
		e.store(ctx, key, own)
		return own.Content()
	})
	if err != nil {
		return nil, outcomeError, err
	}
	if !shared || own != nil {
		return own, runOutcome(own), nil
	}
	res, err := DecodeResult(v.([]byte))
	if err != nil {
		return nil, outcomeError, err
	}
	// The shared run observed the leader's context. A partial result here
	// means the leader was canceled; a caller whose own context is live
	// runs the query itself.
	if res.Stats.Partial && ctx.Err() == nil {
		res = e.run(ctx, plan, snap, cfg)
		e.store(ctx, key, res)
	}
	return res, runOutcome(res), nil
}

func runOutcome(res *Result) string {
	if res.Stats.Partial {
		return outcomePartial
	}
	return outcomeOK
}

func (e *Engine) lookup(ctx context.Context, key cache.Key) (*Result, bool) {
	content, ok := e.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	res, err := DecodeResult(content)
	if err != nil {
		e.logger.Warn("discarding undecodable cache entry", slog.String("key", key.String()), slog.Any("error", err))
		return nil, false
	}
	res.Stats.Cached = true
	return res, true
}

// store caches complete results only.
func (e *Engine) store(ctx context.Context, key cache.Key, res *Result) {
	if res.Stats.Partial {
		return
	}
	content, err := res.Content()
	if err != nil {
		e.logger.Warn("result not cached", slog.Any("error", err))
		return
	}
	e.cache.Put(ctx, key, content)
}

func checkRelationTypes(plan *query.Plan, idx graph.Index) error {
	known := map[string]struct{}{}
	for _, t := range idx.RelationTypes() {
		known[t] = struct{}{}
	}
	check := func(pos int, types ...string) error {
		for _, t := range types {
			if _, ok := known[t]; !ok {
				return sieveerr.New(sieveerr.CodeExecRelationTypeUnknown, "relation type not present in snapshot",
					sieveerr.FieldRelationType(t), sieveerr.Field("position", pos))
			}
		}
		return nil
	}
	for i, c := range plan.Clauses {
		var err error
		switch c := c.(type) {
		case query.TraverseClause:
			err = check(i, c.RelationType)
		case query.ExpandClause:
			err = check(i, c.RelationTypes...)
		case query.PathClause:
			err = check(i, c.RelationTypes...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// run executes the plan. It cannot fail: budget exhaustion stops navigation
// early and marks the result partial, leaving a subset of the full result.
func (e *Engine) run(ctx context.Context, plan *query.Plan, snap *graph.Snapshot, cfg execConfig) *Result {
	idx := snap.Index()
	t := newTracker(ctx, cfg.budget, e.now)
	diag := &diagnostics{}

	var (
		cur     *frame
		shape   *shaper
		explain []ExplainStage
	)
	current := func() *frame {
		if cur == nil {
			cur = seed(idx, "")
		}
		return cur
	}

	for i, c := range plan.Clauses {
		_, span := tracer.Start(ctx, "engine.stage", trace.WithAttributes(
			attribute.Int("sieve.position", i),
			attribute.String("sieve.clause", string(c.Kind())),
		))
		steps := t.steps
		in := 0
		if shape != nil {
			in = shape.size()
		} else if cur != nil {
			in = len(cur.ids)
		}

		switch c := c.(type) {
		case query.FromClause:
			cur = seed(idx, c.Type)
		case query.WhereClause:
			cur = where(idx, current(), c.Cond, &evaluator{diag: diag, stage: i})
		case query.TraverseClause:
			if t.exhausted() {
				cur = newFrame(current(), "traverse:"+c.RelationType)
			} else {
				cur = traverse(idx, current(), c.RelationType, c.Direction, t)
			}
		case query.ExpandClause:
			cur = expand(idx, current(), c, t)
		case query.PathClause:
			cur = findPaths(idx, current(), c, &evaluator{diag: diag, stage: i}, t)
		default:
			if shape == nil {
				shape = newShaper(idx, current().ids)
				in = shape.size()
			}
			shape.apply(c)
		}

		out := 0
		binding := ""
		if shape != nil {
			out = shape.size()
		} else {
			out = len(cur.ids)
			binding = cur.binding
		}
		span.SetAttributes(attribute.Int("sieve.in", in), attribute.Int("sieve.out", out))
		span.End()

		if cfg.explain {
			explain = append(explain, ExplainStage{
				Position: i,
				Clause:   c.Kind(),
				Binding:  binding,
				In:       in,
				Out:      out,
				Steps:    t.steps - steps,
			})
		}
	}

	final := current()
	if shape == nil {
		shape = newShaper(idx, final.ids)
	}
	nodes, groups := shape.output()

	res := &Result{
		Ref:       snap.Ref(),
		Nodes:     nodes,
		Relations: []RelationDTO{},
		Groups:    groups,
		Aggregate: shape.agg,
		Explain:   explain,
	}
	if slices.ContainsFunc(plan.Clauses, func(c query.Clause) bool { return c.Kind() == query.KindPath }) {
		res.Paths = []PathDTO{}
	}
	assemble(res, final)

	res.Stats.Matched = len(nodes)
	res.Stats.Partial = t.reason != ""
	res.Stats.StopReason = t.reason
	res.Stats.Diagnostics = diag.list
	for _, d := range diag.list {
		contextResolutionFailures.Add(float64(d.Count))
	}
	executionSteps.Observe(float64(t.steps))
	executionDuration.Observe(e.now().Sub(t.started).Seconds())
	return res
}

// assemble fills paths and relations. Paths come from every path clause in
// the frame chain; those of the final frame are kept only when their target
// survived result shaping. Relations are the inbound edges of surviving
// nodes followed by path edges, each listed once.
func assemble(res *Result, final *frame) {
	surviving := make(map[string]struct{}, len(res.Nodes))
	for _, n := range res.Nodes {
		surviving[n.ID] = struct{}{}
	}

	var paths []*foundPath
	for _, f := range final.chain() {
		for _, p := range f.paths {
			if f == final {
				if _, ok := surviving[p.target]; !ok {
					continue
				}
			}
			paths = append(paths, p)
			res.Paths = append(res.Paths, pathDTO(p))
		}
	}

	seen := map[string]struct{}{}
	addRel := func(r *graph.Relation) {
		if _, dup := seen[r.ID]; dup {
			return
		}
		seen[r.ID] = struct{}{}
		res.Relations = append(res.Relations, relationDTO(r))
	}
	for _, id := range final.ids {
		if _, ok := surviving[id]; !ok {
			continue
		}
		for _, be := range final.edges[id] {
			addRel(be.rel)
		}
	}
	for _, p := range paths {
		for _, r := range p.relations {
			addRel(r)
		}
	}
}
