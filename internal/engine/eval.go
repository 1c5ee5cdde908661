// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

// DiagnosticContextResolution is recorded when a $parent. value cannot be
// resolved. The predicate evaluates to false.
const DiagnosticContextResolution = "context_resolution"

// Diagnostic aggregates soft failures of one kind at one pipeline stage.
type Diagnostic struct {
	Kind  string `json:"kind"`
	Stage int    `json:"stage"`
	Field string `json:"field"`
	Path  string `json:"path"`
	Count int    `json:"count"`
}

type diagKey struct {
	kind, field, path string
	stage             int
}

type diagnostics struct {
	list  []Diagnostic
	index map[diagKey]int
}

func (d *diagnostics) record(kind string, stage int, field, path string) {
	if d.index == nil {
		d.index = map[diagKey]int{}
	}
	key := diagKey{kind: kind, field: field, path: path, stage: stage}
	if i, ok := d.index[key]; ok {
		d.list[i].Count++
		return
	}
	d.index[key] = len(d.list)
	d.list = append(d.list, Diagnostic{Kind: kind, Stage: stage, Field: field, Path: path, Count: 1})
}

// evaluator tests conditions against one entity and the entity bound by the
// parent frame. It never fails: unresolvable context variables make the
// predicate false and are recorded as diagnostics.
type evaluator struct {
	diag  *diagnostics
	stage int
}

func (ev *evaluator) eval(c query.Condition, e, parent *graph.Entity) bool {
	switch c := c.(type) {
	case *query.Expression:
		return ev.evalExpression(c, e, parent)
	case *query.Predicate:
		return ev.evalPredicate(c, e, parent)
	}
	return false
}

func (ev *evaluator) evalExpression(x *query.Expression, e, parent *graph.Entity) bool {
	args := x.Args()
	switch x.Logic() {
	case query.LogicAnd:
		for _, a := range args {
			if !ev.eval(a, e, parent) {
				return false
			}
		}
		return true
	case query.LogicOr:
		for _, a := range args {
			if ev.eval(a, e, parent) {
				return true
			}
		}
		return false
	case query.LogicNot:
		return !ev.eval(args[0], e, parent)
	}
	return false
}

func (ev *evaluator) evalPredicate(p *query.Predicate, e, parent *graph.Entity) bool {
	switch p.Op() {
	case query.OpFlagExists:
		_, ok := e.Flag(p.Field())
		return ok
	case query.OpFlagNotExists:
		_, ok := e.Flag(p.Field())
		return !ok
	case query.OpExists:
		_, ok := e.LookupPath(p.Field())
		return ok
	}

	want, ok := ev.resolve(p, parent)
	if !ok {
		return false
	}

	if p.Op() == query.OpFlagIs {
		got, ok := e.Flag(p.Field())
		return ok && equalValues(got, want)
	}

	got, ok := e.LookupPath(p.Field())
	if !ok {
		return false
	}

	switch p.Op() {
	case query.OpEq:
		return equalValues(got, want)
	case query.OpNeq:
		return !equalValues(got, want)
	case query.OpGt:
		c, ok := compareValues(got, want)
		return ok && c > 0
	case query.OpLt:
		c, ok := compareValues(got, want)
		return ok && c < 0
	case query.OpIn:
		return isMember(got, want)
	case query.OpContains:
		return contains(got, want)
	case query.OpMatches:
		s, ok := got.(string)
		return ok && p.Regexp().MatchString(s)
	}
	return false
}

// resolve returns the comparison value, reading $parent. paths from the parent
// binding.
func (ev *evaluator) resolve(p *query.Predicate, parent *graph.Entity) (any, bool) {
	path, isVar := p.ContextPath()
	if !isVar {
		return p.Value(), true
	}
	v, ok := resolvePath(parent, path)
	if !ok && ev.diag != nil {
		ev.diag.record(DiagnosticContextResolution, ev.stage, p.Field(), path)
	}
	return v, ok
}

// resolvePath walks at most graph.MaxPathSegments dotted segments of the
// bound entity.
func resolvePath(bound *graph.Entity, path string) (any, bool) {
	if bound == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	if len(segments) > graph.MaxPathSegments {
		return nil, false
	}
	return bound.Lookup(segments...)
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// compareValues orders two numbers or two strings. Other pairs are not
// comparable.
func compareValues(a, b any) (int, bool) {
	af, aOk := toFloat64(a)
	bf, bOk := toFloat64(b)
	if aOk && bOk {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(graph.NormalizeValue(a), graph.NormalizeValue(b))
}

// isMember reports whether got is an element of want (a sequence) or a
// substring of it (a string). A sequence-valued got matches when any element
// does.
func isMember(got, want any) bool {
	if items, ok := got.([]any); ok {
		for _, item := range items {
			if isMember(item, want) {
				return true
			}
		}
		return false
	}
	switch w := want.(type) {
	case []any:
		for _, item := range w {
			if equalValues(got, item) {
				return true
			}
		}
	case string:
		s, ok := got.(string)
		return ok && strings.Contains(w, s)
	}
	return false
}

// contains reports whether got (a sequence or string) holds want.
func contains(got, want any) bool {
	switch g := got.(type) {
	case []any:
		for _, item := range g {
			if equalValues(item, want) {
				return true
			}
		}
	case string:
		s, ok := want.(string)
		return ok && strings.Contains(g, s)
	}
	return false
}
