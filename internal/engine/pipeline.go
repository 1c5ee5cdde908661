// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

// row is one result node. Projection rewrites dto; ordering, grouping and
// aggregation always read the full entity.
type row struct {
	entity *graph.Entity
	dto    EntityDTO
}

type group struct {
	key  any
	rows []row
}

// shaper applies the result-shaping clauses in their fixed order.
type shaper struct {
	rows      []row
	groups    []*group
	grouped   bool
	projected bool
	agg       *Aggregate
	groupAggs []*Aggregate
}

func newShaper(idx graph.Index, ids []string) *shaper {
	s := &shaper{rows: make([]row, 0, len(ids))}
	for _, id := range ids {
		if e, ok := idx.Entity(id); ok {
			s.rows = append(s.rows, row{entity: e, dto: entityDTO(e)})
		}
	}
	return s
}

func (s *shaper) size() int {
	if s.grouped {
		return len(s.groups)
	}
	return len(s.rows)
}

// output returns the node DTOs, group by group when grouped, and the group
// summaries.
func (s *shaper) output() ([]EntityDTO, []Group) {
	if !s.grouped {
		nodes := make([]EntityDTO, len(s.rows))
		for i, r := range s.rows {
			nodes[i] = r.dto
		}
		return nodes, nil
	}
	nodes := []EntityDTO{}
	groups := make([]Group, len(s.groups))
	for i, g := range s.groups {
		members := make([]string, len(g.rows))
		for j, r := range g.rows {
			members[j] = r.entity.ID
			nodes = append(nodes, r.dto)
		}
		groups[i] = Group{Key: g.key, Members: members}
		if i < len(s.groupAggs) {
			groups[i].Aggregate = s.groupAggs[i]
		}
	}
	return nodes, groups
}

func (s *shaper) apply(c query.Clause) {
	switch c := c.(type) {
	case query.SelectClause:
		s.project(c.Fields)
	case query.DistinctClause:
		s.distinct()
	case query.GroupByClause:
		s.groupBy(c.Field)
	case query.OrderByClause:
		s.orderBy(c.Field, c.Dir)
	case query.LimitClause:
		s.limit(c.N)
	case query.AggregateClause:
		s.aggregate(c)
	}
}

// project keeps id, type and the selected fields present on each entity.
// Nested paths are reported under their dotted name.
func (s *shaper) project(fields []string) {
	s.projected = true
	for i := range s.rows {
		e := s.rows[i].entity
		dto := EntityDTO{ID: e.ID, Type: e.Type}
		for _, f := range fields {
			if f == "id" || f == "type" {
				continue
			}
			if v, ok := e.LookupPath(f); ok {
				if dto.Attributes == nil {
					dto.Attributes = map[string]any{}
				}
				dto.Attributes[f] = v
			}
		}
		s.rows[i].dto = dto
	}
}

// distinct drops rows whose output equals an earlier row's. After a select
// the comparison covers type and the projected attributes only; before one it
// covers the whole node, id and metadata included.
func (s *shaper) distinct() {
	seen := map[string]struct{}{}
	out := s.rows[:0:0]
	for _, r := range s.rows {
		k := contentKey("", r.dto)
		if s.projected {
			k = contentKey(r.dto.Type, r.dto.Attributes)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	s.rows = out
}

func (s *shaper) groupBy(field string) {
	s.grouped = true
	index := map[string]*group{}
	for _, r := range s.rows {
		v, ok := r.entity.LookupPath(field)
		k := "\x00missing"
		if ok {
			k = contentKey("", v)
		}
		g, exists := index[k]
		if !exists {
			g = &group{key: v}
			index[k] = g
			s.groups = append(s.groups, g)
		}
		g.rows = append(g.rows, r)
	}
}

func (s *shaper) orderBy(field string, dir query.SortDir) {
	cmp := func(a, b row) int {
		av, aok := a.entity.LookupPath(field)
		bv, bok := b.entity.LookupPath(field)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := orderValues(av, bv)
		if dir == query.Desc {
			return -c
		}
		return c
	}

	if !s.grouped {
		slices.SortStableFunc(s.rows, cmp)
		return
	}
	for _, g := range s.groups {
		slices.SortStableFunc(g.rows, cmp)
	}
	slices.SortStableFunc(s.groups, func(a, b *group) int {
		switch {
		case len(a.rows) == 0 && len(b.rows) == 0:
			return 0
		case len(a.rows) == 0:
			return 1
		case len(b.rows) == 0:
			return -1
		}
		return cmp(a.rows[0], b.rows[0])
	})
}

func (s *shaper) limit(n int) {
	if s.grouped {
		if n < len(s.groups) {
			s.groups = s.groups[:n]
		}
		return
	}
	if n < len(s.rows) {
		s.rows = s.rows[:n]
	}
}

func (s *shaper) aggregate(c query.AggregateClause) {
	if !s.grouped {
		s.agg = computeAggregate(c, s.rows)
		return
	}
	aggs := make([]*Aggregate, len(s.groups))
	for i, g := range s.groups {
		aggs[i] = computeAggregate(c, g.rows)
	}
	s.groupAggs = aggs
}

func computeAggregate(c query.AggregateClause, rows []row) *Aggregate {
	out := &Aggregate{Fn: c.Fn, Field: c.Field}
	var (
		count int
		sum   float64
		nums  int
		best  any
	)
	for _, r := range rows {
		if c.Field == "" {
			count++
			continue
		}
		v, ok := r.entity.LookupPath(c.Field)
		if !ok {
			continue
		}
		count++
		if f, isNum := toFloat64(v); isNum {
			sum += f
			nums++
		}
		switch {
		case best == nil:
			best = v
		case c.Fn == query.AggMin && orderValues(v, best) < 0:
			best = v
		case c.Fn == query.AggMax && orderValues(v, best) > 0:
			best = v
		}
	}

	switch c.Fn {
	case query.AggCount:
		out.Value = float64(count)
	case query.AggSum:
		out.Value = sum
	case query.AggAvg:
		if nums > 0 {
			out.Value = sum / float64(nums)
		}
	case query.AggMin, query.AggMax:
		out.Value = best
	}
	return out
}

// orderValues is a total order over attribute values: numbers, then strings,
// then booleans (false first), then null, then anything else by its JSON
// encoding.
func orderValues(a, b any) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case nil:
		return 0
	}
	return strings.Compare(contentKey("", a), contentKey("", b))
}

func valueRank(v any) int {
	if _, ok := toFloat64(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	case nil:
		return 3
	}
	return 4
}

// contentKey is a canonical encoding used for equality; encoding/json sorts
// map keys.
func contentKey(prefix string, v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return prefix + "\x00" + "unencodable"
	}
	return prefix + "\x00" + string(b)
}
