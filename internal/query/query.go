// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package query builds declarative graph queries. A Query is an immutable,
// parent-linked chain of clauses: every builder call returns a new node and
// never touches the receiver, so partially built queries can be shared and
// extended freely.
//
// Argument errors are detected when a clause is added. The first one sticks
// to the returned node and to every node built from it; Err reports it and
// Compile refuses to produce a plan.
package query

import (
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Query is one node of the clause chain.
type Query struct {
	parent *Query
	clause Clause
	err    error
	schema *Schema
	size   int
	last   stage
}

// Option configures a root query.
type Option func(*Query)

// WithSchema enables schema-aware validation of every clause added later.
func WithSchema(s *Schema) Option {
	return func(q *Query) { q.schema = s }
}

// New returns an empty root query.
func New(opts ...Option) *Query {
	q := &Query{last: stageFrom}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Err returns the first build error in the chain.
func (q *Query) Err() error { return q.err }

// Parent returns the previous node, or nil for the root.
func (q *Query) Parent() *Query { return q.parent }

// Clause returns the clause this node added, or nil for the root.
func (q *Query) Clause() Clause { return q.clause }

// Len is the number of clauses in the chain.
func (q *Query) Len() int { return q.size }

// Clauses returns the chain in declared order.
func (q *Query) Clauses() []Clause {
	out := make([]Clause, 0, q.size)
	for n := q; n != nil && n.clause != nil; n = n.parent {
		out = append(out, n.clause)
	}
	slices.Reverse(out)
	return out
}

func (q *Query) From(entityType string) *Query {
	return q.with(FromClause{Type: entityType})
}

func (q *Query) Where(cond Condition) *Query {
	return q.with(WhereClause{Cond: cond})
}

func (q *Query) Traverse(relationType string, dir graph.Direction) *Query {
	return q.with(TraverseClause{RelationType: relationType, Direction: dir})
}

func (q *Query) Expand(c ExpandClause) *Query {
	return q.with(c)
}

func (q *Query) Path(c PathClause) *Query {
	return q.with(c)
}

func (q *Query) Select(fields ...string) *Query {
	return q.with(SelectClause{Fields: fields})
}

func (q *Query) Limit(n int) *Query {
	return q.with(LimitClause{N: n})
}

func (q *Query) OrderBy(field string, dir SortDir) *Query {
	return q.with(OrderByClause{Field: field, Dir: dir})
}

func (q *Query) Distinct() *Query {
	return q.with(DistinctClause{})
}

func (q *Query) GroupBy(field string) *Query {
	return q.with(GroupByClause{Field: field})
}

func (q *Query) Aggregate(fn AggFunc, field string) *Query {
	return q.with(AggregateClause{Fn: fn, Field: field})
}

// with validates c against the chain so far and links a new node.
func (q *Query) with(c Clause) *Query {
	next := &Query{parent: q, schema: q.schema, size: q.size + 1, last: q.last, err: q.err}
	if q.err != nil {
		next.clause = c
		return next
	}

	normalized, err := normalize(c)
	if err == nil {
		err = q.checkOrder(normalized.Kind())
	}
	if err == nil && q.schema != nil {
		err = q.schema.check(normalized)
	}
	if err != nil {
		next.clause = c
		next.err = sieveerr.With(err, sieveerr.FieldClause(string(c.Kind())), sieveerr.Field("position", q.size))
		return next
	}

	next.clause = normalized
	next.last = normalized.Kind().stage()
	return next
}

func (q *Query) checkOrder(k Kind) error {
	s := k.stage()
	switch {
	case s == stageFrom:
		if q.size != 0 {
			return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "from must be the first clause")
		}
	case s == stageNavigate:
		if q.last > stageNavigate {
			return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "navigation clause after a result-shaping clause")
		}
	case s == q.last && k == KindDistinct:
		// distinct is idempotent and may repeat
	case s <= q.last:
		return sieveerr.New(sieveerr.CodeQueryClauseInvalid,
			"clause is out of pipeline order (select, distinct, groupBy, orderBy, limit, aggregate) or repeated")
	}
	return nil
}

// normalize validates a clause and returns it in canonical form.
func normalize(c Clause) (Clause, error) {
	invalid := func(msg string, fields ...sieveerr.Attr) error {
		return sieveerr.New(sieveerr.CodeQueryClauseInvalid, msg, fields...)
	}

	switch c := c.(type) {
	case FromClause:
		return c, nil

	case WhereClause:
		if c.Cond == nil {
			return nil, invalid("where requires a condition")
		}
		return c, c.Cond.Err()

	case TraverseClause:
		if c.RelationType == "" {
			return nil, invalid("traverse requires a relation type")
		}
		dir, err := graph.ParseDirection(string(c.Direction))
		if err != nil {
			return nil, err
		}
		c.Direction = dir
		return c, nil

	case ExpandClause:
		if c.Depth < 0 || c.Depth > MaxDepth {
			return nil, invalid("expand depth out of range", sieveerr.Field("depth", c.Depth), sieveerr.Field("max", MaxDepth))
		}
		dir, err := graph.ParseDirection(string(c.Direction))
		if err != nil {
			return nil, err
		}
		c.Direction = dir
		c.RelationTypes, err = relationTypes(c.RelationTypes)
		return c, err

	case PathClause:
		if c.To == nil {
			return nil, invalid("path requires a target condition")
		}
		if err := c.To.Err(); err != nil {
			return nil, err
		}
		if c.MaxDepth < 1 || c.MaxDepth > MaxDepth {
			return nil, invalid("path maxDepth out of range", sieveerr.Field("maxDepth", c.MaxDepth), sieveerr.Field("max", MaxDepth))
		}
		dir, err := graph.ParseDirection(string(c.Direction))
		if err != nil {
			return nil, err
		}
		c.Direction = dir
		c.RelationTypes, err = relationTypes(c.RelationTypes)
		return c, err

	case SelectClause:
		if len(c.Fields) == 0 {
			return nil, invalid("select requires at least one field")
		}
		for _, f := range c.Fields {
			if f == "" {
				return nil, invalid("select field must not be empty")
			}
		}
		c.Fields = slices.Clone(c.Fields)
		return c, nil

	case LimitClause:
		if c.N < 0 {
			return nil, invalid("limit must not be negative", sieveerr.Field("limit", c.N))
		}
		return c, nil

	case OrderByClause:
		if c.Field == "" {
			return nil, invalid("orderBy requires a field")
		}
		switch c.Dir {
		case "":
			c.Dir = Asc
		case Asc, Desc:
		default:
			return nil, invalid("orderBy direction must be asc or desc", sieveerr.Field("dir", string(c.Dir)))
		}
		return c, nil

	case DistinctClause:
		return c, nil

	case GroupByClause:
		if c.Field == "" {
			return nil, invalid("groupBy requires a field")
		}
		return c, nil

	case AggregateClause:
		switch c.Fn {
		case AggCount:
		case AggSum, AggAvg, AggMin, AggMax:
			if c.Field == "" {
				return nil, invalid("aggregate function requires a field", sieveerr.Field("fn", string(c.Fn)))
			}
		default:
			return nil, invalid("unknown aggregate function", sieveerr.Field("fn", string(c.Fn)))
		}
		return c, nil
	}
	return nil, invalid("unknown clause")
}

func relationTypes(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	for _, t := range in {
		if t == "" {
			return nil, sieveerr.New(sieveerr.CodeQueryClauseInvalid, "relation type must not be empty")
		}
	}
	return slices.Clone(in), nil
}

// Plan is a compiled query: the clause pipeline plus its canonical encoding.
type Plan struct {
	Clauses     []Clause
	Canonical   []byte
	Fingerprint uint64
}

// Compile returns the execution plan or the first build error.
func (q *Query) Compile() (*Plan, error) {
	if q.err != nil {
		return nil, q.err
	}
	canonical, err := q.Encode()
	if err != nil {
		return nil, err
	}
	return &Plan{
		Clauses:     q.Clauses(),
		Canonical:   canonical,
		Fingerprint: xxhash.Sum64(canonical),
	}, nil
}
