// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package query

import (
	"github.com/sigil-dev/sieve/internal/graph"
)

// MaxDepth bounds expand depth and path length.
const MaxDepth = 100

// Kind names a clause in the wire format.
type Kind string

const (
	KindFrom      Kind = "from"
	KindWhere     Kind = "where"
	KindTraverse  Kind = "traverse"
	KindExpand    Kind = "expand"
	KindPath      Kind = "path"
	KindSelect    Kind = "select"
	KindLimit     Kind = "limit"
	KindOrderBy   Kind = "orderBy"
	KindDistinct  Kind = "distinct"
	KindGroupBy   Kind = "groupBy"
	KindAggregate Kind = "aggregate"
)

// stage is the clause's slot in the fixed pipeline. Navigation clauses share
// one stage and keep their declared order.
type stage int

const (
	stageFrom stage = iota
	stageNavigate
	stageSelect
	stageDistinct
	stageGroupBy
	stageOrderBy
	stageLimit
	stageAggregate
)

func (k Kind) stage() stage {
	switch k {
	case KindFrom:
		return stageFrom
	case KindSelect:
		return stageSelect
	case KindDistinct:
		return stageDistinct
	case KindGroupBy:
		return stageGroupBy
	case KindOrderBy:
		return stageOrderBy
	case KindLimit:
		return stageLimit
	case KindAggregate:
		return stageAggregate
	default:
		return stageNavigate
	}
}

// SortDir orders OrderBy output.
type SortDir string

const (
	Asc  SortDir = "asc"
	Desc SortDir = "desc"
)

// AggFunc is an aggregate function.
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggSum   AggFunc = "sum"
	AggAvg   AggFunc = "avg"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// Clause is one step of a query. Implementations are values; slices they hold
// are owned by the query and must not be modified.
type Clause interface {
	Kind() Kind
	wire() any
}

type FromClause struct {
	Type string
}

func (FromClause) Kind() Kind { return KindFrom }
func (c FromClause) wire() any { return c.Type }

type WhereClause struct {
	Cond Condition
}

func (WhereClause) Kind() Kind { return KindWhere }
func (c WhereClause) wire() any { return c.Cond }

type TraverseClause struct {
	RelationType string          `json:"relationType"`
	Direction    graph.Direction `json:"direction"`
}

func (TraverseClause) Kind() Kind { return KindTraverse }
func (c TraverseClause) wire() any { return c }

type ExpandClause struct {
	Depth         int             `json:"depth"`
	Direction     graph.Direction `json:"direction"`
	RelationTypes []string        `json:"relationTypes,omitempty"`
	IncludeStart  bool            `json:"includeStart"`
}

func (ExpandClause) Kind() Kind { return KindExpand }
func (c ExpandClause) wire() any { return c }

type PathClause struct {
	To            Condition       `json:"to"`
	MaxDepth      int             `json:"maxDepth"`
	RelationTypes []string        `json:"relationTypes,omitempty"`
	Direction     graph.Direction `json:"direction"`
}

func (PathClause) Kind() Kind { return KindPath }
func (c PathClause) wire() any { return c }

type SelectClause struct {
	Fields []string
}

func (SelectClause) Kind() Kind { return KindSelect }
func (c SelectClause) wire() any { return c.Fields }

type LimitClause struct {
	N int
}

func (LimitClause) Kind() Kind { return KindLimit }
func (c LimitClause) wire() any { return c.N }

type OrderByClause struct {
	Field string  `json:"field"`
	Dir   SortDir `json:"dir"`
}

func (OrderByClause) Kind() Kind { return KindOrderBy }
func (c OrderByClause) wire() any { return c }

type DistinctClause struct{}

func (DistinctClause) Kind() Kind { return KindDistinct }
func (DistinctClause) wire() any { return true }

type GroupByClause struct {
	Field string
}

func (GroupByClause) Kind() Kind { return KindGroupBy }
func (c GroupByClause) wire() any { return c.Field }

type AggregateClause struct {
	Fn    AggFunc `json:"fn"`
	Field string  `json:"field,omitempty"`
}

func (AggregateClause) Kind() Kind { return KindAggregate }
func (c AggregateClause) wire() any { return c }
