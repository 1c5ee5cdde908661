// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package graph holds the entity-relation data model and the read-only
// adjacency index the query engine executes against.
package graph

import (
	"fmt"
	"strings"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// MaxPathSegments bounds the number of dotted segments Lookup resolves.
const MaxPathSegments = 8

// Direction selects which side of a relation is followed.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// ParseDirection validates a direction string. The empty string means out.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", DirectionOut:
		return DirectionOut, nil
	case DirectionIn:
		return DirectionIn, nil
	case DirectionBoth:
		return DirectionBoth, nil
	default:
		return "", sieveerr.Errorf(sieveerr.CodeQueryClauseInvalid,
			"direction %q must be one of out, in, both", s)
	}
}

// Metadata is optional bookkeeping attached to an entity. Flags are tested by
// the flag-is, flag-exists and flag-notExists predicates.
type Metadata struct {
	Flags  map[string]any `json:"flags,omitempty" yaml:"flags,omitempty"`
	Source string         `json:"source,omitempty" yaml:"source,omitempty"`
}

// Entity is a typed node. Entities are never mutated once added to an index.
type Entity struct {
	ID         string         `json:"id" yaml:"id"`
	Type       string         `json:"type" yaml:"type"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Metadata   *Metadata      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Lookup resolves a dotted path against the entity. The first segment may be
// id, type or an attribute key; later segments index into nested maps.
func (e *Entity) Lookup(segments ...string) (any, bool) {
	if e == nil || len(segments) == 0 || len(segments) > MaxPathSegments {
		return nil, false
	}
	switch segments[0] {
	case "id":
		if len(segments) == 1 {
			return e.ID, true
		}
		return nil, false
	case "type":
		if len(segments) == 1 {
			return e.Type, true
		}
		return nil, false
	}

	var cur any = e.Attributes
	for _, seg := range segments {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// LookupPath is Lookup over a dotted string.
func (e *Entity) LookupPath(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	return e.Lookup(strings.Split(path, ".")...)
}

// Flag returns the metadata flag value and whether it is present.
func (e *Entity) Flag(name string) (any, bool) {
	if e == nil || e.Metadata == nil || e.Metadata.Flags == nil {
		return nil, false
	}
	v, ok := e.Metadata.Flags[name]
	return v, ok
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// Relation is a typed directed edge.
type Relation struct {
	ID         string         `json:"id" yaml:"id"`
	From       string         `json:"from" yaml:"from"`
	To         string         `json:"to" yaml:"to"`
	Type       string         `json:"type" yaml:"type"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Neighbor returns the endpoint of r opposite to id.
func (r *Relation) Neighbor(id string) string {
	if r.From == id {
		return r.To
	}
	return r.From
}

// Ref identifies the graph version a snapshot was taken at.
type Ref struct {
	Version int64  `json:"version"`
	Branch  string `json:"branch"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%d", r.Branch, r.Version)
}

// Index is the read-only view the engine consumes. Every method returns
// results in relation/entity insertion order, which makes execution
// deterministic. An empty relationType matches every type.
type Index interface {
	EntitiesByType(entityType string) []string
	Adjacent(entityID, relationType string, dir Direction) []string
	Entity(id string) (*Entity, bool)
	Relations(entityID, relationType string, dir Direction) []*Relation
	Relation(id string) (*Relation, bool)
	RelationTypes() []string
}

// Snapshot pins an Index to the (version, branch) it represents.
type Snapshot struct {
	index Index
	ref   Ref
}

// NewSnapshot wraps idx. Indexes that can be frozen are frozen first so the
// snapshot stays immutable.
func NewSnapshot(idx Index, ref Ref) *Snapshot {
	if f, ok := idx.(interface{ Freeze() }); ok {
		f.Freeze()
	}
	return &Snapshot{index: idx, ref: ref}
}

func (s *Snapshot) Index() Index { return s.index }

func (s *Snapshot) Ref() Ref { return s.ref }
