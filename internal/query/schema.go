// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package query

import (
	"slices"
	"strings"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// FieldKind is the declared value kind of an attribute.
type FieldKind string

const (
	FieldString FieldKind = "string"
	FieldNumber FieldKind = "number"
	FieldBool   FieldKind = "bool"
	FieldList   FieldKind = "list"
	FieldMap    FieldKind = "map"
	FieldAny    FieldKind = "any"
)

// Schema describes the entity and relation types a query may reference.
type Schema struct {
	EntityTypes   map[string]map[string]FieldKind `json:"entityTypes" yaml:"entityTypes"`
	RelationTypes []string                        `json:"relationTypes" yaml:"relationTypes"`
}

// InferSchema derives a schema from every entity and relation in idx. Fields
// seen with different kinds are declared as FieldAny.
func InferSchema(idx graph.Index) *Schema {
	s := &Schema{EntityTypes: map[string]map[string]FieldKind{}, RelationTypes: idx.RelationTypes()}
	for _, id := range idx.EntitiesByType("") {
		e, ok := idx.Entity(id)
		if !ok {
			continue
		}
		fields := s.EntityTypes[e.Type]
		if fields == nil {
			fields = map[string]FieldKind{}
			s.EntityTypes[e.Type] = fields
		}
		for name, v := range e.Attributes {
			k := kindOf(v)
			if prev, seen := fields[name]; seen && prev != k {
				k = FieldAny
			}
			fields[name] = k
		}
	}
	return s
}

func kindOf(v any) FieldKind {
	switch v.(type) {
	case string:
		return FieldString
	case float64:
		return FieldNumber
	case bool:
		return FieldBool
	case []any:
		return FieldList
	case map[string]any:
		return FieldMap
	}
	return FieldAny
}

// fieldKind resolves the kind of the first segment of a field path across all
// entity types.
func (s *Schema) fieldKind(path string) (FieldKind, bool) {
	head, rest, nested := strings.Cut(path, ".")
	if head == "id" || head == "type" {
		return FieldString, !nested
	}
	var (
		kind  FieldKind
		found bool
	)
	for _, fields := range s.EntityTypes {
		k, ok := fields[head]
		if !ok {
			continue
		}
		if found && k != kind {
			kind = FieldAny
		} else {
			kind = k
		}
		found = true
	}
	if found && nested && rest != "" {
		if kind != FieldMap && kind != FieldAny {
			return "", false
		}
		return FieldAny, true
	}
	return kind, found
}

func (s *Schema) unknown(what, name string) error {
	return sieveerr.New(sieveerr.CodeQueryFieldUnknown, "unknown "+what, sieveerr.Field("name", name))
}

func (s *Schema) checkField(name string) error {
	if _, ok := s.fieldKind(name); !ok {
		return s.unknown("field", name)
	}
	return nil
}

func (s *Schema) checkRelation(name string) error {
	if !slices.Contains(s.RelationTypes, name) {
		return s.unknown("relation type", name)
	}
	return nil
}

func (s *Schema) check(c Clause) error {
	switch c := c.(type) {
	case FromClause:
		if c.Type != "" {
			if _, ok := s.EntityTypes[c.Type]; !ok {
				return s.unknown("entity type", c.Type)
			}
		}
	case WhereClause:
		return s.checkCondition(c.Cond)
	case TraverseClause:
		return s.checkRelation(c.RelationType)
	case ExpandClause:
		for _, r := range c.RelationTypes {
			if err := s.checkRelation(r); err != nil {
				return err
			}
		}
	case PathClause:
		for _, r := range c.RelationTypes {
			if err := s.checkRelation(r); err != nil {
				return err
			}
		}
		return s.checkCondition(c.To)
	case SelectClause:
		for _, f := range c.Fields {
			if err := s.checkField(f); err != nil {
				return err
			}
		}
	case OrderByClause:
		return s.checkField(c.Field)
	case GroupByClause:
		return s.checkField(c.Field)
	case AggregateClause:
		if c.Field == "" {
			return nil
		}
		k, ok := s.fieldKind(c.Field)
		if !ok {
			return s.unknown("field", c.Field)
		}
		if c.Fn != AggCount && c.Fn != AggMin && c.Fn != AggMax && k != FieldNumber && k != FieldAny {
			return sieveerr.New(sieveerr.CodeQueryOperatorUnsupported, "aggregate requires a numeric field",
				sieveerr.Field("fn", string(c.Fn)), sieveerr.Field("name", c.Field))
		}
	}
	return nil
}

func (s *Schema) checkCondition(c Condition) error {
	switch c := c.(type) {
	case *Expression:
		for _, a := range c.args {
			if err := s.checkCondition(a); err != nil {
				return err
			}
		}
		return nil
	case *Predicate:
		if c.op.IsFlag() {
			return nil
		}
		kind, ok := s.fieldKind(c.field)
		if !ok {
			return s.unknown("field", c.field)
		}
		if !operatorSupports(c.op, kind) {
			return sieveerr.New(sieveerr.CodeQueryOperatorUnsupported, "operator not supported for field kind",
				sieveerr.Field("op", string(c.op)), sieveerr.Field("name", c.field), sieveerr.Field("kind", string(kind)))
		}
	}
	return nil
}

func operatorSupports(op Op, kind FieldKind) bool {
	if kind == FieldAny {
		return true
	}
	switch op {
	case OpGt, OpLt:
		return kind == FieldNumber || kind == FieldString
	case OpMatches:
		return kind == FieldString
	case OpContains:
		return kind == FieldString || kind == FieldList
	}
	return true
}
