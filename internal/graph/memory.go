// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"slices"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Memory is an in-process Index. It is built by a single owner with
// AddEntity/AddRelation, then frozen; a frozen Memory is safe for concurrent
// reads. Updates go through Clone, which yields an unfrozen copy.
type Memory struct {
	entities  map[string]*Entity
	order     []string
	byType    map[string][]string
	relations map[string]*Relation
	relOrder  []string
	out       map[string][]*Relation
	in        map[string][]*Relation
	relTypes  []string
	frozen    bool
}

var _ Index = (*Memory)(nil)

// NewMemory returns an empty, unfrozen index.
func NewMemory() *Memory {
	return &Memory{
		entities:  make(map[string]*Entity),
		byType:    make(map[string][]string),
		relations: make(map[string]*Relation),
		out:       make(map[string][]*Relation),
		in:        make(map[string][]*Relation),
	}
}

// AddEntity inserts a copy of e with its values normalized.
func (m *Memory) AddEntity(e Entity) error {
	if m.frozen {
		return sieveerr.New(sieveerr.CodeGraphFrozenConflict, "index is frozen", sieveerr.FieldEntityID(e.ID))
	}
	if e.ID == "" {
		return sieveerr.New(sieveerr.CodeGraphEntityInvalid, "entity id is required")
	}
	if e.Type == "" {
		return sieveerr.New(sieveerr.CodeGraphEntityInvalid, "entity type is required", sieveerr.FieldEntityID(e.ID))
	}
	if _, ok := m.entities[e.ID]; ok {
		return sieveerr.New(sieveerr.CodeGraphEntityConflict, "duplicate entity id", sieveerr.FieldEntityID(e.ID))
	}

	stored := e
	stored.Attributes = normalizeMap(e.Attributes)
	if e.Metadata != nil {
		md := *e.Metadata
		md.Flags = normalizeMap(md.Flags)
		stored.Metadata = &md
	}
	m.entities[e.ID] = &stored
	m.order = append(m.order, e.ID)
	m.byType[e.Type] = append(m.byType[e.Type], e.ID)
	return nil
}

// AddRelation inserts a copy of r. Both endpoints must already exist.
func (m *Memory) AddRelation(r Relation) error {
	if m.frozen {
		return sieveerr.New(sieveerr.CodeGraphFrozenConflict, "index is frozen", sieveerr.Field("relation_id", r.ID))
	}
	if r.ID == "" || r.Type == "" {
		return sieveerr.New(sieveerr.CodeGraphRelationInvalid, "relation id and type are required",
			sieveerr.Field("relation_id", r.ID), sieveerr.FieldRelationType(r.Type))
	}
	if _, ok := m.relations[r.ID]; ok {
		return sieveerr.New(sieveerr.CodeGraphRelationConflict, "duplicate relation id", sieveerr.Field("relation_id", r.ID))
	}
	for _, end := range []string{r.From, r.To} {
		if _, ok := m.entities[end]; !ok {
			return sieveerr.New(sieveerr.CodeGraphEndpointNotFound, "relation endpoint does not exist",
				sieveerr.Field("relation_id", r.ID), sieveerr.FieldEntityID(end))
		}
	}

	stored := r
	stored.Attributes = normalizeMap(r.Attributes)
	m.relations[r.ID] = &stored
	m.relOrder = append(m.relOrder, r.ID)
	m.out[r.From] = append(m.out[r.From], &stored)
	m.in[r.To] = append(m.in[r.To], &stored)
	if !slices.Contains(m.relTypes, r.Type) {
		m.relTypes = append(m.relTypes, r.Type)
	}
	return nil
}

// RemoveEntity deletes an entity together with every incident relation.
func (m *Memory) RemoveEntity(id string) error {
	if m.frozen {
		return sieveerr.New(sieveerr.CodeGraphFrozenConflict, "index is frozen", sieveerr.FieldEntityID(id))
	}
	e, ok := m.entities[id]
	if !ok {
		return sieveerr.New(sieveerr.CodeGraphEntityNotFound, "entity not found", sieveerr.FieldEntityID(id))
	}
	var incident []string
	for _, r := range m.out[id] {
		incident = append(incident, r.ID)
	}
	for _, r := range m.in[id] {
		if r.From != id {
			incident = append(incident, r.ID)
		}
	}
	for _, rid := range incident {
		if err := m.RemoveRelation(rid); err != nil {
			return err
		}
	}

	delete(m.entities, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	m.byType[e.Type] = slices.DeleteFunc(m.byType[e.Type], func(s string) bool { return s == id })
	if len(m.byType[e.Type]) == 0 {
		delete(m.byType, e.Type)
	}
	return nil
}

// RemoveRelation deletes a relation by id.
func (m *Memory) RemoveRelation(id string) error {
	if m.frozen {
		return sieveerr.New(sieveerr.CodeGraphFrozenConflict, "index is frozen", sieveerr.Field("relation_id", id))
	}
	r, ok := m.relations[id]
	if !ok {
		return sieveerr.New(sieveerr.CodeGraphRelationNotFound, "relation not found", sieveerr.Field("relation_id", id))
	}
	match := func(x *Relation) bool { return x.ID == id }
	delete(m.relations, id)
	m.relOrder = slices.DeleteFunc(m.relOrder, func(s string) bool { return s == id })
	m.out[r.From] = slices.DeleteFunc(m.out[r.From], match)
	m.in[r.To] = slices.DeleteFunc(m.in[r.To], match)

	stillUsed := false
	for _, rel := range m.relations {
		if rel.Type == r.Type {
			stillUsed = true
			break
		}
	}
	if !stillUsed {
		m.relTypes = slices.DeleteFunc(m.relTypes, func(s string) bool { return s == r.Type })
	}
	return nil
}

// Freeze makes the index read-only. It is idempotent.
func (m *Memory) Freeze() { m.frozen = true }

func (m *Memory) Frozen() bool { return m.frozen }

// Clone returns an unfrozen copy that shares the immutable entity and relation
// values but none of the index structure.
func (m *Memory) Clone() *Memory {
	c := NewMemory()
	for _, id := range m.order {
		e := m.entities[id]
		c.entities[id] = e
		c.order = append(c.order, id)
		c.byType[e.Type] = append(c.byType[e.Type], id)
	}
	for _, id := range m.relOrder {
		r := m.relations[id]
		c.relations[id] = r
		c.relOrder = append(c.relOrder, id)
		c.out[r.From] = append(c.out[r.From], r)
		c.in[r.To] = append(c.in[r.To], r)
	}
	c.relTypes = slices.Clone(m.relTypes)
	return c
}

func (m *Memory) EntityCount() int { return len(m.order) }

func (m *Memory) RelationCount() int { return len(m.relOrder) }

// EntitiesByType returns ids of the given type, or of every entity when
// entityType is empty.
func (m *Memory) EntitiesByType(entityType string) []string {
	if entityType == "" {
		return slices.Clone(m.order)
	}
	return slices.Clone(m.byType[entityType])
}

func (m *Memory) Entity(id string) (*Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

func (m *Memory) Relation(id string) (*Relation, bool) {
	r, ok := m.relations[id]
	return r, ok
}

// Relations lists relations incident to entityID. For DirectionBoth outgoing
// relations come first; a self-loop is listed once.
func (m *Memory) Relations(entityID, relationType string, dir Direction) []*Relation {
	var out []*Relation
	keep := func(r *Relation) bool { return relationType == "" || r.Type == relationType }

	if dir == DirectionOut || dir == DirectionBoth {
		for _, r := range m.out[entityID] {
			if keep(r) {
				out = append(out, r)
			}
		}
	}
	if dir == DirectionIn || dir == DirectionBoth {
		for _, r := range m.in[entityID] {
			if !keep(r) {
				continue
			}
			if dir == DirectionBoth && r.From == entityID {
				continue
			}
			out = append(out, r)
		}
	}
	return out
}

// Adjacent returns the distinct neighbor ids reached through Relations.
func (m *Memory) Adjacent(entityID, relationType string, dir Direction) []string {
	rels := m.Relations(entityID, relationType, dir)
	ids := make([]string, 0, len(rels))
	seen := make(map[string]struct{}, len(rels))
	for _, r := range rels {
		n := r.Neighbor(entityID)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		ids = append(ids, n)
	}
	return ids
}

// RelationTypes lists relation types in first-seen order.
func (m *Memory) RelationTypes() []string {
	return slices.Clone(m.relTypes)
}
