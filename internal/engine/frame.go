// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"slices"

	"github.com/sigil-dev/sieve/internal/graph"
)

// frame is the traversal state after one navigation clause. Each member keeps
// the ids of the parent-frame entities it is bound to, in discovery order,
// and the relations it was reached through under each binding.
type frame struct {
	parent  *frame
	binding string
	ids     []string
	origins map[string][]string
	edges   map[string][]boundEdge
	paths   []*foundPath
}

type boundEdge struct {
	origin string
	rel    *graph.Relation
}

type foundPath struct {
	source    string
	target    string
	entities  []string
	relations []*graph.Relation
}

func newFrame(parent *frame, binding string) *frame {
	return &frame{
		parent:  parent,
		binding: binding,
		origins: map[string][]string{},
		edges:   map[string][]boundEdge{},
	}
}

// add records id with an optional binding and inbound edge. Ids keep first
// discovery order; repeated bindings and edges are ignored.
func (f *frame) add(id, origin string, edge *graph.Relation) {
	if _, seen := f.origins[id]; !seen {
		f.ids = append(f.ids, id)
		f.origins[id] = nil
	}
	if origin != "" && !slices.Contains(f.origins[id], origin) {
		f.origins[id] = append(f.origins[id], origin)
	}
	if edge != nil {
		be := boundEdge{origin: origin, rel: edge}
		if !slices.ContainsFunc(f.edges[id], func(x boundEdge) bool { return x.origin == origin && x.rel.ID == edge.ID }) {
			f.edges[id] = append(f.edges[id], be)
		}
	}
}

func (f *frame) has(id string) bool {
	_, ok := f.origins[id]
	return ok
}

func (f *frame) boundTo(id, origin string) bool {
	return slices.Contains(f.origins[id], origin)
}

// bindings returns the parent entities id is bound to. Root members have
// none.
func (f *frame) bindings(idx graph.Index, id string) []*graph.Entity {
	out := make([]*graph.Entity, 0, len(f.origins[id]))
	for _, o := range f.origins[id] {
		if e, ok := idx.Entity(o); ok {
			out = append(out, e)
		}
	}
	return out
}

// sibling returns an empty frame at the same position in the chain, used
// when narrowing.
func (f *frame) sibling() *frame {
	return newFrame(f.parent, f.binding)
}

// chain returns the frames from the root down to f.
func (f *frame) chain() []*frame {
	var out []*frame
	for n := f; n != nil; n = n.parent {
		out = append(out, n)
	}
	slices.Reverse(out)
	return out
}
