// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

// seed builds the root frame from every entity of entityType, or every
// entity when entityType is empty.
func seed(idx graph.Index, entityType string) *frame {
	binding := "from"
	if entityType != "" {
		binding = "from:" + entityType
	}
	f := newFrame(nil, binding)
	for _, id := range idx.EntitiesByType(entityType) {
		f.add(id, "", nil)
	}
	return f
}

// where narrows f to the members satisfying cond. A member of a child frame
// survives when cond holds under at least one of its bindings; bindings under
// which it failed are dropped together with their edges.
func where(idx graph.Index, f *frame, cond query.Condition, ev *evaluator) *frame {
	out := f.sibling()

	for _, id := range f.ids {
		e, ok := idx.Entity(id)
		if !ok {
			continue
		}
		if len(f.origins[id]) == 0 {
			if ev.eval(cond, e, nil) {
				out.add(id, "", nil)
				for _, be := range f.edges[id] {
					out.add(id, be.origin, be.rel)
				}
			}
			continue
		}

		for _, parent := range f.bindings(idx, id) {
			if !ev.eval(cond, e, parent) {
				continue
			}
			out.add(id, parent.ID, nil)
			for _, be := range f.edges[id] {
				if be.origin == parent.ID {
					out.add(id, be.origin, be.rel)
				}
			}
		}
	}

	for _, p := range f.paths {
		if out.has(p.target) && out.boundTo(p.target, p.source) {
			out.paths = append(out.paths, p)
		}
	}
	return out
}

// traverse follows exactly one relation of relType from every member of f.
// Out edges of a member are visited before its in edges.
func traverse(idx graph.Index, f *frame, relType string, dir graph.Direction, t *tracker) *frame {
	child := newFrame(f, "traverse:"+relType)
	for _, id := range f.ids {
		t.spend(1)
		for _, r := range idx.Relations(id, relType, dir) {
			n := r.Neighbor(id)
			if _, ok := idx.Entity(n); !ok {
				continue
			}
			child.add(n, id, r)
		}
	}
	return child
}
