// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"slices"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

// expand walks hops 1..depth breadth-first from every member of f. One
// visited set, seeded with the start members, is shared by the whole walk,
// so every entity is reported once and cycles terminate. Each discovered
// entity is bound to the start member it descends from.
func expand(idx graph.Index, f *frame, c query.ExpandClause, t *tracker) *frame {
	child := newFrame(f, "expand")

	visited := make(map[string]struct{}, len(f.ids))
	root := make(map[string]string, len(f.ids))
	layer := make([]string, 0, len(f.ids))
	for _, id := range f.ids {
		visited[id] = struct{}{}
		root[id] = id
		layer = append(layer, id)
		if c.IncludeStart {
			child.add(id, id, nil)
		}
	}

	for hop := 1; hop <= c.Depth && len(layer) > 0; hop++ {
		if t.exhausted() {
			break
		}
		var next []string
		for _, id := range layer {
			t.spend(1)
			for _, r := range relationsOf(idx, id, c.RelationTypes, c.Direction) {
				n := r.Neighbor(id)
				if _, seen := visited[n]; seen {
					continue
				}
				if _, ok := idx.Entity(n); !ok {
					continue
				}
				visited[n] = struct{}{}
				root[n] = root[id]
				child.add(n, root[id], r)
				next = append(next, n)
			}
		}
		layer = next
	}
	return child
}

// relationsOf lists the relations of id in insertion order, keeping only the
// given types when types is non-empty.
func relationsOf(idx graph.Index, id string, types []string, dir graph.Direction) []*graph.Relation {
	if len(types) == 1 {
		return idx.Relations(id, types[0], dir)
	}
	all := idx.Relations(id, "", dir)
	if len(types) == 0 {
		return all
	}
	out := make([]*graph.Relation, 0, len(all))
	for _, r := range all {
		if slices.Contains(types, r.Type) {
			out = append(out, r)
		}
	}
	return out
}
