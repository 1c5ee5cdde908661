// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"slices"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
)

// findPaths runs one bounded breadth-first search per member of f. Every
// newly visited entity gets a single back-pointer, so the first time a target
// is reached its reconstructed path is a shortest one. Ties resolve by layer,
// then enqueue order, then relation insertion order. Sources never match
// themselves and branches longer than MaxDepth are dropped silently.
func findPaths(idx graph.Index, f *frame, c query.PathClause, ev *evaluator, t *tracker) *frame {
	child := newFrame(f, "path")

	for _, src := range f.ids {
		if t.exhausted() {
			break
		}
		source, ok := idx.Entity(src)
		if !ok {
			continue
		}

		back := map[string]*graph.Relation{}
		prev := map[string]string{}
		visited := map[string]struct{}{src: {}}
		layer := []string{src}

		for depth := 1; depth <= c.MaxDepth && len(layer) > 0; depth++ {
			if depth > 1 && t.exhausted() {
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
					target, ok := idx.Entity(n)
					if !ok {
						continue
					}
					visited[n] = struct{}{}
					back[n] = r
					prev[n] = id
					next = append(next, n)

					if ev.eval(c.To, target, source) {
						p := reconstruct(src, n, back, prev)
						child.add(n, src, r)
						child.paths = append(child.paths, p)
					}
				}
			}
			layer = next
		}
	}
	return child
}

func reconstruct(src, target string, back map[string]*graph.Relation, prev map[string]string) *foundPath {
	p := &foundPath{source: src, target: target}
	for id := target; id != src; id = prev[id] {
		p.entities = append(p.entities, id)
		p.relations = append(p.relations, back[id])
	}
	p.entities = append(p.entities, src)
	slices.Reverse(p.entities)
	slices.Reverse(p.relations)
	return p
}
