// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package store

import (
	"bytes"
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/sigil-dev/sieve/internal/graph"
)

var _ Store = (*Memory)(nil)

// Memory is a process-local backend, used in tests and for throwaway servers.
type Memory struct {
	mu      sync.RWMutex
	graphs  map[graph.Ref]*savedGraph
	results map[string]resultRow
	now     func() time.Time
}

type savedGraph struct {
	info GraphInfo
	doc  *graph.Document
}

type resultRow struct {
	branch   string
	version  int64
	content  []byte
	checksum uint64
}

func NewMemory() *Memory {
	return &Memory{
		graphs:  make(map[graph.Ref]*savedGraph),
		results: make(map[string]resultRow),
		now:     time.Now,
	}
}

func (m *Memory) SaveGraph(_ context.Context, ref graph.Ref, doc *graph.Document) (GraphInfo, error) {
	prepared, err := PrepareDocument(ref, doc)
	if err != nil {
		return GraphInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.graphs[ref]; exists {
		return GraphInfo{}, ErrGraphExists(ref)
	}
	info := GraphInfo{
		Ref:       ref,
		Entities:  len(prepared.Entities),
		Relations: len(prepared.Relations),
		SavedAt:   m.now().UTC(),
	}
	m.graphs[ref] = &savedGraph{info: info, doc: prepared}
	return info, nil
}

func (m *Memory) LoadGraph(ctx context.Context, branch string) (*graph.Memory, graph.Ref, error) {
	m.mu.RLock()
	var latest graph.Ref
	for ref := range m.graphs {
		if ref.Branch == branch && ref.Version > latest.Version {
			latest = ref
		}
	}
	m.mu.RUnlock()

	if latest.Version == 0 {
		return nil, graph.Ref{}, ErrGraphNotFound(graph.Ref{Branch: branch})
	}
	idx, err := m.LoadVersion(ctx, latest)
	return idx, latest, err
}

func (m *Memory) LoadVersion(_ context.Context, ref graph.Ref) (*graph.Memory, error) {
	m.mu.RLock()
	saved, ok := m.graphs[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrGraphNotFound(ref)
	}
	return saved.doc.Build()
}

func (m *Memory) ListGraphs(_ context.Context, branch string) ([]GraphInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]GraphInfo, 0, len(m.graphs))
	for ref, saved := range m.graphs {
		if branch == "" || ref.Branch == branch {
			out = append(out, saved.info)
		}
	}
	slices.SortFunc(out, func(a, b GraphInfo) int {
		return cmp.Or(cmp.Compare(a.Ref.Branch, b.Ref.Branch), cmp.Compare(a.Ref.Version, b.Ref.Version))
	})
	return out, nil
}

func (m *Memory) DeleteGraph(_ context.Context, ref graph.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[ref]; !ok {
		return ErrGraphNotFound(ref)
	}
	delete(m.graphs, ref)
	return nil
}

func (m *Memory) GetResult(_ context.Context, key string) ([]byte, uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.results[key]
	if !ok {
		return nil, 0, ErrResultNotFound(key)
	}
	return bytes.Clone(row.content), row.checksum, nil
}

func (m *Memory) PutResult(_ context.Context, key, branch string, version int64, content []byte, checksum uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = resultRow{branch: branch, version: version, content: bytes.Clone(content), checksum: checksum}
	return nil
}

func (m *Memory) DeleteResult(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, key)
	return nil
}

func (m *Memory) DeleteResults(_ context.Context, branch string, keepVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.results)
	maps.DeleteFunc(m.results, func(_ string, row resultRow) bool {
		return row.branch == branch && row.version != keepVersion
	})
	return int64(before - len(m.results)), nil
}

func (m *Memory) Close() error { return nil }
