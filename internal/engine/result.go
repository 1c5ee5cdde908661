// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"encoding/json"
	"maps"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/query"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

type EntityDTO struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	Metadata   *graph.Metadata `json:"metadata,omitempty"`
}

type RelationDTO struct {
	ID         string         `json:"id"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// PathDTO is an explicit path: Entities[i] and Entities[i+1] are joined by
// Relations[i].
type PathDTO struct {
	Source    string   `json:"source"`
	Target    string   `json:"target"`
	Length    int      `json:"length"`
	Entities  []string `json:"entities"`
	Relations []string `json:"relations"`
}

// Group is one GroupBy partition. Members are listed by id; their DTOs are in
// Result.Nodes, group by group.
type Group struct {
	Key       any        `json:"key"`
	Members   []string   `json:"members"`
	Aggregate *Aggregate `json:"aggregate,omitempty"`
}

type Aggregate struct {
	Fn    query.AggFunc `json:"fn"`
	Field string        `json:"field,omitempty"`
	Value any           `json:"value"`
}

// ExplainStage describes one executed clause.
type ExplainStage struct {
	Position int        `json:"position"`
	Clause   query.Kind `json:"clause"`
	Binding  string     `json:"binding,omitempty"`
	In       int        `json:"in"`
	Out      int        `json:"out"`
	Steps    int        `json:"steps"`
}

type Stats struct {
	Matched         int          `json:"matched"`
	ExecutionTimeMs float64      `json:"executionTimeMs"`
	Partial         bool         `json:"partial,omitempty"`
	StopReason      string       `json:"stopReason,omitempty"`
	Cached          bool         `json:"cached,omitempty"`
	Diagnostics     []Diagnostic `json:"diagnostics,omitempty"`
}

// Result is the outcome of one execution.
type Result struct {
	Ref       graph.Ref      `json:"ref"`
	Nodes     []EntityDTO    `json:"nodes"`
	Relations []RelationDTO  `json:"relations"`
	Paths     []PathDTO      `json:"paths,omitzero"`
	Groups    []Group        `json:"groups,omitempty"`
	Aggregate *Aggregate     `json:"aggregate,omitempty"`
	Explain   []ExplainStage `json:"explain,omitempty"`
	Stats     Stats          `json:"stats"`
}

// Content encodes everything that is determined by the query and the
// snapshot. Timing and cache provenance are left out, so two correct
// executions of the same inputs always produce identical bytes.
func (r *Result) Content() ([]byte, error) {
	c := *r
	c.Stats.ExecutionTimeMs = 0
	c.Stats.Cached = false
	b, err := json.Marshal(&c)
	if err != nil {
		return nil, sieveerr.Wrap(err, sieveerr.CodeExecResultEncodeFailure, "encoding result")
	}
	return b, nil
}

// DecodeResult parses bytes produced by Content.
func DecodeResult(content []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(content, &r); err != nil {
		return nil, sieveerr.Wrap(err, sieveerr.CodeCacheEntryInconsistent, "decoding cached result")
	}
	if r.Nodes == nil {
		r.Nodes = []EntityDTO{}
	}
	if r.Relations == nil {
		r.Relations = []RelationDTO{}
	}
	return &r, nil
}

func entityDTO(e *graph.Entity) EntityDTO {
	dto := EntityDTO{ID: e.ID, Type: e.Type, Metadata: e.Metadata}
	if len(e.Attributes) > 0 {
		dto.Attributes = maps.Clone(e.Attributes)
	}
	return dto
}

func relationDTO(r *graph.Relation) RelationDTO {
	dto := RelationDTO{ID: r.ID, From: r.From, To: r.To, Type: r.Type}
	if len(r.Attributes) > 0 {
		dto.Attributes = maps.Clone(r.Attributes)
	}
	return dto
}

func pathDTO(p *foundPath) PathDTO {
	rels := make([]string, len(p.relations))
	for i, r := range p.relations {
		rels[i] = r.ID
	}
	return PathDTO{
		Source:    p.source,
		Target:    p.target,
		Length:    len(p.relations),
		Entities:  append([]string(nil), p.entities...),
		Relations: rels,
	}
}
