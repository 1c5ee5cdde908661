// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// relationNamespace seeds the name-based UUIDs given to relations that
// arrive without an id.
var relationNamespace = uuid.MustParse("6f1c2a8e-3d4b-5c6d-8e9f-0a1b2c3d4e5f")

// Document is the interchange form of a graph: entities first, then
// relations, each in insertion order.
type Document struct {
	Entities  []Entity   `json:"entities" yaml:"entities"`
	Relations []Relation `json:"relations" yaml:"relations"`
}

// Build validates the document and returns an unfrozen index.
func (d *Document) Build() (*Memory, error) {
	m := NewMemory()
	for _, e := range d.Entities {
		if err := m.AddEntity(e); err != nil {
			return nil, err
		}
	}
	for i, r := range d.Relations {
		if r.ID == "" {
			r.ID = RelationID(r.From, r.Type, r.To, i)
		}
		if err := m.AddRelation(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RelationID derives a stable id for a relation declared without one.
func RelationID(from, relType, to string, ordinal int) string {
	name := fmt.Sprintf("%s\x00%s\x00%s\x00%d", from, relType, to, ordinal)
	return uuid.NewSHA1(relationNamespace, []byte(name)).String()
}

// Document exports the index in insertion order.
func (m *Memory) Document() *Document {
	d := &Document{
		Entities:  make([]Entity, 0, len(m.order)),
		Relations: make([]Relation, 0, len(m.relOrder)),
	}
	for _, id := range m.order {
		d.Entities = append(d.Entities, *m.entities[id])
	}
	for _, id := range m.relOrder {
		d.Relations = append(d.Relations, *m.relations[id])
	}
	return d
}

// DecodeJSON reads a JSON graph document.
func DecodeJSON(r io.Reader) (*Memory, error) {
	var d Document
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return nil, sieveerr.Wrap(err, sieveerr.CodeGraphDecodeInvalidFormat, "decoding json graph document")
	}
	return d.Build()
}

// DecodeYAML reads a YAML graph document.
func DecodeYAML(r io.Reader) (*Memory, error) {
	var d Document
	if err := yaml.NewDecoder(r).Decode(&d); err != nil {
		return nil, sieveerr.Wrap(err, sieveerr.CodeGraphDecodeInvalidFormat, "decoding yaml graph document")
	}
	return d.Build()
}

// LoadFile picks a decoder from the file extension.
func LoadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sieveerr.Wrapf(err, sieveerr.CodeConfigLoadReadFailure, "opening graph document %s", path)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(f)
	case ".json":
		return DecodeJSON(f)
	default:
		return nil, sieveerr.New(sieveerr.CodeGraphDecodeInvalidFormat, "unsupported graph document extension",
			sieveerr.Field("path", path))
	}
}

// normalizeMap converts decoded numbers and nested YAML maps into the
// canonical value set: float64 for numbers, map[string]any, []any.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue maps any decoded or caller-supplied value onto the canonical
// value set shared by documents, predicates and results.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case map[string]any:
		return normalizeMap(x)
	case map[any]any:
		m, _ := asMap(x)
		return normalizeMap(m)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case []int:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case []float64:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	default:
		return x
	}
}
