// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package query

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Encode renders the canonical wire form: a JSON array of single-key clause
// objects in declared order. Encoding a decoded query reproduces the input
// bytes exactly.
func (q *Query) Encode() ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, c := range q.Clauses() {
		if i > 0 {
			buf.WriteByte(',')
		}
		val, err := json.Marshal(c.wire())
		if err != nil {
			return nil, sieveerr.Wrap(err, sieveerr.CodeQueryEncodeFailure, "encoding clause",
				sieveerr.FieldClause(string(c.Kind())))
		}
		key, _ := json.Marshal(string(c.Kind()))
		buf.WriteByte('{')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (q *Query) MarshalJSON() ([]byte, error) {
	return q.Encode()
}

// String returns the canonical encoding, or the build error text.
func (q *Query) String() string {
	b, err := q.Encode()
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// Decode parses either the canonical array form or the object form, whose
// keys are applied in document order. Every clause goes through the same
// validation as the builder.
func Decode(data []byte, opts ...Option) (*Query, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, decodeErr(err, "reading query")
	}

	q := New(opts...)
	switch tok {
	case json.Delim('['):
		for dec.More() {
			var obj map[string]json.RawMessage
			if err := dec.Decode(&obj); err != nil {
				return nil, decodeErr(err, "reading clause")
			}
			if len(obj) != 1 {
				return nil, sieveerr.New(sieveerr.CodeQueryDecodeInvalidFormat,
					"each clause object must have exactly one key", sieveerr.Field("position", q.Len()))
			}
			for k, raw := range obj {
				if q, err = applyClause(q, Kind(k), raw); err != nil {
					return nil, err
				}
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, decodeErr(err, "closing clause list")
		}
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, decodeErr(err, "reading clause key")
			}
			key, _ := keyTok.(string)
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, decodeErr(err, "reading clause value")
			}
			if q, err = applyClause(q, Kind(key), raw); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, decodeErr(err, "closing query object")
		}
	default:
		return nil, sieveerr.New(sieveerr.CodeQueryDecodeInvalidFormat, "query must be a json array or object")
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, sieveerr.New(sieveerr.CodeQueryDecodeInvalidFormat, "trailing data after query")
	}
	if err := q.Err(); err != nil {
		return nil, err
	}
	return q, nil
}

func decodeErr(err error, msg string) error {
	return sieveerr.Wrap(err, sieveerr.CodeQueryDecodeInvalidFormat, msg)
}

func applyClause(q *Query, k Kind, raw json.RawMessage) (*Query, error) {
	fail := func(err error) (*Query, error) {
		return nil, sieveerr.Wrap(err, sieveerr.CodeQueryDecodeInvalidFormat, "decoding clause",
			sieveerr.FieldClause(string(k)), sieveerr.Field("position", q.Len()))
	}

	var next *Query
	switch k {
	case KindFrom:
		var t *string
		if err := strictUnmarshal(raw, &t); err != nil {
			return fail(err)
		}
		if t == nil {
			next = q.From("")
		} else {
			next = q.From(*t)
		}
	case KindWhere:
		cond, err := DecodeCondition(raw)
		if err != nil {
			return nil, err
		}
		next = q.Where(cond)
	case KindTraverse:
		var c TraverseClause
		if err := strictUnmarshal(raw, &c); err != nil {
			return fail(err)
		}
		next = q.Traverse(c.RelationType, c.Direction)
	case KindExpand:
		var c ExpandClause
		if err := strictUnmarshal(raw, &c); err != nil {
			return fail(err)
		}
		next = q.Expand(c)
	case KindPath:
		var w struct {
			To            json.RawMessage `json:"to"`
			MaxDepth      int             `json:"maxDepth"`
			RelationTypes []string        `json:"relationTypes"`
			Direction     graph.Direction `json:"direction"`
		}
		if err := strictUnmarshal(raw, &w); err != nil {
			return fail(err)
		}
		to, err := DecodeCondition(w.To)
		if err != nil {
			return nil, err
		}
		next = q.Path(PathClause{To: to, MaxDepth: w.MaxDepth, RelationTypes: w.RelationTypes, Direction: w.Direction})
	case KindSelect:
		var fields []string
		if err := strictUnmarshal(raw, &fields); err != nil {
			return fail(err)
		}
		next = q.Select(fields...)
	case KindLimit:
		var n int
		if err := strictUnmarshal(raw, &n); err != nil {
			return fail(err)
		}
		next = q.Limit(n)
	case KindOrderBy:
		var c OrderByClause
		if err := strictUnmarshal(raw, &c); err != nil {
			return fail(err)
		}
		next = q.OrderBy(c.Field, c.Dir)
	case KindDistinct:
		var on bool
		if err := strictUnmarshal(raw, &on); err != nil {
			return fail(err)
		}
		if !on {
			return q, nil
		}
		next = q.Distinct()
	case KindGroupBy:
		var f string
		if err := strictUnmarshal(raw, &f); err != nil {
			return fail(err)
		}
		next = q.GroupBy(f)
	case KindAggregate:
		var c AggregateClause
		if err := strictUnmarshal(raw, &c); err != nil {
			return fail(err)
		}
		next = q.Aggregate(c.Fn, c.Field)
	default:
		return nil, sieveerr.New(sieveerr.CodeQueryDecodeInvalidFormat, "unknown clause key",
			sieveerr.FieldClause(string(k)), sieveerr.Field("position", q.Len()))
	}

	if err := next.Err(); err != nil {
		return nil, err
	}
	return next, nil
}

// DecodeCondition parses a predicate ({op, field, value?}) or an expression
// ({type, args}).
func DecodeCondition(raw json.RawMessage) (Condition, error) {
	var probe struct {
		Op    *Op               `json:"op"`
		Field string            `json:"field"`
		Value json.RawMessage   `json:"value"`
		Type  *Logic            `json:"type"`
		Args  []json.RawMessage `json:"args"`
	}
	if err := strictUnmarshal(raw, &probe); err != nil {
		return nil, decodeErr(err, "decoding condition")
	}

	switch {
	case probe.Op != nil && probe.Type == nil:
		value, err := decodeValue(probe.Value)
		if err != nil {
			return nil, err
		}
		return NewPredicate(*probe.Op, probe.Field, value)
	case probe.Type != nil && probe.Op == nil:
		args := make([]Condition, 0, len(probe.Args))
		for _, a := range probe.Args {
			c, err := DecodeCondition(a)
			if err != nil {
				return nil, err
			}
			args = append(args, c)
		}
		return NewExpression(*probe.Type, args...)
	default:
		return nil, sieveerr.New(sieveerr.CodeQueryDecodeInvalidFormat,
			"condition must have exactly one of op or type")
	}
}

func decodeValue(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, decodeErr(err, "decoding predicate value")
	}
	return graph.NormalizeValue(v), nil
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
