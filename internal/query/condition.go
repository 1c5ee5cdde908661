// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package query

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// ParentPrefix marks a predicate value as a context variable resolved against
// the parent frame's bound entity.
const ParentPrefix = "$parent."

// Op is a predicate operator. The set is closed.
type Op string

const (
	OpEq            Op = "eq"
	OpNeq           Op = "neq"
	OpIn            Op = "in"
	OpGt            Op = "gt"
	OpLt            Op = "lt"
	OpExists        Op = "exists"
	OpContains      Op = "contains"
	OpMatches       Op = "matches"
	OpFlagIs        Op = "flag-is"
	OpFlagExists    Op = "flag-exists"
	OpFlagNotExists Op = "flag-notExists"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNeq, OpIn, OpGt, OpLt, OpExists, OpContains, OpMatches,
		OpFlagIs, OpFlagExists, OpFlagNotExists:
		return true
	}
	return false
}

// IsFlag reports whether the operator reads entity metadata flags instead of
// attributes.
func (o Op) IsFlag() bool {
	return o == OpFlagIs || o == OpFlagExists || o == OpFlagNotExists
}

func (o Op) takesValue() bool {
	return o != OpExists && o != OpFlagExists && o != OpFlagNotExists
}

// Logic is the connective of an Expression.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
	LogicNot Logic = "NOT"
)

// Condition is either a *Predicate or an *Expression. A condition built with
// invalid arguments carries its error; attaching it to a query surfaces it.
type Condition interface {
	json.Marshaler
	Err() error
	isCondition()
}

// Predicate tests a single field. It is immutable after construction.
type Predicate struct {
	op    Op
	field string
	value any
	re    *regexp.Regexp
	err   error
}

// NewPredicate validates its arguments eagerly. The value is normalized to the
// canonical value set (float64 numbers, []any sequences).
func NewPredicate(op Op, field string, value any) (*Predicate, error) {
	p := &Predicate{op: op, field: field, value: graph.NormalizeValue(value)}
	p.err = p.check()
	if p.err == nil && op == OpMatches {
		re, err := regexp.Compile(p.value.(string))
		if err != nil {
			p.err = sieveerr.Wrap(err, sieveerr.CodeQueryClauseInvalid, "matches pattern does not compile",
				sieveerr.Field("field", field))
		}
		p.re = re
	}
	if p.err != nil {
		return nil, p.err
	}
	return p, nil
}

func (p *Predicate) check() error {
	fail := func(msg string) error {
		return sieveerr.New(sieveerr.CodeQueryClauseInvalid, msg,
			sieveerr.Field("op", string(p.op)), sieveerr.Field("field", p.field))
	}
	if !p.op.valid() {
		return fail("unknown predicate operator")
	}
	if p.field == "" {
		return fail("predicate field is required")
	}
	if len(strings.Split(p.field, ".")) > graph.MaxPathSegments {
		return fail("predicate field path is too deep")
	}
	if !p.op.takesValue() {
		if p.value != nil {
			return fail("operator takes no value")
		}
		return nil
	}
	if _, err := json.Marshal(p.value); err != nil {
		return fail("predicate value is not representable as json")
	}

	_, isVar := p.ContextPath()
	switch p.op {
	case OpMatches:
		if _, ok := p.value.(string); !ok || isVar {
			return fail("matches requires a literal pattern string")
		}
	case OpIn:
		switch p.value.(type) {
		case []any, string:
		default:
			return fail("in requires a sequence or string value")
		}
	case OpGt, OpLt:
		switch p.value.(type) {
		case float64, string:
		default:
			return fail("ordering operators require a number or string value")
		}
	case OpContains:
		if p.value == nil {
			return fail("contains requires a value")
		}
	}
	if isVar {
		path, _ := p.ContextPath()
		if path == "" || len(strings.Split(path, ".")) > graph.MaxPathSegments {
			return fail("context variable path is empty or too deep")
		}
	}
	return nil
}

func mustPredicate(op Op, field string, value any) *Predicate {
	p, err := NewPredicate(op, field, value)
	if err != nil {
		return &Predicate{op: op, field: field, value: value, err: err}
	}
	return p
}

func Eq(field string, value any) *Predicate       { return mustPredicate(OpEq, field, value) }
func Neq(field string, value any) *Predicate      { return mustPredicate(OpNeq, field, value) }
func In(field string, value any) *Predicate       { return mustPredicate(OpIn, field, value) }
func Gt(field string, value any) *Predicate       { return mustPredicate(OpGt, field, value) }
func Lt(field string, value any) *Predicate       { return mustPredicate(OpLt, field, value) }
func Exists(field string) *Predicate              { return mustPredicate(OpExists, field, nil) }
func Contains(field string, value any) *Predicate { return mustPredicate(OpContains, field, value) }
func Matches(field, pattern string) *Predicate    { return mustPredicate(OpMatches, field, pattern) }
func FlagIs(flag string, value any) *Predicate    { return mustPredicate(OpFlagIs, flag, value) }
func FlagExists(flag string) *Predicate           { return mustPredicate(OpFlagExists, flag, nil) }
func FlagNotExists(flag string) *Predicate        { return mustPredicate(OpFlagNotExists, flag, nil) }

func (p *Predicate) Op() Op { return p.op }

func (p *Predicate) Field() string { return p.field }

func (p *Predicate) Value() any { return p.value }

// Regexp returns the pattern compiled at construction for OpMatches.
func (p *Predicate) Regexp() *regexp.Regexp { return p.re }

func (p *Predicate) Err() error { return p.err }

// ContextPath returns the dotted path of a $parent. value.
func (p *Predicate) ContextPath() (string, bool) {
	s, ok := p.value.(string)
	if !ok || !strings.HasPrefix(s, ParentPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, ParentPrefix), true
}

func (*Predicate) isCondition() {}

type predicateWire struct {
	Op    Op     `json:"op"`
	Field string `json:"field"`
	Value any    `json:"value,omitempty"`
}

func (p *Predicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(predicateWire{Op: p.op, Field: p.field, Value: p.value})
}

// Expression combines conditions. Arguments are evaluated left to right with
// short-circuiting; their order is part of the query's identity.
type Expression struct {
	logic Logic
	args  []Condition
	err   error
}

// NewExpression validates arity and propagates the first argument error.
func NewExpression(logic Logic, args ...Condition) (*Expression, error) {
	e := &Expression{logic: logic, args: append([]Condition(nil), args...)}
	e.err = e.check()
	if e.err != nil {
		return nil, e.err
	}
	return e, nil
}

func (e *Expression) check() error {
	switch e.logic {
	case LogicAnd, LogicOr:
		if len(e.args) == 0 {
			return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "expression requires at least one argument",
				sieveerr.Field("type", string(e.logic)))
		}
	case LogicNot:
		if len(e.args) != 1 {
			return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "NOT takes exactly one argument",
				sieveerr.Field("args", len(e.args)))
		}
	default:
		return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "unknown expression type",
			sieveerr.Field("type", string(e.logic)))
	}
	for _, a := range e.args {
		if a == nil {
			return sieveerr.New(sieveerr.CodeQueryClauseInvalid, "expression argument is nil",
				sieveerr.Field("type", string(e.logic)))
		}
		if err := a.Err(); err != nil {
			return err
		}
	}
	return nil
}

func mustExpression(logic Logic, args ...Condition) *Expression {
	e, err := NewExpression(logic, args...)
	if err != nil {
		return &Expression{logic: logic, args: args, err: err}
	}
	return e
}

func And(args ...Condition) *Expression { return mustExpression(LogicAnd, args...) }
func Or(args ...Condition) *Expression  { return mustExpression(LogicOr, args...) }
func Not(arg Condition) *Expression     { return mustExpression(LogicNot, arg) }

func (e *Expression) Logic() Logic { return e.logic }

// Args returns a copy of the argument list.
func (e *Expression) Args() []Condition { return append([]Condition(nil), e.args...) }

func (e *Expression) Err() error { return e.err }

func (*Expression) isCondition() {}

type expressionWire struct {
	Type Logic       `json:"type"`
	Args []Condition `json:"args"`
}

func (e *Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(expressionWire{Type: e.logic, Args: e.args})
}
