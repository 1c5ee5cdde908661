// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// New / Errorf
// ---------------------------------------------------------------------------

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := sieveerr.New(
		sieveerr.CodeQueryClauseInvalid,
		"limit must not be negative",
		sieveerr.FieldClause("limit"),
		sieveerr.Field("value", -1),
	)

	require.Error(t, err)
	assert.Equal(t, sieveerr.CodeQueryClauseInvalid, sieveerr.CodeOf(err))
	assert.True(t, sieveerr.HasCode(err, sieveerr.CodeQueryClauseInvalid))

	fields := sieveerr.FieldsOf(err)
	assert.Equal(t, "limit", fields["clause"])
	assert.Equal(t, -1, fields["value"])
}

func TestNewWithNoFields(t *testing.T) {
	err := sieveerr.New(sieveerr.CodeStoreDatabaseFailure, "connection lost")
	require.Error(t, err)
	assert.Equal(t, sieveerr.CodeStoreDatabaseFailure, sieveerr.CodeOf(err))
	assert.Contains(t, err.Error(), "connection lost")
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := sieveerr.Errorf(sieveerr.CodeExecRelationTypeUnknown, "relation type %q not in snapshot %d", "owns", 7)
	require.Error(t, err)
	assert.Equal(t, sieveerr.CodeExecRelationTypeUnknown, sieveerr.CodeOf(err))
	assert.Contains(t, err.Error(), `relation type "owns" not in snapshot 7`)
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, sieveerr.CodeStoreDatabaseFailure, sieveerr.CodeOf(err))
}

// ---------------------------------------------------------------------------
// Wrap / Wrapf
// ---------------------------------------------------------------------------

func TestWrapPreservesWrappedErrorAndCode(t *testing.T) {
	root := stderrors.New("record missing")
	err := sieveerr.Wrap(
		root,
		sieveerr.CodeStoreEntityNotFound,
		"loading entity",
		sieveerr.FieldEntityID("e-42"),
	)

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, sieveerr.CodeStoreEntityNotFound, sieveerr.CodeOf(err))
	assert.True(t, sieveerr.IsNotFound(err))
	assert.Equal(t, "e-42", sieveerr.FieldsOf(err)["entity_id"])
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, sieveerr.Wrap(nil, sieveerr.CodeServerInternalFailure, "ignored"))
}

func TestWrapfNilReturnsNil(t *testing.T) {
	assert.NoError(t, sieveerr.Wrapf(nil, sieveerr.CodeServerInternalFailure, "ignored %s", "arg"))
}

func TestWrapfFormatsAndPreservesChain(t *testing.T) {
	root := stderrors.New("unexpected token")
	err := sieveerr.Wrapf(root, sieveerr.CodeQueryDecodeInvalidFormat, "decoding clause %d (%s)", 3, "where")

	require.Error(t, err)
	assert.ErrorIs(t, err, root)
	assert.Equal(t, sieveerr.CodeQueryDecodeInvalidFormat, sieveerr.CodeOf(err))
	assert.Contains(t, err.Error(), "decoding clause 3 (where)")
}

// ---------------------------------------------------------------------------
// With
// ---------------------------------------------------------------------------

func TestWithAddsContextWithoutChangingCode(t *testing.T) {
	base := sieveerr.New(sieveerr.CodeQueryFieldUnknown, "unknown field")
	withCtx := sieveerr.With(base, sieveerr.FieldClause("where"))

	require.Error(t, withCtx)
	assert.Equal(t, sieveerr.CodeQueryFieldUnknown, sieveerr.CodeOf(withCtx))
	assert.Equal(t, "where", sieveerr.FieldsOf(withCtx)["clause"])
}

func TestWithNilReturnsNil(t *testing.T) {
	assert.NoError(t, sieveerr.With(nil, sieveerr.FieldBranch("main")))
}

func TestWithOnPlainErrorDefaultsToInternalCode(t *testing.T) {
	plain := stderrors.New("something broke")
	enriched := sieveerr.With(plain, sieveerr.FieldBranch("main"))

	require.Error(t, enriched)
	assert.Equal(t, sieveerr.CodeServerInternalFailure, sieveerr.CodeOf(enriched))
	assert.Equal(t, "main", sieveerr.FieldsOf(enriched)["branch"])
}

// ---------------------------------------------------------------------------
// HasCode / CodeOf / FieldsOf
// ---------------------------------------------------------------------------

func TestHasCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code sieveerr.Code
		want bool
	}{
		{
			name: "matching code",
			err:  sieveerr.New(sieveerr.CodeStoreEntityNotFound, "gone"),
			code: sieveerr.CodeStoreEntityNotFound,
			want: true,
		},
		{
			name: "non-matching code",
			err:  sieveerr.New(sieveerr.CodeStoreEntityNotFound, "gone"),
			code: sieveerr.CodeStoreDatabaseFailure,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: sieveerr.CodeStoreEntityNotFound,
			want: false,
		},
		{
			name: "plain stdlib error has no code",
			err:  stderrors.New("plain"),
			code: sieveerr.CodeServerInternalFailure,
			want: false,
		},
		{
			name: "wrapped coded error returns innermost code",
			err: sieveerr.Wrap(
				sieveerr.New(sieveerr.CodeStoreDatabaseFailure, "inner"),
				sieveerr.CodeServerInternalFailure, "outer",
			),
			code: sieveerr.CodeStoreDatabaseFailure,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sieveerr.HasCode(tt.err, tt.code))
		})
	}
}

func TestCodeOfNil(t *testing.T) {
	assert.Equal(t, sieveerr.Code(""), sieveerr.CodeOf(nil))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, sieveerr.Code(""), sieveerr.CodeOf(stderrors.New("plain")))
}

func TestFieldsOfNilAndPlain(t *testing.T) {
	assert.Nil(t, sieveerr.FieldsOf(nil))
	assert.Nil(t, sieveerr.FieldsOf(stderrors.New("plain")))
}

func TestTypedFieldHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr sieveerr.Attr
		key  string
		val  string
	}{
		{"entity_id", sieveerr.FieldEntityID("e1"), "entity_id", "e1"},
		{"relation_type", sieveerr.FieldRelationType("owns"), "relation_type", "owns"},
		{"branch", sieveerr.FieldBranch("main"), "branch", "main"},
		{"clause", sieveerr.FieldClause("expand"), "clause", "expand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.val, tt.attr.Value)
		})
	}
}

func TestFieldsWithEmptyKeyAreIgnored(t *testing.T) {
	err := sieveerr.New(sieveerr.CodeStoreDatabaseFailure, "oops",
		sieveerr.Field("", "should-be-dropped"),
		sieveerr.FieldBranch("kept"),
	)
	fields := sieveerr.FieldsOf(err)
	assert.Equal(t, "kept", fields["branch"])
	assert.NotContains(t, fields, "")
}

func TestErrorIsWithWrappedChain(t *testing.T) {
	sentinel := stderrors.New("root cause")
	mid := fmt.Errorf("mid: %w", sentinel)
	outer := sieveerr.Wrap(mid, sieveerr.CodeServerInternalFailure, "handler")

	assert.ErrorIs(t, outer, sentinel)
}

// ---------------------------------------------------------------------------
// Classification helpers
// ---------------------------------------------------------------------------

func TestClassificationAndStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		code   sieveerr.Code
		status int
		check  func(error) bool
	}{
		{name: "entity not found", code: sieveerr.CodeStoreEntityNotFound, status: 404, check: sieveerr.IsNotFound},
		{name: "registry not found", code: sieveerr.CodeRegistryLookupNotFound, status: 404, check: sieveerr.IsNotFound},
		{name: "snapshot missing", code: sieveerr.CodeSnapshotCurrentNotFound, status: 404, check: sieveerr.IsNotFound},
		{name: "graph conflict", code: sieveerr.CodeGraphEntityConflict, status: 409, check: sieveerr.IsConflict},
		{name: "version conflict", code: sieveerr.CodeSnapshotVersionConflict, status: 409, check: sieveerr.IsConflict},
		{name: "malformed query", code: sieveerr.CodeQueryClauseInvalid, status: 422, check: sieveerr.IsInvalidInput},
		{name: "unknown field", code: sieveerr.CodeQueryFieldUnknown, status: 422, check: sieveerr.IsInvalidInput},
		{name: "unsupported operator", code: sieveerr.CodeQueryOperatorUnsupported, status: 422, check: sieveerr.IsInvalidInput},
		{name: "query decode", code: sieveerr.CodeQueryDecodeInvalidFormat, status: 422, check: sieveerr.IsInvalidInput},
		{name: "strict relation type", code: sieveerr.CodeExecRelationTypeUnknown, status: 422, check: sieveerr.IsInvalidInput},
		{name: "config value", code: sieveerr.CodeConfigValidateInvalidValue, status: 400, check: sieveerr.IsInvalidInput},
		{name: "request invalid", code: sieveerr.CodeServerRequestInvalid, status: 400, check: sieveerr.IsInvalidInput},
		{name: "timeout", code: sieveerr.CodeServerRequestTimeout, status: 504, check: sieveerr.IsTimeout},
		{name: "server not running", code: sieveerr.CodeCLIServerNotRunning, status: 503, check: sieveerr.IsUnavailable},
		{name: "not implemented", code: sieveerr.CodeServerNotImplemented, status: 501, check: func(_ error) bool { return true }},
		{name: "internal", code: sieveerr.CodeServerInternalFailure, status: 500, check: func(err error) bool { return !sieveerr.IsNotFound(err) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sieveerr.New(tt.code, "boom")
			assert.Equal(t, tt.status, sieveerr.HTTPStatus(err))
			assert.True(t, tt.check(err))
		})
	}
}

func TestClassificationNegativeCases(t *testing.T) {
	for _, err := range []error{
		nil,
		stderrors.New("plain"),
		sieveerr.New(sieveerr.CodeStoreDatabaseFailure, "db error"),
	} {
		assert.False(t, sieveerr.IsNotFound(err))
		assert.False(t, sieveerr.IsConflict(err))
		assert.False(t, sieveerr.IsInvalidInput(err))
		assert.False(t, sieveerr.IsTimeout(err))
		assert.False(t, sieveerr.IsUnavailable(err))
	}
}

func TestHTTPStatusPlainErrorReturnsInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, sieveerr.HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, sieveerr.HTTPStatus(stderrors.New("oops")))
}

func TestJoinCombinesErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")
	joined := sieveerr.Join(a, b)

	require.Error(t, joined)
	assert.ErrorIs(t, joined, a)
	assert.ErrorIs(t, joined, b)
	assert.Equal(t, sieveerr.CodeServerInternalFailure, sieveerr.CodeOf(joined))
}
