// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeQueryClauseInvalid        Code = "query.clause.invalid"
	CodeQueryOperatorUnsupported  Code = "query.operator.unsupported"
	CodeQueryFieldUnknown         Code = "query.field.unknown"
	CodeQueryDecodeInvalidFormat  Code = "query.decode.invalid_format"
	CodeQueryEncodeFailure        Code = "query.encode.failure"
	CodeExecSnapshotInvalid       Code = "exec.snapshot.invalid_input"
	CodeExecRelationTypeUnknown   Code = "exec.relation_type.unknown"
	CodeExecResultEncodeFailure   Code = "exec.result.encode.failure"
	CodeCacheEntryInconsistent    Code = "cache.entry.inconsistent"
	CodeCacheStoreFailure         Code = "cache.store.failure"
	CodeGraphEntityInvalid        Code = "graph.entity.invalid"
	CodeGraphEntityConflict       Code = "graph.entity.conflict"
	CodeGraphRelationInvalid      Code = "graph.relation.invalid"
	CodeGraphRelationConflict     Code = "graph.relation.conflict"
	CodeGraphEndpointNotFound     Code = "graph.relation.endpoint.not_found"
	CodeGraphEntityNotFound       Code = "graph.entity.not_found"
	CodeGraphRelationNotFound     Code = "graph.relation.not_found"
	CodeGraphFrozenConflict       Code = "graph.frozen.conflict"
	CodeGraphDecodeInvalidFormat  Code = "graph.decode.invalid_format"
	CodeSnapshotPublishInvalid    Code = "snapshot.publish.invalid"
	CodeSnapshotVersionConflict   Code = "snapshot.version.conflict"
	CodeSnapshotCurrentNotFound   Code = "snapshot.current.not_found"
	CodeRegistryRegisterInvalid   Code = "registry.register.invalid"
	CodeRegistryRegisterConflict  Code = "registry.register.conflict"
	CodeRegistryLookupNotFound    Code = "registry.lookup.not_found"

	CodeStoreEntityNotFound         Code = "store.entity.get.not_found"
	CodeStoreGraphNotFound          Code = "store.graph.load.not_found"
	CodeStoreDatabaseFailure        Code = "store.database.failure"
	CodeStoreBackendUnsupported     Code = "store.backend.unsupported"
	CodeStoreConflict               Code = "store.conflict"
	CodeStoreInvalidInput           Code = "store.invalid_input"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeServerRequestInvalid  Code = "server.request.invalid"
	CodeServerInternalFailure Code = "server.internal.failure"
	CodeServerConfigInvalid   Code = "server.config.invalid"
	CodeServerStartFailure    Code = "server.start.failure"
	CodeServerShutdownFailure Code = "server.shutdown.failure"
	CodeServerNotImplemented  Code = "server.method.not_implemented"
	CodeServerRequestTimeout  Code = "server.request.timeout"

	CodeCLIServerNotRunning Code = "cli.server.not_running"
	CodeCLIRequestFailure   Code = "cli.request.failure"
	CodeCLIResponseInvalid  Code = "cli.response.invalid"
	CodeCLISetupFailure     Code = "cli.setup.failure"
	CodeCLIInputInvalid     Code = "cli.input.invalid"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// FieldValue creates a structured error field.
func FieldValue(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// Field is kept as the primary helper for terse callsites.
func Field(key string, value any) Attr {
	return FieldValue(key, value)
}

func FieldEntityID(value string) Attr {
	return Field("entity_id", value)
}

func FieldRelationType(value string) Attr {
	return Field("relation_type", value)
}

func FieldBranch(value string) Attr {
	return Field("branch", value)
}

func FieldClause(value string) Attr {
	return Field("clause", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeServerInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

// IsInvalidInput reports whether the error was caused by caller input,
// including malformed queries and unknown fields or operators.
func IsInvalidInput(err error) bool {
	switch reason(CodeOf(err)) {
	case "invalid", "invalid_input", "invalid_value", "invalid_format", "unknown", "unsupported":
		return true
	}
	return false
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUnavailable(err error) bool {
	return reason(CodeOf(err)) == "not_running"
}

func HTTPStatus(err error) int {
	switch {
	case HasCode(err, CodeServerNotImplemented):
		return http.StatusNotImplemented
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	case IsInvalidInput(err):
		if strings.HasPrefix(string(CodeOf(err)), "query.") || strings.HasPrefix(string(CodeOf(err)), "exec.") {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case IsTimeout(err):
		return http.StatusGatewayTimeout
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func Join(errs ...error) error {
	return oops.Code(CodeServerInternalFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
