// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package registry maps capability names to implementations. Entries are
// validated when registered so lookups never hand out a half-configured value.
package registry

import (
	"maps"
	"reflect"
	"regexp"
	"slices"
	"sync"

	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

var nameSyntax = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

// Validator inspects an implementation before it is accepted.
type Validator[T any] func(name string, impl T) error

// Registry is safe for concurrent use.
type Registry[T any] struct {
	kind       string
	validators []Validator[T]

	mu      sync.RWMutex
	entries map[string]T
}

// New returns an empty registry. kind names the capability in errors.
func New[T any](kind string, validators ...Validator[T]) *Registry[T] {
	return &Registry[T]{
		kind:       kind,
		validators: validators,
		entries:    make(map[string]T),
	}
}

// Register adds impl under name. Names are lowercase identifiers and may be
// registered once.
func (r *Registry[T]) Register(name string, impl T) error {
	if !nameSyntax.MatchString(name) {
		return sieveerr.New(sieveerr.CodeRegistryRegisterInvalid, "invalid "+r.kind+" name",
			sieveerr.Field("kind", r.kind), sieveerr.Field("name", name))
	}
	if isNil(impl) {
		return sieveerr.New(sieveerr.CodeRegistryRegisterInvalid, r.kind+" implementation is nil",
			sieveerr.Field("kind", r.kind), sieveerr.Field("name", name))
	}
	for _, validate := range r.validators {
		if err := validate(name, impl); err != nil {
			return sieveerr.Wrap(err, sieveerr.CodeRegistryRegisterInvalid, r.kind+" rejected",
				sieveerr.Field("kind", r.kind), sieveerr.Field("name", name))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return sieveerr.New(sieveerr.CodeRegistryRegisterConflict, r.kind+" already registered",
			sieveerr.Field("kind", r.kind), sieveerr.Field("name", name))
	}
	r.entries[name] = impl
	return nil
}

// MustRegister is Register for init-time wiring.
func (r *Registry[T]) MustRegister(name string, impl T) {
	if err := r.Register(name, impl); err != nil {
		panic(err)
	}
}

func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	impl, ok := r.entries[name]
	if !ok {
		var zero T
		return zero, sieveerr.New(sieveerr.CodeRegistryLookupNotFound, r.kind+" not found: "+name,
			sieveerr.Field("kind", r.kind), sieveerr.Field("name", name),
			sieveerr.Field("available", slices.Sorted(maps.Keys(r.entries))))
	}
	return impl, nil
}

// Names lists registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.entries))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
