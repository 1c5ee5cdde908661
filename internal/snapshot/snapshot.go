// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package snapshot tracks the current graph snapshot per branch. State
// changes are pure transitions that return the next state together with the
// notifications they imply; Holder applies them and delivers the
// notifications to observers and channel subscribers.
package snapshot

import (
	"maps"
	"slices"

	"github.com/sigil-dev/sieve/internal/graph"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Kind identifies a notification.
type Kind string

const (
	KindPublished  Kind = "snapshot.published"
	KindSuperseded Kind = "snapshot.superseded"
)

// Notification reports a state change for one branch.
type Notification struct {
	Kind     Kind      `json:"kind"`
	Ref      graph.Ref `json:"ref"`
	Entities int       `json:"entities,omitempty"`
	// Previous is the version a published snapshot replaced, zero when the
	// branch is new.
	Previous int64 `json:"previous,omitempty"`
}

// State maps branches to their current snapshot. The zero value is empty and
// ready to use. A State is never modified; transitions return a new one.
type State struct {
	current map[string]*graph.Snapshot
}

func (s State) Current(branch string) (*graph.Snapshot, bool) {
	snap, ok := s.current[branch]
	return snap, ok
}

// Branches lists known branches in sorted order.
func (s State) Branches() []string {
	return slices.Sorted(maps.Keys(s.current))
}

// Publish makes next the current snapshot of its branch. Versions must
// strictly increase per branch.
func Publish(s State, next *graph.Snapshot) (State, []Notification, error) {
	if next == nil || next.Index() == nil {
		return s, nil, sieveerr.New(sieveerr.CodeSnapshotPublishInvalid, "snapshot is required")
	}
	ref := next.Ref()
	if ref.Branch == "" {
		return s, nil, sieveerr.New(sieveerr.CodeSnapshotPublishInvalid, "snapshot branch is required")
	}

	var notes []Notification
	prev, exists := s.current[ref.Branch]
	if exists {
		if ref.Version <= prev.Ref().Version {
			return s, nil, sieveerr.New(sieveerr.CodeSnapshotVersionConflict, "snapshot version must increase",
				sieveerr.FieldBranch(ref.Branch),
				sieveerr.Field("current", prev.Ref().Version),
				sieveerr.Field("version", ref.Version))
		}
		notes = append(notes, Notification{Kind: KindSuperseded, Ref: prev.Ref()})
	}

	published := Notification{Kind: KindPublished, Ref: ref, Entities: len(next.Index().EntitiesByType(""))}
	if exists {
		published.Previous = prev.Ref().Version
	}
	notes = append(notes, published)

	out := State{current: make(map[string]*graph.Snapshot, len(s.current)+1)}
	maps.Copy(out.current, s.current)
	out.current[ref.Branch] = next
	return out, notes, nil
}
