// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/sigil-dev/sieve/internal/graph"
)

// Key identifies a cached result: the hash of the canonical query bytes, the
// explain flag and the snapshot ref, plus the ref itself for invalidation.
type Key struct {
	Hash    uint64
	Version int64
	Branch  string
}

// NewKey hashes every input that determines result content.
func NewKey(canonical []byte, explain bool, ref graph.Ref) Key {
	d := xxhash.New()
	_, _ = d.Write(canonical)
	var buf [9]byte
	if explain {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:], uint64(ref.Version))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(ref.Branch)
	return Key{Hash: d.Sum64(), Version: ref.Version, Branch: ref.Branch}
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%d/%016x", k.Branch, k.Version, k.Hash)
}

// Checksum is the content hash stored alongside every entry.
func Checksum(content []byte) uint64 {
	return xxhash.Sum64(content)
}
