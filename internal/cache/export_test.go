// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cache

// CorruptEntry flips a byte of the cached content for key without updating
// its checksum.
func CorruptEntry(c *Cache, key Key) bool {
	item := c.lru.Get(key.String())
	if item == nil || len(item.Value().content) == 0 {
		return false
	}
	item.Value().content[0] ^= 0xff
	return true
}
