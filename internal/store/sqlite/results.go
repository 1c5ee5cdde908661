// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Checksums are stored as the two's-complement int64 of the uint64 value;
// the driver rejects uint64 values with the high bit set.

func (s *Store) GetResult(ctx context.Context, key string) ([]byte, uint64, error) {
	var (
		content []byte
		sum     int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT content, checksum FROM cache_entries WHERE key = ?`, key).Scan(&content, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, store.ErrResultNotFound(key)
	}
	if err != nil {
		return nil, 0, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "getting cached result %s: %w", key, err)
	}
	return content, uint64(sum), nil
}

// PutResult upserts an entry; concurrent writers of one key are
// last-writer-wins.
func (s *Store) PutResult(ctx context.Context, key, branch string, version int64, content []byte, checksum uint64) error {
	const q = `INSERT INTO cache_entries (key, branch, version, content, checksum, created)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	content = excluded.content,
	checksum = excluded.checksum,
	created = excluded.created`

	_, err := s.db.ExecContext(ctx, q, key, branch, version, content, int64(checksum), formatTime(s.now()))
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "putting cached result %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteResult(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "deleting cached result %s: %w", key, err)
	}
	return nil
}

// DeleteResults drops every entry of branch not computed at keepVersion.
func (s *Store) DeleteResults(ctx context.Context, branch string, keepVersion int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE branch = ? AND version != ?`, branch, keepVersion)
	if err != nil {
		return 0, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "invalidating cached results of %s: %w", branch, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
