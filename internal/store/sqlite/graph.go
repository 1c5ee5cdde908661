// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/sieve/internal/graph"
	"github.com/sigil-dev/sieve/internal/store"
	sieveerr "github.com/sigil-dev/sieve/pkg/errors"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by SQLite. Each saved graph version
// owns its entity and relation rows; seq columns preserve insertion order so
// a loaded index iterates exactly like the one that was saved.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) a SQLite database at dbPath and migrates the
// graph and result tables.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "migrating tables: %w", err)
	}

	return &Store{db: db, logger: slog.Default(), now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS graphs (
	branch    TEXT NOT NULL,
	version   INTEGER NOT NULL,
	entities  INTEGER NOT NULL,
	relations INTEGER NOT NULL,
	saved     TEXT NOT NULL,
	PRIMARY KEY (branch, version)
);

CREATE TABLE IF NOT EXISTS entities (
	branch     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	attributes TEXT,
	metadata   TEXT,
	PRIMARY KEY (branch, version, id),
	FOREIGN KEY (branch, version) REFERENCES graphs(branch, version) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS relations (
	branch     TEXT NOT NULL,
	version    INTEGER NOT NULL,
	seq        INTEGER NOT NULL,
	id         TEXT NOT NULL,
	from_id    TEXT NOT NULL,
	to_id      TEXT NOT NULL,
	type       TEXT NOT NULL,
	attributes TEXT,
	PRIMARY KEY (branch, version, id),
	FOREIGN KEY (branch, version) REFERENCES graphs(branch, version) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entities_seq ON entities(branch, version, seq);
CREATE INDEX IF NOT EXISTS idx_relations_seq ON relations(branch, version, seq);

CREATE TABLE IF NOT EXISTS cache_entries (
	key      TEXT PRIMARY KEY,
	branch   TEXT NOT NULL,
	version  INTEGER NOT NULL,
	content  BLOB NOT NULL,
	checksum INTEGER NOT NULL,
	created  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_branch ON cache_entries(branch, version);
`
	_, err := db.Exec(ddl)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGraph writes doc as version ref in one transaction.
func (s *Store) SaveGraph(ctx context.Context, ref graph.Ref, doc *graph.Document) (store.GraphInfo, error) {
	prepared, err := store.PrepareDocument(ref, doc)
	if err != nil {
		return store.GraphInfo{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.GraphInfo{}, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM graphs WHERE branch = ? AND version = ?`, ref.Branch, ref.Version).Scan(&exists)
	switch {
	case err == nil:
		return store.GraphInfo{}, store.ErrGraphExists(ref)
	case !errors.Is(err, sql.ErrNoRows):
		return store.GraphInfo{}, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "checking graph %s: %w", ref, err)
	}

	info := store.GraphInfo{
		Ref:       ref,
		Entities:  len(prepared.Entities),
		Relations: len(prepared.Relations),
		SavedAt:   s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs (branch, version, entities, relations, saved) VALUES (?, ?, ?, ?, ?)`,
		ref.Branch, ref.Version, info.Entities, info.Relations, formatTime(info.SavedAt)); err != nil {
		return store.GraphInfo{}, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "inserting graph %s: %w", ref, err)
	}

	if err := insertEntities(ctx, tx, ref, prepared.Entities); err != nil {
		return store.GraphInfo{}, err
	}
	if err := insertRelations(ctx, tx, ref, prepared.Relations); err != nil {
		return store.GraphInfo{}, err
	}

	if err := tx.Commit(); err != nil {
		return store.GraphInfo{}, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "committing graph %s: %w", ref, err)
	}
	s.logger.Debug("graph saved",
		slog.String("branch", ref.Branch),
		slog.Int64("version", ref.Version),
		slog.Int("entities", info.Entities),
		slog.Int("relations", info.Relations))
	return info, nil
}

func insertEntities(ctx context.Context, tx *sql.Tx, ref graph.Ref, entities []graph.Entity) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entities (branch, version, seq, id, type, attributes, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "preparing entity insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for seq, e := range entities {
		attrs, err := marshalNullable(e.Attributes)
		if err != nil {
			return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "marshalling attributes of %s: %w", e.ID, err)
		}
		var meta sql.NullString
		if e.Metadata != nil {
			if meta, err = marshalNullable(e.Metadata); err != nil {
				return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "marshalling metadata of %s: %w", e.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, ref.Branch, ref.Version, seq, e.ID, e.Type, attrs, meta); err != nil {
			return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "putting entity %s: %w", e.ID, err)
		}
	}
	return nil
}

func insertRelations(ctx context.Context, tx *sql.Tx, ref graph.Ref, relations []graph.Relation) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO relations (branch, version, seq, id, from_id, to_id, type, attributes) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "preparing relation insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for seq, r := range relations {
		attrs, err := marshalNullable(r.Attributes)
		if err != nil {
			return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "marshalling attributes of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, ref.Branch, ref.Version, seq, r.ID, r.From, r.To, r.Type, attrs); err != nil {
			return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "putting relation %s: %w", r.ID, err)
		}
	}
	return nil
}

// LoadGraph loads the highest saved version of branch.
func (s *Store) LoadGraph(ctx context.Context, branch string) (*graph.Memory, graph.Ref, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM graphs WHERE branch = ?`, branch).Scan(&latest); err != nil {
		return nil, graph.Ref{}, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "finding latest version of %s: %w", branch, err)
	}
	if !latest.Valid {
		return nil, graph.Ref{}, store.ErrGraphNotFound(graph.Ref{Branch: branch})
	}

	ref := graph.Ref{Branch: branch, Version: latest.Int64}
	idx, err := s.LoadVersion(ctx, ref)
	return idx, ref, err
}

// LoadVersion rebuilds the index saved as ref.
func (s *Store) LoadVersion(ctx context.Context, ref graph.Ref) (*graph.Memory, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM graphs WHERE branch = ? AND version = ?`, ref.Branch, ref.Version).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrGraphNotFound(ref)
	}
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "looking up graph %s: %w", ref, err)
	}

	doc := &graph.Document{}
	if doc.Entities, err = s.loadEntities(ctx, ref); err != nil {
		return nil, err
	}
	if doc.Relations, err = s.loadRelations(ctx, ref); err != nil {
		return nil, err
	}

	idx, err := doc.Build()
	if err != nil {
		return nil, sieveerr.New(sieveerr.CodeStoreDatabaseFailure, "rebuilding stored graph: "+err.Error(),
			sieveerr.FieldBranch(ref.Branch), sieveerr.Field("version", ref.Version))
	}
	return idx, nil
}

func (s *Store) loadEntities(ctx context.Context, ref graph.Ref) ([]graph.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, attributes, metadata FROM entities WHERE branch = ? AND version = ? ORDER BY seq`,
		ref.Branch, ref.Version)
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "loading entities of %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Entity
	for rows.Next() {
		var (
			e           graph.Entity
			attrs, meta sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Type, &attrs, &meta); err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "scanning entity: %w", err)
		}
		if attrs.Valid {
			if err := unmarshalJSON(attrs.String, &e.Attributes); err != nil {
				return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "decoding attributes of %s: %w", e.ID, err)
			}
		}
		if meta.Valid {
			e.Metadata = &graph.Metadata{}
			if err := unmarshalJSON(meta.String, e.Metadata); err != nil {
				s.logger.Warn("dropping unreadable entity metadata",
					slog.String("entity_id", e.ID),
					slog.String("branch", ref.Branch),
					slog.String("error", err.Error()))
				e.Metadata = nil
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "iterating entities: %w", err)
	}
	return out, nil
}

func (s *Store) loadRelations(ctx context.Context, ref graph.Ref) ([]graph.Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, type, attributes FROM relations WHERE branch = ? AND version = ? ORDER BY seq`,
		ref.Branch, ref.Version)
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "loading relations of %s: %w", ref, err)
	}
	defer func() { _ = rows.Close() }()

	var out []graph.Relation
	for rows.Next() {
		var (
			r     graph.Relation
			attrs sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.Type, &attrs); err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "scanning relation: %w", err)
		}
		if attrs.Valid {
			if err := unmarshalJSON(attrs.String, &r.Attributes); err != nil {
				return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "decoding attributes of %s: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "iterating relations: %w", err)
	}
	return out, nil
}

// ListGraphs returns saved versions ordered by branch, then version.
func (s *Store) ListGraphs(ctx context.Context, branch string) ([]store.GraphInfo, error) {
	q := `SELECT branch, version, entities, relations, saved FROM graphs`
	var args []any
	if branch != "" {
		q += ` WHERE branch = ?`
		args = append(args, branch)
	}
	q += ` ORDER BY branch, version`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "listing graphs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []store.GraphInfo{}
	for rows.Next() {
		var (
			info  store.GraphInfo
			saved string
		)
		if err := rows.Scan(&info.Ref.Branch, &info.Ref.Version, &info.Entities, &info.Relations, &saved); err != nil {
			return nil, sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "scanning graph row: %w", err)
		}
		info.SavedAt = parseTime(saved)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteGraph removes a saved version together with its rows.
func (s *Store) DeleteGraph(ctx context.Context, ref graph.Ref) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE branch = ? AND version = ?`, ref.Branch, ref.Version)
	if err != nil {
		return sieveerr.Errorf(sieveerr.CodeStoreDatabaseFailure, "deleting graph %s: %w", ref, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrGraphNotFound(ref)
	}
	return nil
}

func marshalNullable(v any) (sql.NullString, error) {
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalJSON(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}

// formatTime serialises a time.Time to RFC3339 with nanosecond precision.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserialises a time string stored in the database.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
