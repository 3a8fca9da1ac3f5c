package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	tmerrors "tidemark/internal/errors"
	"tidemark/internal/model"
)

// SQLStore is an alternative Store backed by a pure-Go SQLite database
// (modernc.org/sqlite, no cgo), demonstrating that spec.md §4.8's Cache
// Store interface admits more than one implementation — FileStore's
// file-per-entry layout, or a single SQL database, at the caller's choice.
// Each put is a single upsert statement, which SQLite applies atomically,
// satisfying the same "readers never see a partial write" contract as
// FileStore's rename trick.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (creating if absent) a SQLite database at path and
// ensures its schema exists.
func NewSQLStore(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "creating cache directory for %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "opening cache database %s", path)
	}
	store := &SQLStore{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candidate_sets (
		key_digest TEXT PRIMARY KEY,
		candidates_json TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS anchor_selections (
		key_digest TEXT NOT NULL,
		tag_digest TEXT NOT NULL,
		target_id TEXT NOT NULL,
		selection_json TEXT NOT NULL,
		PRIMARY KEY (key_digest, tag_digest, target_id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "initializing cache schema")
	}
	return nil
}

func (s *SQLStore) GetCandidates(ctx context.Context, key Key) (CandidateSet, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT candidates_json FROM candidate_sets WHERE key_digest = ?`, key.Digest(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return CandidateSet{}, false, nil
	}
	if err != nil {
		return CandidateSet{}, false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "reading cached candidate set")
	}
	var candidates []model.ReleaseTag
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return CandidateSet{}, false, nil
	}
	return CandidateSet{Digest: TagDigest(candidates), Candidates: candidates}, true, nil
}

func (s *SQLStore) PutCandidates(ctx context.Context, key Key, set CandidateSet) error {
	raw, err := json.Marshal(set.Candidates)
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindInternalInvariant, err, "encoding candidate set")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidate_sets (key_digest, candidates_json) VALUES (?, ?)
		 ON CONFLICT(key_digest) DO UPDATE SET candidates_json = excluded.candidates_json`,
		key.Digest(), string(raw))
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "writing cached candidate set")
	}
	return nil
}

func (s *SQLStore) GetAnchor(ctx context.Context, key Key, tagDigest, targetID string) (model.AnchorSelection, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT selection_json FROM anchor_selections WHERE key_digest = ? AND tag_digest = ? AND target_id = ?`,
		key.Digest(), tagDigest, targetID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return model.AnchorSelection{}, false, nil
	}
	if err != nil {
		return model.AnchorSelection{}, false, tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "reading cached anchor selection")
	}
	var sel model.AnchorSelection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return model.AnchorSelection{}, false, nil
	}
	return sel, true, nil
}

func (s *SQLStore) PutAnchor(ctx context.Context, key Key, tagDigest, targetID string, sel model.AnchorSelection) error {
	raw, err := json.Marshal(sel)
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindInternalInvariant, err, "encoding anchor selection")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anchor_selections (key_digest, tag_digest, target_id, selection_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key_digest, tag_digest, target_id) DO UPDATE SET selection_json = excluded.selection_json`,
		key.Digest(), tagDigest, targetID, string(raw))
	if err != nil {
		return tmerrors.Wrap(tmerrors.KindRepositoryAccess, err, "writing cached anchor selection")
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
