package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DBFileName is the index database file inside the index directory.
const DBFileName = "index.db"

var requiredTables = []string{"documents", "terms", "postings"}

// Store is a read-only handle on an index database, opened once per
// process and safe for concurrent readers.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the index database under dir and validates its schema.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, DBFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index at %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting read-only mode: %w", err)
	}
	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid index at %s: missing table %q", path, table)
		}
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) DocumentCount() (uint32, error) {
	var n uint32
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (s *Store) DocumentLengthRange() (minID, maxID uint32, err error) {
	row := s.db.QueryRow("SELECT MIN(internal_id), MAX(internal_id) FROM documents")
	var lo, hi sql.NullInt64
	if err := row.Scan(&lo, &hi); err != nil {
		return 0, 0, fmt.Errorf("reading document id range: %w", err)
	}
	if !lo.Valid {
		return 0, 0, fmt.Errorf("index at %s contains no documents", s.path)
	}
	return uint32(lo.Int64), uint32(hi.Int64), nil
}

func (s *Store) DocumentLength(internalID uint32) (uint32, error) {
	var length uint32
	err := s.db.QueryRow(
		"SELECT length FROM documents WHERE internal_id = ?", internalID,
	).Scan(&length)
	if err != nil {
		return 0, fmt.Errorf("reading length of document %d: %w", internalID, err)
	}
	return length, nil
}

func (s *Store) ExternalID(internalID uint32) (string, error) {
	var ext string
	err := s.db.QueryRow(
		"SELECT external_id FROM documents WHERE internal_id = ?", internalID,
	).Scan(&ext)
	if err != nil {
		return "", fmt.Errorf("resolving external id of document %d: %w", internalID, err)
	}
	return ext, nil
}

// CollectionLength returns the total token count of the collection,
// the denominator of the background language model.
func (s *Store) CollectionLength() (uint64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRow("SELECT SUM(length) FROM documents").Scan(&total); err != nil {
		return 0, fmt.Errorf("reading collection length: %w", err)
	}
	return uint64(total.Int64), nil
}

// CollectionTF returns the collection-wide frequency of a token.
func (s *Store) CollectionTF(tokenID uint32) (uint64, error) {
	var tf uint64
	err := s.db.QueryRow(
		"SELECT collection_tf FROM terms WHERE token_id = ?", tokenID,
	).Scan(&tf)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection tf of token %d: %w", tokenID, err)
	}
	return tf, nil
}

// Postings returns the posting list of a token ordered by internal
// document ID. A token with no postings yields an empty list.
func (s *Store) Postings(tokenID uint32) ([]Posting, error) {
	rows, err := s.db.Query(
		"SELECT internal_id, tf FROM postings WHERE token_id = ? ORDER BY internal_id", tokenID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading postings of token %d: %w", tokenID, err)
	}
	defer rows.Close()
	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.InternalID, &p.TF); err != nil {
			return nil, fmt.Errorf("reading postings of token %d: %w", tokenID, err)
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading postings of token %d: %w", tokenID, err)
	}
	return postings, nil
}

// DocumentTerms returns the (token, frequency) pairs of one document,
// used to extract feedback terms from top-ranked documents.
func (s *Store) DocumentTerms(internalID uint32) ([]TermCount, error) {
	rows, err := s.db.Query(
		"SELECT token_id, tf FROM postings WHERE internal_id = ? ORDER BY token_id", internalID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading terms of document %d: %w", internalID, err)
	}
	defer rows.Close()
	var terms []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.TokenID, &tc.TF); err != nil {
			return nil, fmt.Errorf("reading terms of document %d: %w", internalID, err)
		}
		terms = append(terms, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading terms of document %d: %w", internalID, err)
	}
	return terms, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
