package index

import (
	"fmt"
)

// Dictionary is the in-memory token-id to term mapping, loaded once
// from the index's terms table and shared read-only for the whole run.
type Dictionary struct {
	id2term map[uint32]string
	term2id map[string]uint32
}

// NewDictionary loads the full dictionary from the store.
func NewDictionary(s *Store) (*Dictionary, error) {
	rows, err := s.db.Query("SELECT token_id, term FROM terms")
	if err != nil {
		return nil, fmt.Errorf("loading dictionary: %w", err)
	}
	defer rows.Close()
	d := &Dictionary{
		id2term: make(map[uint32]string),
		term2id: make(map[string]uint32),
	}
	for rows.Next() {
		var id uint32
		var term string
		if err := rows.Scan(&id, &term); err != nil {
			return nil, fmt.Errorf("loading dictionary: %w", err)
		}
		d.id2term[id] = term
		d.term2id[term] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading dictionary: %w", err)
	}
	return d, nil
}

// DictionaryFromPairs builds a dictionary from explicit pairs, used by
// tests.
func DictionaryFromPairs(pairs map[uint32]string) *Dictionary {
	d := &Dictionary{
		id2term: make(map[uint32]string, len(pairs)),
		term2id: make(map[string]uint32, len(pairs)),
	}
	for id, term := range pairs {
		d.id2term[id] = term
		d.term2id[term] = id
	}
	return d
}

// Lookup resolves a token ID to its term surface string.
func (d *Dictionary) Lookup(tokenID uint32) (string, bool) {
	term, ok := d.id2term[tokenID]
	return term, ok
}

// TokenID resolves a term to its token ID.
func (d *Dictionary) TokenID(term string) (uint32, bool) {
	id, ok := d.term2id[term]
	return id, ok
}

// Size returns the number of dictionary entries.
func (d *Dictionary) Size() int {
	return len(d.id2term)
}
