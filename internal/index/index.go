// Package index provides read-only access to a pre-built document
// index stored as a SQLite database, plus the token dictionary built
// from it.
package index

// Index is the read-only view the retrieval core depends on. The
// concrete Store exposes more (postings access for the engine), but
// orchestration code is written against this interface.
type Index interface {
	// DocumentCount returns the number of documents in the collection.
	DocumentCount() (uint32, error)
	// DocumentLengthRange returns the lowest and highest internal
	// document IDs. IDs in between are dense.
	DocumentLengthRange() (minID, maxID uint32, err error)
	// DocumentLength returns the token count of one document.
	DocumentLength(internalID uint32) (uint32, error)
	// ExternalID maps an engine-internal document ID to the
	// collection-assigned stable identifier.
	ExternalID(internalID uint32) (string, error)
}

// Posting is one (document, term-frequency) pair from a posting list,
// ordered by internal document ID.
type Posting struct {
	InternalID uint32
	TF         uint32
}

// TermCount is one (token, frequency) pair from a single document,
// used for feedback-term extraction.
type TermCount struct {
	TokenID uint32
	TF      uint32
}
