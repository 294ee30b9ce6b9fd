// Package vector defines the records exchanged with the vector index.
package vector

// Metadata is the payload stored alongside each chunk vector and
// returned with query matches.
type Metadata struct {
	DocumentID string
	Text       string
	Page       int
}

// Record is one chunk vector. ID is "{documentId}_{chunkIndex}", unique
// per (document, index); upserting the same ID overwrites.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a query result, scored by similarity. Tie-break order among
// equal scores is up to the index and must be treated as opaque.
type Match struct {
	Score    float32
	Metadata Metadata
}
