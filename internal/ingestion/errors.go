package ingestion

import "errors"

var (
	// ErrEmptyContent means extraction succeeded but produced no usable
	// text; the document terminates as failed without touching the
	// vector index.
	ErrEmptyContent = errors.New("extracted text is empty")

	// ErrPoolClosed is returned by Enqueue after Release.
	ErrPoolClosed = errors.New("ingestion pool is closed")
)
