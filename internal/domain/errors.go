package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound signals an operation against a collection that
	// was never created (or was dropped).
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists signals a duplicate collection creation.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrDuplicateDocument signals an insert with an already-used doc_id.
	ErrDuplicateDocument = errors.New("duplicate document id")
	// ErrConfigMismatch signals that the engine's MinHash parameters differ
	// from the ones the collection was created with.
	ErrConfigMismatch = errors.New("collection configuration mismatch")
)

// DuplicateDocumentError wraps ErrDuplicateDocument with the conflicting ID.
type DuplicateDocumentError struct {
	DocID int64
}

func (e *DuplicateDocumentError) Error() string {
	return fmt.Sprintf("%s: %d", ErrDuplicateDocument.Error(), e.DocID)
}

func (e *DuplicateDocumentError) Unwrap() error { return ErrDuplicateDocument }

// NewDuplicateDocument creates a duplicate document conflict error.
func NewDuplicateDocument(docID int64) error {
	return &DuplicateDocumentError{DocID: docID}
}
