package dedup

import (
	"context"

	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/domain/search/result"
	"github.com/kailas-cloud/neardup/internal/minhash"
)

// Index is the client contract over the approximate-search backend. The
// backend owns bucket layout and concurrent-write consistency; the engine
// only creates the schema, bulk-loads rows, flushes, and searches.
type Index interface {
	CreateCollection(ctx context.Context) error
	DropCollection(ctx context.Context) error
	InsertDocuments(ctx context.Context, docs []document.Document) error
	Flush(ctx context.Context) error
	Search(ctx context.Context, query minhash.Signature, topK, refineK int) ([]result.Candidate, error)
}
