// Package index is the similarity-index client: it stores document
// signatures in the backing store and retrieves a refined, ranked candidate
// list for a query signature. The backend bucket layout (LSH banding over
// Redis sets) lives entirely behind this package; callers see only the
// usecase contract.
package index

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/neardup/internal/db"
	"github.com/kailas-cloud/neardup/internal/domain"
	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/domain/search/result"
	"github.com/kailas-cloud/neardup/internal/minhash"
)

// store is the consumer interface for index operations (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	SAddMulti(ctx context.Context, items []db.SetAddItem) error
	SMembersMulti(ctx context.Context, keys []string) ([][]string, error)
	Wait(ctx context.Context, replicas int, timeout time.Duration) error
}

// Params configures the index schema and flush barrier.
type Params struct {
	// NumPerm is the signature length; fixed per collection.
	NumPerm int
	// Bands is the LSH banding parameter; more bands raise recall and the
	// candidate count to refine. NumPerm must be divisible by Bands.
	Bands int
	// WaitReplicas/WaitTimeout parameterize the flush barrier.
	WaitReplicas int
	WaitTimeout  time.Duration
}

// Repo implements usecase/dedup.Index over the store.
type Repo struct {
	store      store
	prefix     string
	collection string
	params     Params
}

// New creates an index client for one collection.
func New(s store, prefix, collection string, p Params) (*Repo, error) {
	if p.NumPerm <= 0 {
		return nil, fmt.Errorf("num_perm must be positive, got %d", p.NumPerm)
	}
	if p.Bands <= 0 || p.NumPerm%p.Bands != 0 {
		return nil, fmt.Errorf("num_perm %d must be divisible by bands %d", p.NumPerm, p.Bands)
	}
	return &Repo{store: s, prefix: prefix, collection: collection, params: p}, nil
}

// CreateCollection writes the collection schema: its MinHash parameters.
// Signatures are only comparable under the same num_perm and hash family, so
// the parameters are pinned at creation and enforced on every insert/search.
func (r *Repo) CreateCollection(ctx context.Context) error {
	exists, err := r.store.Exists(ctx, r.metaKey())
	if err != nil {
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}
	if exists {
		return fmt.Errorf("create collection %s: %w", r.collection, domain.ErrCollectionExists)
	}

	fields := map[string]string{
		metaNumPerm: strconv.Itoa(r.params.NumPerm),
		metaBands:   strconv.Itoa(r.params.Bands),
	}
	if err := r.store.HSet(ctx, r.metaKey(), fields); err != nil {
		return fmt.Errorf("create collection %s: %w", r.collection, err)
	}
	return nil
}

// DropCollection removes the collection schema, all document rows, and all
// band buckets. Dropping an absent collection is a no-op.
func (r *Repo) DropCollection(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.collectionPattern())
	if err != nil {
		return fmt.Errorf("drop collection %s: %w", r.collection, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("drop collection %s: %w", r.collection, err)
	}
	return nil
}

// InsertDocuments bulk-loads documents. Every doc_id must be new; a
// duplicate is a conflict and nothing is written. Callers must Flush before
// searches are guaranteed to see the inserted rows.
func (r *Repo) InsertDocuments(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	// Uniqueness holds within the batch too; a repeated id would otherwise
	// collapse to one row while both signatures' band buckets point at it.
	seen := make(map[int64]struct{}, len(docs))
	for _, doc := range docs {
		if _, dup := seen[doc.ID()]; dup {
			return fmt.Errorf("insert %s: %w", r.collection, domain.NewDuplicateDocument(doc.ID()))
		}
		seen[doc.ID()] = struct{}{}
	}

	if err := r.checkMeta(ctx); err != nil {
		return fmt.Errorf("insert %s: %w", r.collection, err)
	}

	docKeys := make([]string, len(docs))
	for i, doc := range docs {
		docKeys[i] = r.docKey(doc.ID())
	}
	existing, err := r.store.ExistsMulti(ctx, docKeys)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.collection, err)
	}
	for i, exists := range existing {
		if exists {
			return fmt.Errorf("insert %s: %w", r.collection, domain.NewDuplicateDocument(docs[i].ID()))
		}
	}

	rows := make([]db.HashSetItem, len(docs))
	buckets := make(map[string][]string)
	for i, doc := range docs {
		rows[i] = db.HashSetItem{Key: docKeys[i], Fields: rowFields(doc)}
		id := strconv.FormatInt(doc.ID(), 10)
		for _, bandKey := range r.bandKeys(doc.MinHash()) {
			buckets[bandKey] = append(buckets[bandKey], id)
		}
	}

	if err := r.store.HSetMulti(ctx, rows); err != nil {
		return fmt.Errorf("insert %s: %w", r.collection, err)
	}

	adds := make([]db.SetAddItem, 0, len(buckets))
	for key, members := range buckets {
		adds = append(adds, db.SetAddItem{Key: key, Members: members})
	}
	if err := r.store.SAddMulti(ctx, adds); err != nil {
		return fmt.Errorf("insert %s: %w", r.collection, err)
	}
	return nil
}

// Flush is the durability/visibility barrier after InsertDocuments.
func (r *Repo) Flush(ctx context.Context) error {
	if err := r.store.Wait(ctx, r.params.WaitReplicas, r.params.WaitTimeout); err != nil {
		return fmt.Errorf("flush %s: %w", r.collection, err)
	}
	return nil
}

// Search returns up to topK candidates for the query signature, ranked by
// exact Jaccard similarity descending (ties stable in arrival order). The
// backend examines at most refineK approximate candidates before exact
// scoring; refineK below topK is raised to topK. topK <= 0 yields an empty
// result, as does an empty or absent corpus.
func (r *Repo) Search(ctx context.Context, query minhash.Signature, topK, refineK int) ([]result.Candidate, error) {
	if topK <= 0 {
		return nil, nil
	}
	if refineK < topK {
		refineK = topK
	}

	if err := r.checkMeta(ctx); err != nil {
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}
	if query.NumPerm() != r.params.NumPerm {
		return nil, fmt.Errorf("search %s: %w: query has %d permutations, collection has %d",
			r.collection, domain.ErrConfigMismatch, query.NumPerm(), r.params.NumPerm)
	}

	members, err := r.store.SMembersMulti(ctx, r.bandKeys(query))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}

	// Collect band collisions in arrival order, capped at refineK
	// candidates. The collision fraction feeds the approximate distance.
	order := make([]string, 0, refineK)
	collisions := make(map[string]int)
	for _, bucket := range members {
		for _, id := range bucket {
			if _, seen := collisions[id]; !seen {
				if len(order) >= refineK {
					continue
				}
				order = append(order, id)
			}
			collisions[id]++
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	docKeys := make([]string, len(order))
	for i, id := range order {
		docKeys[i] = r.prefix + r.collection + ":doc:" + id
	}
	rows, err := r.store.HGetAllMulti(ctx, docKeys)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.collection, err)
	}

	candidates := make([]result.Candidate, 0, len(rows))
	for i, fields := range rows {
		row, err := parseRow(order[i], fields)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", r.collection, err)
		}
		sim, err := minhash.Similarity(query, row.signature)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", r.collection, err)
		}
		distance := 1 - float64(collisions[order[i]])/float64(r.params.Bands)
		candidates = append(candidates, result.New(row.docID, row.docName, row.tokenSet, sim, distance))
	}

	result.SortBySimilarity(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// checkMeta verifies the collection exists and was created with the same
// MinHash parameters this client is configured with.
func (r *Repo) checkMeta(ctx context.Context) error {
	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return err
	}
	if len(meta) == 0 {
		return domain.ErrCollectionNotFound
	}

	numPerm, err := strconv.Atoi(meta[metaNumPerm])
	if err != nil {
		return fmt.Errorf("corrupt collection meta: %w", err)
	}
	bands, err := strconv.Atoi(meta[metaBands])
	if err != nil {
		return fmt.Errorf("corrupt collection meta: %w", err)
	}
	if numPerm != r.params.NumPerm || bands != r.params.Bands {
		return fmt.Errorf("%w: collection has num_perm=%d bands=%d, client has num_perm=%d bands=%d",
			domain.ErrConfigMismatch, numPerm, bands, r.params.NumPerm, r.params.Bands)
	}
	return nil
}
