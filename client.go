// Package neardup is the embedded client for the near-duplicate detection
// engine: fingerprint documents with MinHash, load them into a Redis-backed
// similarity index, and answer ranked similarity queries without running the
// HTTP server.
package neardup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neardup/internal/convert"
	"github.com/kailas-cloud/neardup/internal/db"
	dbRedis "github.com/kailas-cloud/neardup/internal/db/redis"
	"github.com/kailas-cloud/neardup/internal/minhash"
	indexrepo "github.com/kailas-cloud/neardup/internal/repository/index"
	"github.com/kailas-cloud/neardup/internal/tokenize"
	dedupuc "github.com/kailas-cloud/neardup/internal/usecase/dedup"
)

const defaultReadinessTimeout = 10 * time.Second

// Document is one raw input document.
type Document struct {
	ID      int64
	Name    string
	Content string
}

// Match is one ranked similarity hit.
type Match struct {
	DocID      int64
	DocName    string
	TokenSet   string
	Similarity float64
	Distance   float64
}

// Client is the neardup SDK entry point.
type Client struct {
	store db.Store
	svc   *dedupuc.Service
}

// New creates a neardup Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:  "neardup:",
		collection: "documents",
		numPerm:    128,
		bands:      16,
		segmenter:  tokenize.BigramSegmenter{},
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("neardup: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("neardup: create redis store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("neardup: database not ready: %w", err)
	}

	client, err := wireClient(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return client, nil
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	indexRepo, err := indexrepo.New(store, cfg.keyPrefix, cfg.collection, indexrepo.Params{
		NumPerm:     cfg.numPerm,
		Bands:       cfg.bands,
		WaitTimeout: defaultReadinessTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("neardup: create index client: %w", err)
	}

	tokenizer := tokenize.New(cfg.segmenter)
	generator := minhash.NewGenerator(cfg.numPerm)

	svc := dedupuc.New(indexRepo, tokenizer, generator, cfg.converter, cfg.logger)
	if cfg.topK > 0 || cfg.refineK > 0 {
		svc = svc.WithSearchDefaults(cfg.topK, cfg.refineK)
	}

	return &Client{store: store, svc: svc}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// CreateCollection provisions the collection schema. Creating an existing
// collection is a conflict.
func (c *Client) CreateCollection(ctx context.Context) error {
	return c.svc.CreateCollection(ctx)
}

// DropCollection removes the collection and every stored document. Dropping
// an absent collection is a no-op.
func (c *Client) DropCollection(ctx context.Context) error {
	return c.svc.DropCollection(ctx)
}

// Ingest fingerprints and loads documents, then flushes so subsequent
// searches see them. Every document ID must be new.
func (c *Client) Ingest(ctx context.Context, docs []Document) error {
	inputs := make([]dedupuc.DocumentInput, len(docs))
	for i, d := range docs {
		inputs[i] = dedupuc.DocumentInput{ID: d.ID, Name: d.Name, Content: d.Content}
	}
	return c.svc.Ingest(ctx, inputs)
}

// IngestSource converts a binary source via the configured converter and
// ingests the resulting text as one document. Requires WithConverter.
func (c *Client) IngestSource(ctx context.Context, id int64, name string, src io.Reader) error {
	return c.svc.IngestSource(ctx, id, name, src)
}

// Search returns up to topK stored documents most similar to content, ranked
// by exact Jaccard similarity descending. Zero topK/refineK use the client
// defaults.
func (c *Client) Search(ctx context.Context, content string, topK, refineK int) ([]Match, error) {
	candidates, err := c.svc.Search(ctx, content, topK, refineK)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(candidates))
	for i := range candidates {
		matches[i] = Match{
			DocID:      candidates[i].DocID(),
			DocName:    candidates[i].DocName(),
			TokenSet:   candidates[i].TokenSet(),
			Similarity: candidates[i].Similarity(),
			Distance:   candidates[i].Distance(),
		}
	}
	return matches, nil
}

// Filter compares caller-supplied documents against query locally, with no
// index involved, and returns those whose similarity strictly exceeds
// threshold, in input order.
func (c *Client) Filter(ctx context.Context, query string, docs []Document, threshold float64) ([]Match, error) {
	inputs := make([]dedupuc.DocumentInput, len(docs))
	for i, d := range docs {
		inputs[i] = dedupuc.DocumentInput{ID: d.ID, Name: d.Name, Content: d.Content}
	}

	built, err := c.svc.BuildDocuments(ctx, inputs)
	if err != nil {
		return nil, err
	}

	querySig := c.svc.SignText(query)
	var matches []Match
	for i := range built {
		sim, err := minhash.Similarity(querySig, built[i].MinHash())
		if err != nil {
			return nil, err
		}
		if sim > threshold {
			matches = append(matches, Match{
				DocID:      built[i].ID(),
				DocName:    built[i].Name(),
				TokenSet:   built[i].TokenSet(),
				Similarity: sim,
			})
		}
	}
	return matches, nil
}

// NewConverter creates an HTTP document-converter client for WithConverter.
func NewConverter(baseURL string, timeout time.Duration) *convert.HTTPConverter {
	return convert.NewHTTPConverter(baseURL, timeout)
}
