// Package dedup orchestrates near-duplicate detection: it builds documents
// from text (or from binary sources via the conversion collaborator),
// bulk-loads them into the similarity index, and answers ranked similarity
// queries.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/neardup/internal/convert"
	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/domain/search/result"
	"github.com/kailas-cloud/neardup/internal/metrics"
	"github.com/kailas-cloud/neardup/internal/minhash"
	"github.com/kailas-cloud/neardup/internal/tokenize"
)

// ErrNoConverter signals an ingest-by-source call on a service configured
// without a document converter.
var ErrNoConverter = errors.New("no converter configured")

// DocumentInput is one raw document to fingerprint.
type DocumentInput struct {
	ID      int64
	Name    string
	Content string
}

// Service composes the tokenizer, signature generator, Jaccard calculator,
// and index client.
type Service struct {
	index     Index
	tokenizer *tokenize.Tokenizer
	generator *minhash.Generator
	calc      *minhash.Calculator
	converter convert.Converter
	logger    *zap.Logger

	topK         int
	refineK      int
	buildWorkers int
}

// New creates a dedup service. converter may be nil, which disables
// ingestion from binary sources.
func New(
	index Index,
	tokenizer *tokenize.Tokenizer,
	generator *minhash.Generator,
	converter convert.Converter,
	logger *zap.Logger,
) *Service {
	return &Service{
		index:        index,
		tokenizer:    tokenizer,
		generator:    generator,
		calc:         minhash.NewCalculator(tokenizer, generator),
		converter:    converter,
		logger:       logger,
		topK:         3,
		refineK:      6,
		buildWorkers: 8,
	}
}

// WithSearchDefaults overrides the default top_k / refine_k budgets.
func (s *Service) WithSearchDefaults(topK, refineK int) *Service {
	if topK > 0 {
		s.topK = topK
	}
	if refineK > 0 {
		s.refineK = refineK
	}
	return s
}

// CreateCollection provisions the index schema.
func (s *Service) CreateCollection(ctx context.Context) error {
	if err := s.index.CreateCollection(ctx); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("collection created")
	return nil
}

// DropCollection removes the index and all stored documents.
func (s *Service) DropCollection(ctx context.Context) error {
	if err := s.index.DropCollection(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.logger.Info("collection dropped")
	return nil
}

// BuildDocuments fingerprints inputs in parallel. Building is pure and
// CPU-bound, so documents are fanned out one per worker and collected by
// position; inter-document order carries no meaning.
func (s *Service) BuildDocuments(ctx context.Context, inputs []DocumentInput) ([]document.Document, error) {
	docs := make([]document.Document, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.buildWorkers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs[i] = document.FromText(s.tokenizer, s.generator, in.ID, in.Name, in.Content)
			metrics.DocumentsSigned.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build documents: %w", err)
	}

	s.logger.Debug("documents built", zap.Int("count", len(docs)))
	return docs, nil
}

// Ingest fingerprints and bulk-loads inputs, then flushes so subsequent
// searches see them.
func (s *Service) Ingest(ctx context.Context, inputs []DocumentInput) error {
	docs, err := s.BuildDocuments(ctx, inputs)
	if err != nil {
		return err
	}
	if err := s.index.InsertDocuments(ctx, docs); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	if err := s.index.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	s.logger.Info("documents ingested", zap.Int("count", len(docs)))
	return nil
}

// IngestSource converts a binary source via the external converter and
// ingests the resulting text as one document.
func (s *Service) IngestSource(ctx context.Context, id int64, name string, src io.Reader) error {
	if s.converter == nil {
		return fmt.Errorf("ingest source %s: %w", name, ErrNoConverter)
	}
	text, err := s.converter.Convert(ctx, name, src)
	if err != nil {
		return fmt.Errorf("ingest source: %w", err)
	}
	return s.Ingest(ctx, []DocumentInput{{ID: id, Name: name, Content: text}})
}

// Search fingerprints the query text and returns the topK most similar
// documents, ranked by exact Jaccard similarity descending. Zero topK or
// refineK fall back to the service defaults; topK < 0 returns nothing.
func (s *Service) Search(ctx context.Context, content string, topK, refineK int) ([]result.Candidate, error) {
	if topK == 0 {
		topK = s.topK
	}
	if refineK == 0 {
		refineK = s.refineK
	}

	tokens := s.tokenizer.Tokenize(content)
	query := s.generator.Sign(tokens)
	metrics.TokensPerDocument.Observe(float64(len(tokens)))

	candidates, err := s.index.Search(ctx, query, topK, refineK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	// The backend's ordering is not canonical; re-sort before returning.
	result.SortBySimilarity(candidates)
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	s.logger.Info("search completed",
		zap.Int("query_tokens", len(tokens)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// SignText tokenizes and signs text under the service's configuration.
func (s *Service) SignText(text string) minhash.Signature {
	return s.calc.SignText(text)
}

// Filter is the exact-verification path: it returns the documents whose
// similarity to queryText strictly exceeds threshold, in input order.
func (s *Service) Filter(queryText string, docs []document.Document, threshold float64) ([]document.Document, error) {
	matched, err := minhash.FilterBySimilarity(s.calc, queryText, docs, threshold)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return matched, nil
}
