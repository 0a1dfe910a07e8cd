package dedup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/domain/search/result"
	"github.com/kailas-cloud/neardup/internal/minhash"
	"github.com/kailas-cloud/neardup/internal/tokenize"
)

type mockIndex struct {
	createCalls int
	dropCalls   int
	flushCalls  int
	inserted    [][]document.Document
	insertErr   error

	searchTopK    int
	searchRefineK int
	searchResult  []result.Candidate
	searchErr     error
}

func (m *mockIndex) CreateCollection(ctx context.Context) error {
	m.createCalls++
	return nil
}

func (m *mockIndex) DropCollection(ctx context.Context) error {
	m.dropCalls++
	return nil
}

func (m *mockIndex) InsertDocuments(ctx context.Context, docs []document.Document) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, docs)
	return nil
}

func (m *mockIndex) Flush(ctx context.Context) error {
	m.flushCalls++
	return nil
}

func (m *mockIndex) Search(
	ctx context.Context, query minhash.Signature, topK, refineK int,
) ([]result.Candidate, error) {
	m.searchTopK = topK
	m.searchRefineK = refineK
	return m.searchResult, m.searchErr
}

type mockConverter struct {
	text string
	err  error

	gotName string
}

func (m *mockConverter) Convert(ctx context.Context, name string, src io.Reader) (string, error) {
	m.gotName = name
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func newService(idx *mockIndex, conv *mockConverter) *Service {
	tok := tokenize.New(tokenize.BigramSegmenter{})
	gen := minhash.NewGenerator(32)
	if conv == nil {
		return New(idx, tok, gen, nil, zap.NewNop())
	}
	return New(idx, tok, gen, conv, zap.NewNop())
}

func TestBuildDocuments_PositionsPreserved(t *testing.T) {
	svc := newService(&mockIndex{}, nil)

	inputs := []DocumentInput{
		{ID: 1, Name: "a.md", Content: "first document body"},
		{ID: 2, Name: "b.md", Content: "second document body"},
		{ID: 3, Name: "c.md", Content: "third document body"},
	}
	docs, err := svc.BuildDocuments(context.Background(), inputs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(docs) != 3 {
		t.Fatalf("docs: got %d, want 3", len(docs))
	}
	for i, in := range inputs {
		if docs[i].ID() != in.ID || docs[i].Name() != in.Name {
			t.Errorf("position %d: got (%d, %s), want (%d, %s)",
				i, docs[i].ID(), docs[i].Name(), in.ID, in.Name)
		}
	}
}

func TestBuildDocuments_CancelledContext(t *testing.T) {
	svc := newService(&mockIndex{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inputs := make([]DocumentInput, 100)
	for i := range inputs {
		inputs[i] = DocumentInput{ID: int64(i), Name: "n", Content: "body"}
	}

	if _, err := svc.BuildDocuments(ctx, inputs); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestIngest_InsertsAndFlushes(t *testing.T) {
	idx := &mockIndex{}
	svc := newService(idx, nil)

	inputs := []DocumentInput{{ID: 1, Name: "a.md", Content: "some content"}}
	if err := svc.Ingest(context.Background(), inputs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idx.inserted) != 1 || len(idx.inserted[0]) != 1 {
		t.Fatalf("inserted batches: got %v", idx.inserted)
	}
	if idx.flushCalls != 1 {
		t.Errorf("flush calls: got %d, want 1", idx.flushCalls)
	}
}

func TestIngest_InsertErrorPropagates(t *testing.T) {
	idx := &mockIndex{insertErr: errors.New("conflict")}
	svc := newService(idx, nil)

	err := svc.Ingest(context.Background(), []DocumentInput{{ID: 1, Name: "a", Content: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if idx.flushCalls != 0 {
		t.Errorf("flush must not run after a failed insert, got %d calls", idx.flushCalls)
	}
}

func TestIngestSource_NoConverter(t *testing.T) {
	svc := newService(&mockIndex{}, nil)

	err := svc.IngestSource(context.Background(), 1, "doc.pdf", strings.NewReader("raw"))
	if !errors.Is(err, ErrNoConverter) {
		t.Fatalf("error: got %v, want ErrNoConverter", err)
	}
}

func TestIngestSource_ConvertsAndIngests(t *testing.T) {
	idx := &mockIndex{}
	conv := &mockConverter{text: "converted plain text"}
	svc := newService(idx, conv)

	err := svc.IngestSource(context.Background(), 7, "doc.pdf", strings.NewReader("raw"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if conv.gotName != "doc.pdf" {
		t.Errorf("converter name: got %q", conv.gotName)
	}
	if len(idx.inserted) != 1 || idx.inserted[0][0].ID() != 7 {
		t.Fatalf("inserted: got %v", idx.inserted)
	}
	if idx.inserted[0][0].TokenSet() != "converted plain text" {
		t.Errorf("token set: got %q", idx.inserted[0][0].TokenSet())
	}
}

func TestIngestSource_ConvertErrorPropagates(t *testing.T) {
	conv := &mockConverter{err: errors.New("converter down")}
	svc := newService(&mockIndex{}, conv)

	err := svc.IngestSource(context.Background(), 1, "doc.pdf", strings.NewReader("raw"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_DefaultBudgets(t *testing.T) {
	idx := &mockIndex{}
	svc := newService(idx, nil).WithSearchDefaults(5, 20)

	if _, err := svc.Search(context.Background(), "query text", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.searchTopK != 5 || idx.searchRefineK != 20 {
		t.Errorf("budgets: got topK=%d refineK=%d, want 5/20", idx.searchTopK, idx.searchRefineK)
	}
}

func TestSearch_ExplicitBudgetsWin(t *testing.T) {
	idx := &mockIndex{}
	svc := newService(idx, nil)

	if _, err := svc.Search(context.Background(), "query text", 7, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.searchTopK != 7 || idx.searchRefineK != 30 {
		t.Errorf("budgets: got topK=%d refineK=%d, want 7/30", idx.searchTopK, idx.searchRefineK)
	}
}

func TestSearch_ResortsCandidates(t *testing.T) {
	idx := &mockIndex{
		searchResult: []result.Candidate{
			result.New(1, "low", "", 0.1, 0.9),
			result.New(2, "high", "", 0.8, 0.2),
		},
	}
	svc := newService(idx, nil)

	got, err := svc.Search(context.Background(), "query", 3, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got[0].DocID() != 2 || got[1].DocID() != 1 {
		t.Errorf("order: got [%d, %d], want [2, 1]", got[0].DocID(), got[1].DocID())
	}
}

func TestSearch_IndexErrorPropagates(t *testing.T) {
	idx := &mockIndex{searchErr: errors.New("backend down")}
	svc := newService(idx, nil)

	if _, err := svc.Search(context.Background(), "query", 3, 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestFilter_StrictThresholdInputOrder(t *testing.T) {
	svc := newService(&mockIndex{}, nil)
	ctx := context.Background()

	query := "alpha beta gamma delta epsilon zeta eta theta"
	docs, err := svc.BuildDocuments(ctx, []DocumentInput{
		{ID: 1, Name: "same", Content: query},
		{ID: 2, Name: "far", Content: "unrelated words entirely different topic matter"},
		{ID: 3, Name: "also-same", Content: query},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	matched, err := svc.Filter(query, docs, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matched) != 2 {
		t.Fatalf("matched: got %d, want 2", len(matched))
	}
	if matched[0].ID() != 1 || matched[1].ID() != 3 {
		t.Errorf("order: got [%d, %d], want [1, 3]", matched[0].ID(), matched[1].ID())
	}
}

func TestCreateDropCollection_Delegate(t *testing.T) {
	idx := &mockIndex{}
	svc := newService(idx, nil)
	ctx := context.Background()

	if err := svc.CreateCollection(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.DropCollection(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}

	if idx.createCalls != 1 || idx.dropCalls != 1 {
		t.Errorf("calls: create=%d drop=%d, want 1/1", idx.createCalls, idx.dropCalls)
	}
}
