package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neardup/internal/domain"
	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/domain/search/result"
	"github.com/kailas-cloud/neardup/internal/minhash"
	"github.com/kailas-cloud/neardup/internal/tokenize"
	dedupuc "github.com/kailas-cloud/neardup/internal/usecase/dedup"
	healthuc "github.com/kailas-cloud/neardup/internal/usecase/health"
)

// fakeIndex is an in-memory Index for handler tests.
type fakeIndex struct {
	created    bool
	createErr  error
	insertErr  error
	searchErr  error
	docs       []document.Document
	candidates []result.Candidate
}

func (f *fakeIndex) CreateCollection(ctx context.Context) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = true
	return nil
}

func (f *fakeIndex) DropCollection(ctx context.Context) error {
	f.created = false
	f.docs = nil
	return nil
}

func (f *fakeIndex) InsertDocuments(ctx context.Context, docs []document.Document) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.docs = append(f.docs, docs...)
	return nil
}

func (f *fakeIndex) Flush(ctx context.Context) error { return nil }

func (f *fakeIndex) Search(
	ctx context.Context, query minhash.Signature, topK, refineK int,
) ([]result.Candidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.candidates, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestServer(t *testing.T, idx *fakeIndex, pinger *fakePinger) http.Handler {
	t.Helper()

	tok := tokenize.New(tokenize.BigramSegmenter{})
	gen := minhash.NewGenerator(32)
	dedupSvc := dedupuc.New(idx, tok, gen, nil, zap.NewNop())
	healthSvc := healthuc.New(pinger, nil)

	srv := NewServer(dedupSvc, healthSvc, zap.NewNop())
	r := chirouter.NewRouter()
	srv.Register(r)
	return r
}

func TestCreateCollection_Created(t *testing.T) {
	idx := &fakeIndex{}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("PUT", "/collections", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusCreated)
	}
	if !idx.created {
		t.Error("expected collection to be created")
	}
}

func TestCreateCollection_Conflict(t *testing.T) {
	idx := &fakeIndex{createErr: domain.ErrCollectionExists}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("PUT", "/collections", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != CodeCollectionExists {
		t.Errorf("error code: got %s, want %s", errResp.Code, CodeCollectionExists)
	}
}

func TestDropCollection_NoContent(t *testing.T) {
	idx := &fakeIndex{created: true}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("DELETE", "/collections", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if idx.created {
		t.Error("expected collection to be dropped")
	}
}

func TestIngestDocuments_OK(t *testing.T) {
	idx := &fakeIndex{}
	h := newTestServer(t, idx, &fakePinger{})

	body := `{"documents":[{"id":1,"name":"a.md","content":"hello world"},{"id":2,"name":"b.md","content":"second doc"}]}`
	req := httptest.NewRequest("POST", "/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp IngestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Inserted != 2 {
		t.Errorf("inserted: got %d, want 2", resp.Inserted)
	}
	if len(idx.docs) != 2 {
		t.Errorf("stored docs: got %d, want 2", len(idx.docs))
	}
}

func TestIngestDocuments_EmptyBatch_400(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	req := httptest.NewRequest("POST", "/documents", strings.NewReader(`{"documents":[]}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngestDocuments_DuplicateID_409(t *testing.T) {
	idx := &fakeIndex{insertErr: domain.NewDuplicateDocument(7)}
	h := newTestServer(t, idx, &fakePinger{})

	body := `{"documents":[{"id":7,"name":"dup.md","content":"text"}]}`
	req := httptest.NewRequest("POST", "/documents", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["code"] != CodeDuplicateDocument {
		t.Errorf("error code: got %v, want %s", resp["code"], CodeDuplicateDocument)
	}
	if resp["doc_id"] != float64(7) {
		t.Errorf("doc_id: got %v, want 7", resp["doc_id"])
	}
}

func TestIngestDocuments_InvalidBody_400(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	req := httptest.NewRequest("POST", "/documents", strings.NewReader(`not json`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestIngestSource_NoConverter_501(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	req := httptest.NewRequest("POST", "/documents/convert?id=1&name=report.pdf", strings.NewReader("raw"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotImplemented)
	}
}

func TestIngestSource_MissingParams_400(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	for _, target := range []string{"/documents/convert", "/documents/convert?id=abc&name=x"} {
		req := httptest.NewRequest("POST", target, strings.NewReader("raw"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want %d", target, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestSearch_RankedResults(t *testing.T) {
	idx := &fakeIndex{
		candidates: []result.Candidate{
			result.New(2, "b.md", "tokens b", 0.4, 0.5),
			result.New(1, "a.md", "tokens a", 0.9, 0.1),
		},
	}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"content":"query text","top_k":3}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("total: got %d, want 2", resp.Total)
	}
	// Service re-sorts by similarity descending.
	if resp.Items[0].DocID != 1 || resp.Items[1].DocID != 2 {
		t.Errorf("order: got [%d, %d], want [1, 2]", resp.Items[0].DocID, resp.Items[1].DocID)
	}
}

func TestSearch_CollectionNotFound_404(t *testing.T) {
	idx := &fakeIndex{searchErr: domain.ErrCollectionNotFound}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"content":"q"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSearch_NegativeTopK_400(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"content":"q","top_k":-1}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearch_InternalError_500(t *testing.T) {
	idx := &fakeIndex{searchErr: errors.New("backend down")}
	h := newTestServer(t, idx, &fakePinger{})

	req := httptest.NewRequest("POST", "/search", strings.NewReader(`{"content":"q"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Message != "internal error" {
		t.Errorf("message: got %q, want %q (internals must not leak)", errResp.Message, "internal error")
	}
}

func TestFilter_ThresholdApplied(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	body := `{
		"query": "the quick brown fox jumps over the lazy dog",
		"threshold": 0.5,
		"documents": [
			{"id":1,"name":"same.md","content":"the quick brown fox jumps over the lazy dog"},
			{"id":2,"name":"other.md","content":"completely unrelated words about databases"}
		]
	}`
	req := httptest.NewRequest("POST", "/filter", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp FilterResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total: got %d, want 1", resp.Total)
	}
	if resp.Items[0].DocID != 1 {
		t.Errorf("doc_id: got %d, want 1", resp.Items[0].DocID)
	}
	if resp.Items[0].Similarity <= 0.5 {
		t.Errorf("similarity: got %f, want > 0.5", resp.Items[0].Similarity)
	}
}

func TestFilter_InvalidThreshold_400(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	body := `{"query":"q","threshold":1.5,"documents":[{"id":1,"name":"a","content":"x"}]}`
	req := httptest.NewRequest("POST", "/filter", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealthCheck_OK(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{})

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status: got %s, want ok", resp.Status)
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check: got %s, want ok", resp.Checks["database"])
	}
}

func TestHealthCheck_Degraded_503(t *testing.T) {
	h := newTestServer(t, &fakeIndex{}, &fakePinger{err: errors.New("connection refused")})

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
