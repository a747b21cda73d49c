package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumenstack/lumen-rca/internal/cache"
	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/store"
	"github.com/lumenstack/lumen-rca/internal/utils"
)

type fakeAnalyzer struct {
	calls   int
	result  models.AnalysisResult
	err     error
	records *store.MemoryStore
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, event models.FailureEvent) (models.AnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return models.AnalysisResult{}, f.err
	}
	result := f.result
	result.FunctionID = event.FunctionID
	result.RequestID = event.RequestID
	if f.records != nil {
		if err := f.records.Put(ctx, result); err != nil {
			return models.AnalysisResult{}, err
		}
	}
	return result, nil
}

type memCache struct {
	data     map[string][]byte
	nxWrites int
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.nxWrites++
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memCache) Close() error { return nil }

func eventBody() string {
	return `{"function_id":"fn-1","request_id":"R1","error_type":"KeyError","error_message":"'email'"}`
}

func do(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestPostEventAnalyzesAndAcks(t *testing.T) {
	records := store.NewMemoryStore()
	analyzer := &fakeAnalyzer{
		result: models.AnalysisResult{
			ErrorID:         "err-1",
			Timestamp:       time.Now(),
			Narrative:       "missing email field",
			ConfidenceScore: 0.85,
			ConfidenceLevel: models.ConfidenceVeryHigh,
		},
		records: records,
	}
	handler := NewHandler(nil, analyzer, records, newMemCache(), nil, time.Minute)

	rec := do(t, handler, http.MethodPost, "/api/v1/events", eventBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ErrorID != "err-1" || result.ConfidenceLevel != models.ConfidenceVeryHigh {
		t.Fatalf("unexpected result: %+v", result)
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected one analysis, got %d", analyzer.calls)
	}
}

func TestPostEventDeduplicates(t *testing.T) {
	records := store.NewMemoryStore()
	analyzer := &fakeAnalyzer{result: models.AnalysisResult{ErrorID: "err-1"}, records: records}
	guard := newMemCache()
	handler := NewHandler(nil, analyzer, records, guard, nil, time.Minute)

	first := do(t, handler, http.MethodPost, "/api/v1/events", eventBody())
	if first.Code != http.StatusOK {
		t.Fatalf("first post: expected 200, got %d", first.Code)
	}
	if guard.nxWrites != 1 {
		t.Fatalf("expected one first-writer dedupe mark, got %d", guard.nxWrites)
	}

	second := do(t, handler, http.MethodPost, "/api/v1/events", eventBody())
	if second.Code != http.StatusOK {
		t.Fatalf("second post: expected 200, got %d", second.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(second.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["duplicate"] != true {
		t.Fatalf("expected duplicate marker, got %v", payload)
	}
	if analyzer.calls != 1 {
		t.Fatalf("duplicate delivery must not re-run the analysis, got %d calls", analyzer.calls)
	}
}

func TestPostEventRejectsBadPayload(t *testing.T) {
	handler := NewHandler(nil, &fakeAnalyzer{}, store.NewMemoryStore(), nil, nil, time.Minute)

	if rec := do(t, handler, http.MethodPost, "/api/v1/events", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/v1/events", `{"error_type":"KeyError"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing identifiers, got %d", rec.Code)
	}
}

func TestPostEventFaultTriggersRedelivery(t *testing.T) {
	analyzer := &fakeAnalyzer{err: utils.NewStorageFault("put", "persist analysis", context.DeadlineExceeded)}
	handler := NewHandler(nil, analyzer, store.NewMemoryStore(), nil, nil, time.Minute)

	rec := do(t, handler, http.MethodPost, "/api/v1/events", eventBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("fatal faults must map to 503 for redelivery, got %d", rec.Code)
	}
}

func TestGetAnalysis(t *testing.T) {
	records := store.NewMemoryStore()
	stored := models.AnalysisResult{ErrorID: "err-9", Timestamp: time.Now(), FunctionID: "fn-1", Narrative: "diagnosis"}
	if err := records.Put(context.Background(), stored); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	handler := NewHandler(nil, &fakeAnalyzer{}, records, nil, nil, time.Minute)

	rec := do(t, handler, http.MethodGet, "/api/v1/analyses/err-9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Narrative != "diagnosis" {
		t.Fatalf("unexpected narrative: %q", result.Narrative)
	}

	if rec := do(t, handler, http.MethodGet, "/api/v1/analyses/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListAnalyses(t *testing.T) {
	records := store.NewMemoryStore()
	base := time.Now()
	for i, id := range []string{"e1", "e2", "e3"} {
		rec := models.AnalysisResult{ErrorID: id, FunctionID: "fn-1", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := records.Put(context.Background(), rec); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	handler := NewHandler(nil, &fakeAnalyzer{}, records, nil, nil, time.Minute)

	if rec := do(t, handler, http.MethodGet, "/api/v1/analyses", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without function_id, got %d", rec.Code)
	}

	rec := do(t, handler, http.MethodGet, "/api/v1/analyses?function_id=fn-1&page_size=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp models.ListAnalysesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Analyses) != 2 || resp.Analyses[0].ErrorID != "e3" {
		t.Fatalf("unexpected page: %+v", resp.Analyses)
	}
	if resp.NextPageToken == "" {
		t.Fatalf("expected next page token")
	}
}

func TestListPatterns(t *testing.T) {
	records := store.NewMemoryStore()
	base := time.Now()
	for i := 0; i < 4; i++ {
		errType := "KeyError"
		if i == 3 {
			errType = "Timeout"
		}
		rec := models.AnalysisResult{
			ErrorID:         "e" + string(rune('0'+i)),
			FunctionID:      "fn-1",
			ErrorType:       errType,
			ConfidenceScore: 0.8,
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
		}
		if err := records.Put(context.Background(), rec); err != nil {
			t.Fatalf("seed store: %v", err)
		}
	}
	handler := NewHandler(nil, &fakeAnalyzer{}, records, nil, nil, time.Minute)

	rec := do(t, handler, http.MethodGet, "/api/v1/patterns?function_id=fn-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Patterns []models.FailurePattern `json:"patterns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(payload.Patterns))
	}
	if payload.Patterns[0].ErrorType != "KeyError" || payload.Patterns[0].Occurrences != 3 {
		t.Fatalf("unexpected dominant pattern: %+v", payload.Patterns[0])
	}
}

func TestHealth(t *testing.T) {
	handler := NewHandler(nil, &fakeAnalyzer{}, store.NewMemoryStore(), nil, nil, time.Minute)

	rec := do(t, handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ok") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
