package store

import (
	"context"
	"testing"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
)

func record(errorID, functionID string, at time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		ErrorID:         errorID,
		Timestamp:       at,
		FunctionID:      functionID,
		RequestID:       "req-" + errorID,
		Narrative:       "narrative " + errorID,
		ConfidenceScore: 0.5,
		ConfidenceLevel: models.ConfidenceMedium,
	}
}

func TestPutIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	first := record("err-1", "fn-a", now)
	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}

	dup := record("err-1", "fn-a", now)
	dup.Narrative = "a different narrative"
	if err := s.Put(ctx, dup); err != nil {
		t.Fatalf("duplicate put must be a no-op, got error: %v", err)
	}

	if s.Len() != 1 {
		t.Fatalf("expected exactly one record, got %d", s.Len())
	}
	got, err := s.Get(ctx, "err-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Narrative != first.Narrative {
		t.Fatalf("duplicate put overwrote the stored record: %q", got.Narrative)
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByFunctionOrderAndPaging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	for i := 0; i < 5; i++ {
		rec := record(string(rune('a'+i)), "fn-a", base.Add(time.Duration(i)*time.Minute))
		if err := s.Put(ctx, rec); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if err := s.Put(ctx, record("other", "fn-b", base)); err != nil {
		t.Fatalf("put: %v", err)
	}

	page1, err := s.ListByFunction(ctx, models.ListAnalysesRequest{FunctionID: "fn-a", PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1.Analyses) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page1.Analyses))
	}
	if page1.Analyses[0].ErrorID != "e" || page1.Analyses[1].ErrorID != "d" {
		t.Fatalf("expected most recent first, got %s, %s", page1.Analyses[0].ErrorID, page1.Analyses[1].ErrorID)
	}
	if page1.NextPageToken == "" {
		t.Fatalf("expected a next page token")
	}

	page2, err := s.ListByFunction(ctx, models.ListAnalysesRequest{FunctionID: "fn-a", PageSize: 2, PageToken: page1.NextPageToken})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2.Analyses) != 2 || page2.Analyses[0].ErrorID != "c" || page2.Analyses[1].ErrorID != "b" {
		t.Fatalf("unexpected second page: %+v", page2.Analyses)
	}

	page3, err := s.ListByFunction(ctx, models.ListAnalysesRequest{FunctionID: "fn-a", PageSize: 2, PageToken: page2.NextPageToken})
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page3.Analyses) != 1 || page3.Analyses[0].ErrorID != "a" {
		t.Fatalf("unexpected final page: %+v", page3.Analyses)
	}
	if page3.NextPageToken != "" {
		t.Fatalf("final page must not carry a token")
	}
}

func TestListByFunctionPagesThroughTimestampTies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Now()

	for _, id := range []string{"t1", "t2", "t3"} {
		if err := s.Put(ctx, record(id, "fn-a", at)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	seen := make(map[string]bool)
	token := ""
	for page := 0; page < 4; page++ {
		resp, err := s.ListByFunction(ctx, models.ListAnalysesRequest{FunctionID: "fn-a", PageSize: 1, PageToken: token})
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		for _, rec := range resp.Analyses {
			if seen[rec.ErrorID] {
				t.Fatalf("record %s returned twice", rec.ErrorID)
			}
			seen[rec.ErrorID] = true
		}
		if resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	if len(seen) != 3 {
		t.Fatalf("paging over equal timestamps skipped records: saw %d of 3", len(seen))
	}
}

func TestListByFunctionRejectsForeignToken(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ListByFunction(context.Background(), models.ListAnalysesRequest{FunctionID: "fn-a", PageToken: "not-a-token"})
	if err != ErrBadPageToken {
		t.Fatalf("expected ErrBadPageToken, got %v", err)
	}
}

func TestListByFunctionFiltersOtherFunctions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Put(ctx, record("x", "fn-a", time.Now())); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, err := s.ListByFunction(ctx, models.ListAnalysesRequest{FunctionID: "fn-b"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Analyses) != 0 {
		t.Fatalf("expected no results for fn-b, got %d", len(resp.Analyses))
	}
}
