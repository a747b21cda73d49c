package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
)

const defaultPageSize = 50

// MemoryStore is an in-process RecordStore used in tests and when no
// database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.AnalysisResult
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.AnalysisResult)}
}

// Put stores the result unless its ErrorID is already present.
func (s *MemoryStore) Put(ctx context.Context, result models.AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[result.ErrorID]; exists {
		return nil
	}
	s.records[result.ErrorID] = result
	return nil
}

// Get returns the record for errorID or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, errorID string) (models.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return models.AnalysisResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.records[errorID]
	if !ok {
		return models.AnalysisResult{}, ErrNotFound
	}
	return result, nil
}

// ListByFunction returns records for one function, most recent first (ties
// on the timestamp break on error id). Pages walk strictly backwards
// through the (timestamp, error id) keyset encoded in the page token.
func (s *MemoryStore) ListByFunction(ctx context.Context, req models.ListAnalysesRequest) (models.ListAnalysesResponse, error) {
	if err := ctx.Err(); err != nil {
		return models.ListAnalysesResponse{}, err
	}

	var (
		before   time.Time
		beforeID string
	)
	if req.PageToken != "" {
		parsed, id, err := ParsePageToken(req.PageToken)
		if err != nil {
			return models.ListAnalysesResponse{}, err
		}
		before, beforeID = parsed, id
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	s.mu.RLock()
	matched := make([]models.AnalysisResult, 0)
	for _, rec := range s.records {
		if rec.FunctionID != req.FunctionID {
			continue
		}
		if req.PageToken != "" && !beforeBoundary(rec, before, beforeID) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ErrorID > matched[j].ErrorID
	})

	resp := models.ListAnalysesResponse{}
	if len(matched) > pageSize {
		matched = matched[:pageSize]
		resp.NextPageToken = PageToken(matched[len(matched)-1])
	}
	resp.Analyses = matched
	return resp, nil
}

// beforeBoundary reports whether rec sorts strictly after the keyset
// boundary in the most-recent-first order.
func beforeBoundary(rec models.AnalysisResult, before time.Time, beforeID string) bool {
	if !rec.Timestamp.Equal(before) {
		return rec.Timestamp.Before(before)
	}
	return rec.ErrorID < beforeID
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
