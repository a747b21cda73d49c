// Package store defines the analysis record store contract: an append-only,
// idempotent history of completed analyses keyed by error id.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lumenstack/lumen-rca/internal/models"
)

// ErrNotFound signals that no record exists for the requested error id.
var ErrNotFound = errors.New("analysis not found")

// ErrBadPageToken signals a page token this store did not issue.
var ErrBadPageToken = errors.New("invalid page token")

// PageToken encodes the keyset boundary after one list page. The token
// carries the timestamp and the error id of the last returned record, so
// paging resumes correctly when records share a timestamp.
func PageToken(last models.AnalysisResult) string {
	return strconv.FormatInt(last.Timestamp.UnixNano(), 10) + ":" + last.ErrorID
}

// ParsePageToken decodes a token produced by PageToken.
func ParsePageToken(token string) (time.Time, string, error) {
	rawNanos, errorID, ok := strings.Cut(token, ":")
	if !ok {
		return time.Time{}, "", ErrBadPageToken
	}
	nanos, err := strconv.ParseInt(rawNanos, 10, 64)
	if err != nil {
		return time.Time{}, "", ErrBadPageToken
	}
	return time.Unix(0, nanos).UTC(), errorID, nil
}

// RecordStore persists completed analyses. Put is idempotent on ErrorID: a
// second Put with an id already present is a no-op and never overwrites the
// stored record. Implementations must support concurrent Puts for distinct
// ids without coordination.
type RecordStore interface {
	Put(ctx context.Context, result models.AnalysisResult) error
	Get(ctx context.Context, errorID string) (models.AnalysisResult, error)
	ListByFunction(ctx context.Context, req models.ListAnalysesRequest) (models.ListAnalysesResponse, error)
}
