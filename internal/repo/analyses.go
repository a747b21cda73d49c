package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/store"
)

const listDefaultPageSize = 50

// AnalysisRepo is the Postgres-backed analysis record store. Records are
// immutable: inserts conflict-skip on error_id and nothing ever updates a
// stored row.
type AnalysisRepo struct {
	pool *pgxpool.Pool
}

// NewAnalysisRepo wraps an open pool.
func NewAnalysisRepo(pool *pgxpool.Pool) *AnalysisRepo {
	return &AnalysisRepo{pool: pool}
}

// EnsureSchema creates the analyses table and indexes if absent.
func (r *AnalysisRepo) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS analyses (
			error_id TEXT PRIMARY KEY,
			function_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			error_type TEXT NOT NULL DEFAULT '',
			narrative TEXT NOT NULL DEFAULT '',
			confidence_score DOUBLE PRECISION NOT NULL,
			confidence_level TEXT NOT NULL,
			evidence JSONB NOT NULL DEFAULT '{}',
			steps INT NOT NULL DEFAULT 0,
			duration_millis BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)
		`,
		`CREATE INDEX IF NOT EXISTS analyses_function_id_idx ON analyses(function_id, created_at DESC, error_id DESC)`,
		`CREATE INDEX IF NOT EXISTS analyses_request_id_idx ON analyses(request_id)`,
	}
	for _, query := range queries {
		if _, err := r.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("ensure analyses schema: %w", err)
		}
	}
	return nil
}

// Put inserts the result, skipping silently when the error_id already
// exists. The existing record is never touched.
func (r *AnalysisRepo) Put(ctx context.Context, result models.AnalysisResult) error {
	evidence, err := json.Marshal(result.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}

	query := `
		INSERT INTO analyses (
			error_id, function_id, request_id, error_type, narrative,
			confidence_score, confidence_level, evidence, steps,
			duration_millis, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)
		ON CONFLICT (error_id) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query,
		result.ErrorID,
		result.FunctionID,
		result.RequestID,
		result.ErrorType,
		result.Narrative,
		result.ConfidenceScore,
		string(result.ConfidenceLevel),
		evidence,
		result.Steps,
		result.DurationMillis,
		result.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// Get returns the record for errorID, or store.ErrNotFound.
func (r *AnalysisRepo) Get(ctx context.Context, errorID string) (models.AnalysisResult, error) {
	query := `
		SELECT error_id, function_id, request_id, error_type, narrative,
			confidence_score, confidence_level, evidence, steps,
			duration_millis, created_at
		FROM analyses
		WHERE error_id = $1
	`
	result, err := scanAnalysis(r.pool.QueryRow(ctx, query, errorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AnalysisResult{}, store.ErrNotFound
		}
		return models.AnalysisResult{}, fmt.Errorf("get analysis: %w", err)
	}
	return result, nil
}

// ListByFunction pages through a function's history, most recent first.
// The keyset is (created_at, error_id) so pages resume correctly across
// records sharing a timestamp; tokens come from store.PageToken.
func (r *AnalysisRepo) ListByFunction(ctx context.Context, req models.ListAnalysesRequest) (models.ListAnalysesResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = listDefaultPageSize
	}

	query := `
		SELECT error_id, function_id, request_id, error_type, narrative,
			confidence_score, confidence_level, evidence, steps,
			duration_millis, created_at
		FROM analyses
		WHERE function_id = $1
	`
	args := []interface{}{req.FunctionID}
	if req.PageToken != "" {
		before, beforeID, err := store.ParsePageToken(req.PageToken)
		if err != nil {
			return models.ListAnalysesResponse{}, fmt.Errorf("parse page token: %w", err)
		}
		query += ` AND (created_at, error_id) < ($2, $3)`
		args = append(args, before, beforeID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, error_id DESC LIMIT %d`, pageSize+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return models.ListAnalysesResponse{}, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	analyses := make([]models.AnalysisResult, 0, pageSize)
	for rows.Next() {
		result, err := scanAnalysis(rows)
		if err != nil {
			return models.ListAnalysesResponse{}, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, result)
	}
	if err := rows.Err(); err != nil {
		return models.ListAnalysesResponse{}, fmt.Errorf("list analyses: %w", err)
	}

	resp := models.ListAnalysesResponse{}
	if len(analyses) > pageSize {
		analyses = analyses[:pageSize]
		resp.NextPageToken = store.PageToken(analyses[len(analyses)-1])
	}
	resp.Analyses = analyses
	return resp, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (models.AnalysisResult, error) {
	var (
		result   models.AnalysisResult
		level    string
		evidence []byte
	)
	err := row.Scan(
		&result.ErrorID,
		&result.FunctionID,
		&result.RequestID,
		&result.ErrorType,
		&result.Narrative,
		&result.ConfidenceScore,
		&level,
		&evidence,
		&result.Steps,
		&result.DurationMillis,
		&result.Timestamp,
	)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	result.ConfidenceLevel = models.ConfidenceLevel(level)
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &result.Evidence); err != nil {
			return models.AnalysisResult{}, fmt.Errorf("unmarshal evidence: %w", err)
		}
	}
	return result, nil
}
