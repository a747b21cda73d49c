package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/lumenstack/lumen-rca/internal/models"
)

// BlobReader is the backend required by the source retriever.
type BlobReader interface {
	FetchSource(ctx context.Context, functionID, version string) ([]byte, error)
	FetchArtifact(ctx context.Context, functionID string) ([]byte, error)
}

// SourceRetriever fetches the implementation text of a failing function.
// Retrieval strategies are tried in order until one yields a non-empty
// payload; adding a retrieval path means appending a strategy.
type SourceRetriever struct {
	logger     *slog.Logger
	maxBytes   int
	strategies []sourceStrategy
}

type sourceStrategy struct {
	path  models.RetrievalPath
	fetch func(ctx context.Context, functionID, version string) ([]byte, error)
}

// NewSourceRetriever constructs a retriever over the blob store backend.
func NewSourceRetriever(logger *slog.Logger, blobs BlobReader, maxBytes int) *SourceRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 32 * 1024
	}
	return &SourceRetriever{
		logger:   logger,
		maxBytes: maxBytes,
		strategies: []sourceStrategy{
			{
				path: models.PathPrimary,
				fetch: func(ctx context.Context, functionID, version string) ([]byte, error) {
					return blobs.FetchSource(ctx, functionID, version)
				},
			},
			{
				path: models.PathFallback,
				fetch: func(ctx context.Context, functionID, version string) ([]byte, error) {
					artifact, err := blobs.FetchArtifact(ctx, functionID)
					if err != nil {
						return nil, err
					}
					return extractPrimarySource(artifact)
				},
			},
		},
	}
}

// Fetch attempts each strategy in order and returns the first non-empty
// payload, truncated to the configured maximum.
func (r *SourceRetriever) Fetch(ctx context.Context, functionID, version string) models.ToolCallResult {
	for _, strategy := range r.strategies {
		raw, err := strategy.fetch(ctx, functionID, version)
		if err != nil {
			if timedOut(err) {
				r.logger.Debug("source retrieval timed out",
					slog.String("function_id", functionID), slog.String("path", string(strategy.path)))
			} else {
				r.logger.Debug("source retrieval failed",
					slog.String("function_id", functionID), slog.String("path", string(strategy.path)), slog.Any("error", err))
			}
			continue
		}
		if len(raw) == 0 {
			continue
		}

		md := models.ResultMetadata{Path: strategy.path, Bytes: len(raw)}
		payload := raw
		if len(payload) > r.maxBytes {
			payload = payload[:r.maxBytes]
			md.Truncated = true
		}
		return models.Success(models.ToolFetchSource, string(payload), md)
	}
	return models.Failure(models.ToolFetchSource, "source unavailable")
}

// sourceExtensions ranks file extensions considered function source, most
// likely handler language first.
var sourceExtensions = []string{".py", ".js", ".mjs", ".ts", ".go", ".rb", ".java"}

// handlerNames are conventional entrypoint stems checked before falling
// back to the largest source file in the package.
var handlerNames = map[string]bool{
	"handler":         true,
	"lambda_function": true,
	"main":            true,
	"index":           true,
	"app":             true,
}

// extractPrimarySource unpacks a deployed artifact zip in memory and picks
// the entrypoint source file.
func extractPrimarySource(artifact []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}

	candidates := make([]*zip.File, 0, len(reader.File))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(file.Name))
		for _, known := range sourceExtensions {
			if ext == known {
				candidates = append(candidates, file)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("artifact contains no source files")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		iHandler := isHandlerFile(candidates[i].Name)
		jHandler := isHandlerFile(candidates[j].Name)
		if iHandler != jHandler {
			return iHandler
		}
		return candidates[i].UncompressedSize64 > candidates[j].UncompressedSize64
	})

	rc, err := candidates[0].Open()
	if err != nil {
		return nil, fmt.Errorf("open artifact entry: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact entry: %w", err)
	}
	return content, nil
}

func isHandlerFile(name string) bool {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	return handlerNames[strings.ToLower(stem)]
}
