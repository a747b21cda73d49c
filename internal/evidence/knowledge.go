package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lumenstack/lumen-rca/internal/models"
)

// DocSearcher is the backend required by the knowledge searcher.
type DocSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]models.KnowledgeDoc, error)
}

// KnowledgeSearcher queries the document index for documents matching an
// error signature.
type KnowledgeSearcher struct {
	logger *slog.Logger
	docs   DocSearcher
	topK   int
}

// NewKnowledgeSearcher constructs a searcher over the document index backend.
func NewKnowledgeSearcher(logger *slog.Logger, docs DocSearcher, topK int) *KnowledgeSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}
	return &KnowledgeSearcher{logger: logger, docs: docs, topK: topK}
}

// Fetch searches the index. An empty hit list is a successful result with
// no documents, not a failure.
func (s *KnowledgeSearcher) Fetch(ctx context.Context, query string) models.ToolCallResult {
	docs, err := s.docs.Search(ctx, query, s.topK)
	if err != nil {
		if timedOut(err) {
			return models.Failure(models.ToolSearchKnowledge, "knowledge search timed out")
		}
		s.logger.Debug("knowledge search failed", slog.String("query", query), slog.Any("error", err))
		return models.Failure(models.ToolSearchKnowledge, "knowledge base unavailable")
	}

	result := models.Success(models.ToolSearchKnowledge, renderDocs(docs), models.ResultMetadata{Path: models.PathPrimary})
	result.Docs = docs
	return result
}

// renderDocs flattens hits into the text form handed back to the reasoning
// model.
func renderDocs(docs []models.KnowledgeDoc) string {
	if len(docs) == 0 {
		return "no matching documents"
	}
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s (relevance %.2f)\n%s", i+1, doc.Title, doc.Relevance, doc.Snippet)
	}
	return b.String()
}
