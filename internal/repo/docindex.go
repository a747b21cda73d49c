package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lumenstack/lumen-rca/internal/cache"
	"github.com/lumenstack/lumen-rca/internal/models"
)

// DocIndexClient queries the knowledge document index with free-text error
// signatures. Responses are cached by signature hash: identical failures
// tend to arrive in bursts.
type DocIndexClient struct {
	baseURL    string
	searchPath string
	apiKey     string
	httpClient *http.Client
	cache      cache.Provider
	cacheTTL   time.Duration
}

// NewDocIndexClient constructs a document index client.
func NewDocIndexClient(baseURL, searchPath, apiKey string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *DocIndexClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if cacheTTL < 0 {
		cacheTTL = 0
	}
	return &DocIndexClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		searchPath: searchPath,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		cacheTTL:   cacheTTL,
	}
}

// Search returns up to topK ranked snippets for the query. Zero matches is
// a valid, empty result.
func (c *DocIndexClient) Search(ctx context.Context, query string, topK int) ([]models.KnowledgeDoc, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("document index base URL not configured")
	}
	if topK <= 0 {
		topK = 3
	}

	// Cache errors degrade to a live query; only a hit short-circuits.
	cacheKey := cache.KnowledgeKey(fmt.Sprintf("%s#%d", query, topK))
	if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
		var docs []models.KnowledgeDoc
		if json.Unmarshal(cached, &docs) == nil {
			return docs, nil
		}
	}

	payload := map[string]interface{}{
		"query": query,
		"top_k": topK,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(c.searchPath), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("document index returned %s", resp.Status)
	}

	var response struct {
		Hits []struct {
			ID        string  `json:"id"`
			Title     string  `json:"title"`
			Snippet   string  `json:"snippet"`
			Relevance float64 `json:"relevance"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]models.KnowledgeDoc, 0, len(response.Hits))
	for _, hit := range response.Hits {
		docs = append(docs, models.KnowledgeDoc{
			ID:        hit.ID,
			Title:     hit.Title,
			Snippet:   hit.Snippet,
			Relevance: hit.Relevance,
		})
	}
	if len(docs) > topK {
		docs = docs[:topK]
	}

	if encoded, err := json.Marshal(docs); err == nil {
		_ = c.cache.Set(ctx, cacheKey, encoded, c.cacheTTL)
	}
	return docs, nil
}

func (c *DocIndexClient) resolve(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
