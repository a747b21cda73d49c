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
)

// LogLine is one ordered log line returned by the log store.
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// LogStoreClient queries the execution log store for a function's recent
// log lines. The store interleaves many concurrent invocations; callers
// bracket the returned superset by invocation markers.
type LogStoreClient struct {
	baseURL    string
	queryPath  string
	httpClient *http.Client
}

// NewLogStoreClient constructs a client targeting the configured log store.
func NewLogStoreClient(baseURL, queryPath string, timeout time.Duration) *LogStoreClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LogStoreClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		queryPath:  queryPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// QueryLines fetches log lines for a function within [start, end), in
// arrival order, capped at limit.
func (c *LogStoreClient) QueryLines(ctx context.Context, functionID string, start, end time.Time, limit int) ([]LogLine, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("log store base URL not configured")
	}

	payload := map[string]interface{}{
		"function_id": functionID,
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"limit":       limit,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal log query: %w", err)
	}

	endpoint := c.resolve(c.queryPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log store returned %s", resp.Status)
	}

	var response struct {
		Lines []LogLine `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode log response: %w", err)
	}
	return response.Lines, nil
}

func (c *LogStoreClient) resolve(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}
