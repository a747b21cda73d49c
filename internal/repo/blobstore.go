package repo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// BlobStoreClient reads function source blobs and deployed artifacts from
// the content store.
type BlobStoreClient struct {
	baseURL      string
	sourcePath   string
	artifactPath string
	httpClient   *http.Client
}

// NewBlobStoreClient constructs a client targeting the configured blob store.
func NewBlobStoreClient(baseURL, sourcePath, artifactPath string, timeout time.Duration) *BlobStoreClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BlobStoreClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		sourcePath:   sourcePath,
		artifactPath: artifactPath,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// FetchSource reads the content-addressed source blob for a function. The
// optional version pins a specific deployment.
func (c *BlobStoreClient) FetchSource(ctx context.Context, functionID, version string) ([]byte, error) {
	endpoint := c.resolve(c.sourcePath, functionID)
	if version != "" {
		endpoint += "?version=" + url.QueryEscape(version)
	}
	return c.get(ctx, endpoint)
}

// FetchArtifact reads the deployed artifact package (a zip) for a function.
func (c *BlobStoreClient) FetchArtifact(ctx context.Context, functionID string) ([]byte, error) {
	return c.get(ctx, c.resolve(c.artifactPath, functionID))
}

func (c *BlobStoreClient) resolve(p, functionID string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned + "/" + url.PathEscape(functionID)
	}
	u.Path = path.Join(u.Path, cleaned, functionID)
	return u.String()
}

func (c *BlobStoreClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("blob store base URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob store returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob body: %w", err)
	}
	return body, nil
}
