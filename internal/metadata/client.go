package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of one metadata fetch. NotReady means the
// server has not finished computing the requested metadata yet, which
// is distinct from an empty batch and from a transport failure.
type Result struct {
	NotReady bool
	Groups   []MetaGroup
}

// Client polls the metadata endpoint for pending track groups.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a client for the given metadata endpoint URL.
func NewClient(url string) *Client {
	return &Client{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP creates a client with a custom HTTP client.
func NewClientWithHTTP(url string, httpClient *http.Client) *Client {
	return &Client{url: url, client: httpClient}
}

// Fetch requests the metadata of all the given groups in one batched
// call. A 204 response yields a NotReady result.
func (c *Client) Fetch(ctx context.Context, ids []int64) (Result, error) {
	url := fmt.Sprintf("%s?ids=%s", c.url, joinIDs(ids))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return Result{NotReady: true}, nil
	case http.StatusOK:
	default:
		return Result{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read body: %w", err)
	}
	groups, err := DecodeMetaBatch(body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to decode metadata batch: %w", err)
	}
	return Result{Groups: groups}, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
