// Package notion syncs pages from a Notion workspace. It talks to the
// Notion REST API directly and renders pages into plain text suitable for
// chunking.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiBase    = "https://api.notion.com"
	apiVersion = "2022-06-28"

	// Notion allows roughly 3 requests per second per integration.
	requestsPerSecond = 3

	pageSize = 100
)

// Client is a minimal Notion API client for one integration token.
// Requests are paced through a shared rate limiter so concurrent syncs stay
// under the API budget.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client for the given integration token. limiter may
// be shared between clients; nil creates a private one at the API default
// pace. A nil logger falls back to slog.Default.
func NewClient(token string, limiter *rate.Limiter, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		token:      token,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// Search returns every page the integration can see, following pagination
// to the end. Databases and other non-page results are skipped.
func (c *Client) Search(ctx context.Context) ([]Page, error) {
	var pages []Page
	cursor := ""

	for {
		req := searchRequest{
			Filter:      &searchFilter{Property: "object", Value: "page"},
			PageSize:    pageSize,
			StartCursor: cursor,
		}

		var resp searchResponse
		if err := c.do(ctx, http.MethodPost, "/v1/search", req, &resp); err != nil {
			return nil, fmt.Errorf("searching pages: %w", err)
		}

		for _, raw := range resp.Results {
			var objCheck struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(raw, &objCheck); err != nil || objCheck.Object != "page" {
				continue
			}
			var page Page
			if err := json.Unmarshal(raw, &page); err != nil {
				c.logger.Warn("unparseable search result", "error", err)
				continue
			}
			pages = append(pages, page)
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	c.logger.Debug("notion search completed", "pages", len(pages))
	return pages, nil
}

// BlockChildren returns the direct children of a block, following
// pagination. Nested children are fetched by the renderer, which owns the
// depth cap.
func (c *Client) BlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""

	for {
		path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", blockID, pageSize)
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}

		var resp blockChildrenResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("listing children of block %s: %w", blockID, err)
		}
		blocks = append(blocks, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}
	return blocks, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion API error (status %d): %s", resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshaling response: %w", err)
		}
	}
	return nil
}
