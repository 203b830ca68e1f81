package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/ecoinvest/internal/domain/types"
)

// Client reads the ranking endpoints.
type Client struct {
	http *http.Client
	base string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		base: strings.TrimRight(baseURL, "/"),
	}
}

// States returns every state, best predicted first.
func (c *Client) States(ctx context.Context) ([]types.Region, error) {
	var out []types.Region
	if err := c.get(ctx, "/api/states", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopRegions returns the n best ranked states. n <= 0 uses the server default.
func (c *Client) TopRegions(ctx context.Context, n int) ([]types.Region, error) {
	var q url.Values
	if n > 0 {
		q = url.Values{"limit": {strconv.Itoa(n)}}
	}
	var out []types.Region
	if err := c.get(ctx, "/api/top_regions", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sectors returns the known sectors.
func (c *Client) Sectors(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.get(ctx, "/api/sectors", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		var p problem
		if json.Unmarshal(body, &p) == nil && p.Message != "" {
			return fmt.Errorf("%w: %s: %s", ErrRequest, p.Code, p.Message)
		}
		return fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}
