package recommend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Path is the endpoint sectors are posted to.
const Path = "/recommendations_by_sector"

const maxResponseBody = 4 << 20

// Response is a raw server reply.
type Response struct {
	Status int
	Body   []byte
}

// Submitter sends one sector and returns the raw reply.
type Submitter interface {
	Submit(ctx context.Context, sector string) (Response, error)
}

// HTTPSubmitter posts the sector as a form-encoded body.
type HTTPSubmitter struct {
	client   *http.Client
	endpoint string
}

// SubmitterOption configures an HTTPSubmitter.
type SubmitterOption func(*HTTPSubmitter)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SubmitterOption {
	return func(s *HTTPSubmitter) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout sets the client timeout. Zero disables it.
func WithTimeout(d time.Duration) SubmitterOption {
	return func(s *HTTPSubmitter) {
		if d >= 0 {
			s.client.Timeout = d
		}
	}
}

// NewHTTPSubmitter creates a submitter for the server at baseURL.
func NewHTTPSubmitter(baseURL string, opts ...SubmitterOption) *HTTPSubmitter {
	s := &HTTPSubmitter{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: strings.TrimRight(baseURL, "/") + Path,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the full URL posted to.
func (s *HTTPSubmitter) Endpoint() string { return s.endpoint }

// Submit posts sector=<value>. The value is sent as given.
func (s *HTTPSubmitter) Submit(ctx context.Context, sector string) (Response, error) {
	form := url.Values{"sector": {sector}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Response{}, fmt.Errorf("%w: read body: %w", ErrRequest, err)
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}
