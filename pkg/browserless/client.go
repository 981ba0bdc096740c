// Package browserless provides a client for the Browserless headless
// Chrome rendering API.
package browserless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://production-sfo.browserless.io"

// Client performs render operations against the Browserless API.
type Client interface {
	// Content renders a URL in a real browser and returns the final HTML.
	Content(ctx context.Context, req ContentRequest) (*ContentResponse, error)
	// Screenshot captures a PNG of the rendered page.
	Screenshot(ctx context.Context, req ContentRequest) ([]byte, error)
}

// GotoOptions controls page navigation.
type GotoOptions struct {
	WaitUntil string `json:"waitUntil,omitempty"` // e.g. "networkidle2"
	TimeoutMS int    `json:"timeout,omitempty"`
}

// Viewport sets the emulated browser window size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContentRequest is the request body for POST /content.
type ContentRequest struct {
	URL         string      `json:"url"`
	GotoOptions GotoOptions `json:"gotoOptions,omitzero"`
	UserAgent   string      `json:"userAgent,omitempty"`
	Viewport    *Viewport   `json:"viewport,omitempty"`
	// BestAttempt asks Browserless to return whatever loaded instead of
	// failing the whole render on a flaky subresource.
	BestAttempt bool `json:"bestAttempt,omitempty"`
}

// ContentResponse holds the rendered page.
type ContentResponse struct {
	HTML string
	// FinalURL is the post-redirect location when Browserless reports it,
	// otherwise the requested URL.
	FinalURL string
}

// APIError is a non-2xx response from the Browserless API. The body carries
// the Chromium network error string (net::ERR_NAME_NOT_RESOLVED etc.) that
// callers classify.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browserless: status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithStealth toggles the stealth launch flag (on by default). Naive
// automated fetches get blocked often enough that turning this off is only
// useful in tests.
func WithStealth(on bool) Option {
	return func(c *httpClient) {
		c.stealth = on
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	stealth bool
	http    *http.Client
}

// NewClient creates a Browserless API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		stealth: true,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) endpoint(p string) string {
	q := url.Values{}
	q.Set("token", c.apiKey)
	if c.stealth {
		q.Set("stealth", "true")
	}
	return c.baseURL + p + "?" + q.Encode()
}

func (c *httpClient) Content(ctx context.Context, req ContentRequest) (*ContentResponse, error) {
	body, status, err := c.post(ctx, "/content", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}

	return &ContentResponse{
		HTML:     string(body),
		FinalURL: req.URL,
	}, nil
}

func (c *httpClient) Screenshot(ctx context.Context, req ContentRequest) ([]byte, error) {
	body, status, err := c.post(ctx, "/screenshot", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}
	return body, nil
}

func (c *httpClient) post(ctx context.Context, path string, req ContentRequest) ([]byte, int, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "browserless: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return nil, 0, eris.Wrap(err, "browserless: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, eris.Wrap(err, "browserless: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "browserless: read response")
	}

	return body, resp.StatusCode, nil
}
