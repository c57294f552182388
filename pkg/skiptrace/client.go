// Package skiptrace is a client for the people search and person detail
// endpoints of a RapidAPI skip-tracing service.
package skiptrace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrichment/internal/resilience"
)

const (
	defaultBaseURL = "https://skip-tracing-working-api.p.rapidapi.com"
	defaultHost    = "skip-tracing-working-api.p.rapidapi.com"
)

// Client looks up people by name and fetches person details.
type Client interface {
	SearchByName(ctx context.Context, name, cityStateZip string) (*SearchResponse, error)
	PersonDetails(ctx context.Context, personID string) (*DetailsResponse, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHost overrides the X-RapidAPI-Host header.
func WithHost(host string) Option {
	return func(c *httpClient) { c.host = host }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero disables client-side pacing.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	host    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a skip-trace client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		host:    defaultHost,
		baseURL: defaultBaseURL,
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

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) SearchByName(ctx context.Context, name, cityStateZip string) (*SearchResponse, error) {
	q := url.Values{"name": {name}, "page": {"1"}}
	if cityStateZip != "" {
		q.Set("citystatezip", cityStateZip)
	}
	var out SearchResponse
	raw, err := c.get(ctx, "/search/byname", q, &out)
	if err != nil {
		return nil, eris.Wrap(err, "skiptrace: search by name")
	}
	out.Raw = raw
	return &out, nil
}

func (c *httpClient) PersonDetails(ctx context.Context, personID string) (*DetailsResponse, error) {
	if personID == "" {
		return nil, eris.New("skiptrace: person id is required")
	}
	var out DetailsResponse
	raw, err := c.get(ctx, "/search/detailsbyID", url.Values{"peo_id": {personID}}, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "skiptrace: person details %s", personID)
	}
	out.Raw = raw
	return &out, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values, v any) (json.RawMessage, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPStatusError("skiptrace", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return nil, eris.Wrap(err, "unmarshal response")
	}
	return body, nil
}
