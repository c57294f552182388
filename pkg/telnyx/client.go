// Package telnyx wraps the Telnyx number lookup API used to classify a
// phone's line type and carrier.
package telnyx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrichment/internal/resilience"
)

const defaultBaseURL = "https://api.telnyx.com/v2"

// Client resolves carrier information for a phone number.
type Client interface {
	Lookup(ctx context.Context, phone string) (*LookupResponse, error)
}

// LookupResponse is the body of GET /number_lookup/{phone}.
type LookupResponse struct {
	Data LookupData `json:"data"`

	Raw json.RawMessage `json:"-"`
}

// LookupData holds the lookup result.
type LookupData struct {
	PhoneNumber string      `json:"phone_number"`
	CountryCode string      `json:"country_code"`
	Carrier     Carrier     `json:"carrier"`
	Portability Portability `json:"portability"`
}

// Carrier describes the serving carrier.
type Carrier struct {
	Name              string `json:"name"`
	Type              string `json:"type"`
	NormalizedCarrier string `json:"normalized_carrier"`
	MobileCountryCode string `json:"mobile_country_code"`
	MobileNetworkCode string `json:"mobile_network_code"`
}

// Portability carries number porting details, including the line type.
type Portability struct {
	LineType        string `json:"line_type"`
	SPIDCarrierName string `json:"spid_carrier_name"`
	PortedStatus    string `json:"ported_status"`
}

// LineType prefers the portability classification and falls back to the
// carrier type. The result is lowercase.
func (r *LookupResponse) LineType() string {
	if r == nil {
		return ""
	}
	lt := r.Data.Portability.LineType
	if lt == "" {
		lt = r.Data.Carrier.Type
	}
	return strings.ToLower(strings.TrimSpace(lt))
}

// CarrierName returns the carrier name, falling back to the SPID name.
func (r *LookupResponse) CarrierName() string {
	if r == nil {
		return ""
	}
	if r.Data.Carrier.Name != "" {
		return r.Data.Carrier.Name
	}
	return r.Data.Portability.SPIDCarrierName
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
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
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Telnyx client. Lookups are paced at 5 req/s by default.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 45 * time.Second},
		limiter: rate.NewLimiter(5, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// E164 formats a 10-digit US number as +1XXXXXXXXXX. Other inputs keep
// their digits with a leading +.
func E164(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		digits = "1" + digits
	}
	return "+" + digits
}

func (c *httpClient) Lookup(ctx context.Context, phone string) (*LookupResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "telnyx: rate limit")
		}
	}
	u := c.baseURL + "/number_lookup/" + url.PathEscape(E164(phone)) + "?type=carrier"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "telnyx: create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "telnyx: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "telnyx: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.HTTPStatusError("telnyx", resp.StatusCode, body)
	}

	var out LookupResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "telnyx: unmarshal response")
	}
	out.Raw = body
	return &out, nil
}
