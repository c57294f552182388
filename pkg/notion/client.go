// Package notion reads lead rows out of a Notion database and writes
// enriched leads back as pages. Client carries the three API calls that
// needs; database.go builds paging, key lookup and upsert on top of it.
package notion

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	// DefaultRPS keeps a lead import or export under Notion's average
	// limit of three requests per second per integration.
	DefaultRPS = 3
	// DefaultRetries is how many 429 responses one call absorbs, honouring
	// Retry-After, before it fails.
	DefaultRetries = 3
	// DefaultTimeout bounds one HTTP round trip.
	DefaultTimeout = 30 * time.Second
)

// Client is what lead import and export need from Notion.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

type clientOptions struct {
	rps     float64
	retries int
	http    *http.Client
}

// Option tunes a Client built by NewClient.
type Option func(*clientOptions)

// WithRateLimit paces calls at rps. A non-positive rps turns pacing off.
func WithRateLimit(rps float64) Option {
	return func(o *clientOptions) { o.rps = rps }
}

// WithRetries sets how many 429 responses a call absorbs before it fails
// with an error that IsRateLimited recognises.
func WithRetries(n int) Option {
	return func(o *clientOptions) {
		if n > 0 {
			o.retries = n
		}
	}
}

// WithHTTPClient routes calls through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.http = hc }
}

type leadDB struct {
	api  *notionapi.Client
	pace *rate.Limiter
}

// NewClient returns a Client authenticated with an integration token.
func NewClient(token string, opts ...Option) Client {
	o := clientOptions{rps: DefaultRPS, retries: DefaultRetries}
	for _, opt := range opts {
		opt(&o)
	}
	if o.http == nil {
		o.http = &http.Client{Timeout: DefaultTimeout}
	}

	db := &leadDB{
		api: notionapi.NewClient(notionapi.Token(token),
			notionapi.WithHTTPClient(o.http),
			notionapi.WithRetry(o.retries),
		),
	}
	if o.rps > 0 {
		db.pace = rate.NewLimiter(rate.Limit(o.rps), max(int(o.rps), 1))
	}
	return db
}

// IsRateLimited reports whether err means Notion kept refusing a call with
// 429 after the retries were spent.
func IsRateLimited(err error) bool {
	var limited *notionapi.RateLimitedError
	if errors.As(err, &limited) {
		return true
	}
	var apiErr *notionapi.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

func paced[T any](ctx context.Context, db *leadDB, op string, fn func() (T, error)) (T, error) {
	var zero T
	if db.pace != nil {
		if err := db.pace.Wait(ctx); err != nil {
			return zero, eris.Wrap(err, "notion: rate limit")
		}
	}
	v, err := fn()
	if err != nil {
		return zero, eris.Wrap(err, "notion: "+op)
	}
	return v, nil
}

func (db *leadDB) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return paced(ctx, db, "query database "+dbID, func() (*notionapi.DatabaseQueryResponse, error) {
		return db.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
}

func (db *leadDB) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return paced(ctx, db, "create page", func() (*notionapi.Page, error) {
		return db.api.Page.Create(ctx, req)
	})
}

func (db *leadDB) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return paced(ctx, db, "update page "+pageID, func() (*notionapi.Page, error) {
		return db.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}
