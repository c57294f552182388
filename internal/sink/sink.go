// Package sink routes enriched leads to an external destination after the
// per-lead critical path has finished. Sends are best effort: failures are
// logged and never reach the enrichment loop.
package sink

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/settings"
	"github.com/sells-group/lead-enrichment/pkg/notion"
	"github.com/sells-group/lead-enrichment/pkg/salesforce"
)

// Sink delivers one enriched lead.
type Sink interface {
	Name() string
	Send(ctx context.Context, s checkpoint.Summary) error
}

// Deps carries the clients a destination may need.
type Deps struct {
	Notion     notion.Client
	NotionDB   string
	Salesforce salesforce.Client
	WebhookURL string
	HTTPClient *http.Client
}

// ForDestination builds the sink for an output destination. "none" and ""
// yield a nil Sink.
func ForDestination(dest string, deps Deps) (Sink, error) {
	switch dest {
	case "", settings.DestinationNone:
		return nil, nil
	case settings.DestinationNotion:
		if deps.Notion == nil || deps.NotionDB == "" {
			return nil, eris.New("sink: notion destination requires a client and database id")
		}
		return NewNotion(deps.Notion, deps.NotionDB), nil
	case settings.DestinationSalesforce:
		if deps.Salesforce == nil {
			return nil, eris.New("sink: salesforce destination requires a client")
		}
		return NewSalesforce(deps.Salesforce), nil
	case settings.DestinationWebhook:
		if deps.WebhookURL == "" {
			return nil, eris.New("sink: webhook destination requires a url")
		}
		return NewWebhook(deps.WebhookURL, deps.HTTPClient), nil
	default:
		return nil, eris.Errorf("sink: unknown destination %q", dest)
	}
}

// DefaultSendTimeout bounds a single send.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher runs sends in the background with bounded concurrency. When
// every slot is busy Dispatch waits for one to free up, so every scheduled
// summary is attempted once.
type Dispatcher struct {
	sink    Sink
	g       *errgroup.Group
	timeout time.Duration

	sent   atomic.Int64
	failed atomic.Int64
}

// NewDispatcher returns a Dispatcher for s. A nil sink makes every Dispatch
// a no-op.
func NewDispatcher(s Sink, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	return &Dispatcher{sink: s, g: g, timeout: DefaultSendTimeout}
}

// Dispatch schedules a send of s, blocking while the pool is full. It
// reports false only when there is no sink. The send outlives cancellation
// of ctx but is bounded by the send timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, s checkpoint.Summary) bool {
	if d == nil || d.sink == nil {
		return false
	}
	log := zap.L().With(zap.String("sink", d.sink.Name()), zap.String("lead_key", s.Key))

	d.g.Go(func() error {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.sink.Send(sendCtx, s); err != nil {
			d.failed.Add(1)
			log.Warn("sink: send failed", zap.Error(err))
			return nil
		}
		d.sent.Add(1)
		log.Debug("sink: sent")
		return nil
	})
	return true
}

// Stats reports delivery counters.
type Stats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// Stats returns a snapshot of the delivery counters.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load()}
}

// Close waits for in-flight sends.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	_ = d.g.Wait()
}
