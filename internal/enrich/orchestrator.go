// Package enrich runs the per-lead enrichment pipeline: profile extraction,
// postal lookup, phone discovery, phone intelligence, a cost-control gate,
// and age lookup. Paid steps run only when earlier signals justify them.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/internal/postal"
	"github.com/sells-group/lead-enrichment/internal/ratelimit"
	"github.com/sells-group/lead-enrichment/internal/resilience"
	"github.com/sells-group/lead-enrichment/internal/settings"
	"github.com/sells-group/lead-enrichment/internal/sink"
	"github.com/sells-group/lead-enrichment/pkg/skiptrace"
	"github.com/sells-group/lead-enrichment/pkg/telnyx"
)

// Step identifies a pipeline stage in progress events.
type Step string

const (
	StepLinkedIn       Step = "linkedin"
	StepZIP            Step = "zip"
	StepPhoneDiscovery Step = "phone-discovery"
	StepTelnyx         Step = "telnyx"
	StepGatekeep       Step = "gatekeep"
	StepAge            Step = "age"
	StepComplete       Step = "complete"
)

// Service names used for breakers and logging.
const (
	ServiceSkipTrace = "skiptrace"
	ServiceTelnyx    = "telnyx"
)

// Config tunes the orchestrator.
type Config struct {
	// InterLeadDelay spaces consecutive leads. Zero disables pacing.
	InterLeadDelay time.Duration
	// SearchTimeout bounds search and phone lookups. Default: 30s.
	SearchTimeout time.Duration
	// DetailTimeout bounds person detail lookups. Default: 60s.
	DetailTimeout time.Duration
	// JunkCarriers overrides DefaultJunkCarriers when non-empty.
	JunkCarriers []string
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		InterLeadDelay: 500 * time.Millisecond,
		SearchTimeout:  30 * time.Second,
		DetailTimeout:  60 * time.Second,
		JunkCarriers:   DefaultJunkCarriers,
	}
}

// Deps are the collaborators of an Orchestrator. SkipTrace and Telnyx may
// be nil, which skips their steps. Limiters left nil are created per
// orchestrator; pass shared ones to coordinate several runs in a process.
type Deps struct {
	SkipTrace  skiptrace.Client
	Telnyx     telnyx.Client
	Postal     *postal.Resolver
	Settings   *settings.Provider
	Checkpoint *checkpoint.Store
	Dispatcher *sink.Dispatcher
	Breakers   *resilience.ServiceBreakers

	SkipTraceLimiter *ratelimit.Limiter
	TelnyxLimiter    *ratelimit.Limiter
}

// Orchestrator enriches leads one at a time.
type Orchestrator struct {
	cfg  Config
	deps Deps
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	def := DefaultConfig()
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.DetailTimeout <= 0 {
		cfg.DetailTimeout = def.DetailTimeout
	}
	if len(cfg.JunkCarriers) == 0 {
		cfg.JunkCarriers = def.JunkCarriers
	}
	if deps.SkipTraceLimiter == nil {
		deps.SkipTraceLimiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if deps.TelnyxLimiter == nil {
		deps.TelnyxLimiter = ratelimit.New(ratelimit.DefaultConfig())
	}
	if deps.Postal == nil {
		deps.Postal = postal.New(nil)
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// stepFunc receives the state after each step plus the errors that step
// recorded.
type stepFunc func(step Step, st *leadState, errs []string)

// leadState is the working state of one lead through the pipeline.
type leadState struct {
	row lead.Row
	res lead.Result
	log *zap.Logger

	leadCity, leadState   string
	foundCity, foundState string

	personID     string
	cachedAge    string
	detail       *skiptrace.DetailsResponse
	detailCalled bool

	stepErrs []string
}

func (st *leadState) fail(step Step, err error) {
	st.res.AddError(string(step), err)
	st.stepErrs = append(st.stepErrs, string(step)+": "+err.Error())
	st.log.Warn("enrich: step failed", zap.String("step", string(step)), zap.Error(err))
}

// EnrichLead runs the pipeline for one row. Step failures are recorded in
// the result's Error and never stop the pipeline.
func (o *Orchestrator) EnrichLead(ctx context.Context, row lead.Row) lead.Result {
	return o.run(ctx, row, nil)
}

func (o *Orchestrator) run(ctx context.Context, row lead.Row, onStep stepFunc) lead.Result {
	st := &leadState{
		row: row,
		log: zap.L().With(zap.String("lead_key", lead.Key(row))),
	}
	emit := func(step Step) {
		if onStep != nil {
			onStep(step, st, st.stepErrs)
		}
		st.stepErrs = nil
	}

	o.extractProfile(st)
	emit(StepLinkedIn)

	o.resolveZIP(st)
	emit(StepZIP)

	o.discoverPhone(ctx, st)
	emit(StepPhoneDiscovery)

	o.phoneIntel(ctx, st)
	emit(StepTelnyx)

	st.res.GatePassed, st.res.GateReason = Gatekeep(GateInput{
		Phone:      st.res.Phone,
		LineType:   st.res.LineType,
		Carrier:    st.res.Carrier,
		LeadCity:   st.leadCity,
		LeadState:  st.leadState,
		FoundCity:  st.foundCity,
		FoundState: st.foundState,
	}, o.cfg.JunkCarriers)
	st.log.Debug("enrich: gatekeep", zap.Bool("passed", st.res.GatePassed), zap.String("reason", st.res.GateReason))
	emit(StepGatekeep)

	o.enrichAge(ctx, st)
	emit(StepAge)

	return st.res
}

func (o *Orchestrator) enabled(api string) bool {
	return o.deps.Settings.IsEnabled(api)
}
