package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/enrich"
	"github.com/sells-group/lead-enrichment/internal/filestore"
	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/lock"
	"github.com/sells-group/lead-enrichment/internal/postal"
	"github.com/sells-group/lead-enrichment/internal/ratelimit"
	"github.com/sells-group/lead-enrichment/internal/resilience"
	"github.com/sells-group/lead-enrichment/internal/settings"
	"github.com/sells-group/lead-enrichment/internal/sink"
	"github.com/sells-group/lead-enrichment/pkg/notion"
	sfpkg "github.com/sells-group/lead-enrichment/pkg/salesforce"
	"github.com/sells-group/lead-enrichment/pkg/skiptrace"
	"github.com/sells-group/lead-enrichment/pkg/telnyx"
)

// baseEnv holds the durable stores every command needs.
type baseEnv struct {
	Files      *filestore.Store
	Locker     *lock.Locker
	Checkpoint *checkpoint.Store
	JobStore   jobs.Store
	Tracker    *jobs.Tracker

	closers []func() error
}

// Close releases resources held by the environment.
func (e *baseEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// enrichEnv adds the orchestrator and its output routing.
type enrichEnv struct {
	*baseEnv
	Settings     *settings.Provider
	Dispatcher   *sink.Dispatcher
	Orchestrator *enrich.Orchestrator
}

// Close waits for pending sends, then releases the stores.
func (e *enrichEnv) Close() {
	if e.Dispatcher != nil {
		e.Dispatcher.Close()
		st := e.Dispatcher.Stats()
		zap.L().Info("output routing finished",
			zap.Int64("sent", st.Sent),
			zap.Int64("failed", st.Failed),
		)
	}
	e.baseEnv.Close()
}

// initBase opens the file store, lock, checkpoint and job tracker. Callers
// should defer env.Close().
func initBase(ctx context.Context, mode string) (*baseEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	files, err := filestore.NewOS(cfg.Storage.Root)
	if err != nil {
		return nil, eris.Wrap(err, "open storage")
	}

	staleAfter, poll, timeout := cfg.Lock.LockTimings()
	locker := lock.New(files, lock.Config{StaleAfter: staleAfter, PollInterval: poll, Timeout: timeout})

	env := &baseEnv{
		Files:      files,
		Locker:     locker,
		Checkpoint: checkpoint.New(files, locker),
	}

	st, closeFn, err := initJobStore(ctx, files)
	if err != nil {
		return nil, err
	}
	if closeFn != nil {
		env.closers = append(env.closers, closeFn)
	}
	env.JobStore = st
	env.Tracker = jobs.NewTracker(st, locker)

	return env, nil
}

// initJobStore opens the configured job record backend and migrates it.
func initJobStore(ctx context.Context, files *filestore.Store) (jobs.Store, func() error, error) {
	switch cfg.Jobs.Driver {
	case "", "file":
		return jobs.NewFileStore(files), nil, nil
	case "sqlite":
		dsn := cfg.Jobs.DatabaseURL
		if dsn == "" {
			dsn = filepath.Join(cfg.Storage.Root, "jobs.db")
		}
		st, err := jobs.NewSQLite(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate job store")
		}
		return st, st.Close, nil
	case "postgres":
		st, err := jobs.NewPostgres(ctx, cfg.Jobs.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, nil, eris.Wrap(err, "migrate job store")
		}
		return st, st.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported job store driver: %s", cfg.Jobs.Driver)
	}
}

// initEnrich builds the full enrichment environment: API clients, settings,
// output routing and the orchestrator.
func initEnrich(ctx context.Context, mode string) (*enrichEnv, error) {
	base, err := initBase(ctx, mode)
	if err != nil {
		return nil, err
	}

	prov, err := settings.Load(cfg.Settings.Path, cfg.Output.Destination)
	if err != nil {
		base.Close()
		return nil, err
	}

	s, err := initSink(prov.Destination())
	if err != nil {
		base.Close()
		return nil, err
	}
	var dispatcher *sink.Dispatcher
	if s != nil {
		dispatcher = sink.NewDispatcher(s, cfg.Output.Concurrency)
		zap.L().Info("output routing enabled", zap.String("destination", s.Name()))
	}

	stOpts := []skiptrace.Option{skiptrace.WithRateLimit(cfg.SkipTrace.RPS)}
	if cfg.SkipTrace.BaseURL != "" {
		stOpts = append(stOpts, skiptrace.WithBaseURL(cfg.SkipTrace.BaseURL))
	}
	if cfg.SkipTrace.Host != "" {
		stOpts = append(stOpts, skiptrace.WithHost(cfg.SkipTrace.Host))
	}
	tnOpts := []telnyx.Option{telnyx.WithRateLimit(cfg.Telnyx.RPS)}
	if cfg.Telnyx.BaseURL != "" {
		tnOpts = append(tnOpts, telnyx.WithBaseURL(cfg.Telnyx.BaseURL))
	}

	breakers := resilience.NewServiceBreakers(
		resilience.FromCircuitConfig(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeoutSecs),
	)

	orch := enrich.New(enrichConfig(), enrich.Deps{
		SkipTrace:        skiptrace.NewClient(cfg.SkipTrace.Key, stOpts...),
		Telnyx:           telnyx.NewClient(cfg.Telnyx.Key, tnOpts...),
		Postal:           postal.New(nil),
		Settings:         prov,
		Checkpoint:       base.Checkpoint,
		Dispatcher:       dispatcher,
		Breakers:         breakers,
		SkipTraceLimiter: ratelimit.New(rateLimitConfig()),
		TelnyxLimiter:    ratelimit.New(rateLimitConfig()),
	})

	return &enrichEnv{
		baseEnv:      base,
		Settings:     prov,
		Dispatcher:   dispatcher,
		Orchestrator: orch,
	}, nil
}

func newNotionClient() notion.Client {
	return notion.NewClient(cfg.Output.Notion.Token,
		notion.WithRateLimit(cfg.Output.Notion.RPS),
		notion.WithRetries(cfg.Output.Notion.Retries),
	)
}

// initSink builds the sink for dest, connecting only the client it needs.
func initSink(dest string) (sink.Sink, error) {
	deps := sink.Deps{WebhookURL: cfg.Output.WebhookURL}
	switch dest {
	case settings.DestinationNotion:
		deps.Notion = newNotionClient()
		deps.NotionDB = cfg.Output.Notion.LeadDB
	case settings.DestinationSalesforce:
		sf, err := sfpkg.Connect(sfpkg.Creds{
			LoginURL: cfg.Output.Salesforce.LoginURL,
			Username: cfg.Output.Salesforce.Username,
			ClientID: cfg.Output.Salesforce.ClientID,
			KeyPath:  cfg.Output.Salesforce.KeyPath,
		}, sfpkg.WithRateLimit(cfg.Output.Salesforce.RPS))
		if err != nil {
			return nil, eris.Wrap(err, "init salesforce")
		}
		deps.Salesforce = sf
	}
	return sink.ForDestination(dest, deps)
}

func enrichConfig() enrich.Config {
	return enrich.Config{
		InterLeadDelay: time.Duration(cfg.Enrich.InterLeadDelayMs) * time.Millisecond,
		SearchTimeout:  time.Duration(cfg.Enrich.SearchTimeoutSecs) * time.Second,
		DetailTimeout:  time.Duration(cfg.Enrich.DetailTimeoutSecs) * time.Second,
		JunkCarriers:   cfg.Enrich.JunkCarriers,
	}
}

func rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		BaseDelay:   time.Duration(cfg.RateLimit.BaseDelayMs) * time.Millisecond,
		BackoffStep: time.Duration(cfg.RateLimit.BackoffStepMs) * time.Millisecond,
		MaxBackoff:  time.Duration(cfg.RateLimit.MaxBackoffMs) * time.Millisecond,
	}
}
