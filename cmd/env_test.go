package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrichment/internal/config"
	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/sink"
)

// withConfig installs c as the package config for the duration of a test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func testConfig(t *testing.T) *config.Config {
	c := &config.Config{}
	c.Storage.Root = t.TempDir()
	c.Jobs.Driver = "file"
	c.Jobs.RetentionDays = 7
	c.Lock.StaleAfterSecs = 30
	c.Lock.PollIntervalMs = 10
	c.Lock.TimeoutSecs = 2
	c.Enrich.SearchTimeoutSecs = 30
	c.Enrich.DetailTimeoutSecs = 60
	c.SkipTrace.Key = "rapid-key"
	c.Telnyx.Key = "telnyx-key"
	c.Output.Destination = "none"
	c.Output.Concurrency = 2
	c.Settings.Path = filepath.Join(c.Storage.Root, "missing-settings.yaml")
	return c
}

func TestInitBase_FileStore(t *testing.T) {
	withConfig(t, testConfig(t))
	ctx := context.Background()

	env, err := initBase(ctx, "jobs")
	require.NoError(t, err)
	defer env.Close()

	assert.IsType(t, &jobs.FileStore{}, env.JobStore)

	job, err := env.Tracker.Create(ctx, jobs.TypeEnrichment, 3, nil)
	require.NoError(t, err)

	got, err := env.Tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, jobs.StatusPending, got.Status)
}

func TestInitBase_SQLiteStore(t *testing.T) {
	c := testConfig(t)
	c.Jobs.Driver = "sqlite"
	withConfig(t, c)
	ctx := context.Background()

	env, err := initBase(ctx, "jobs")
	require.NoError(t, err)
	defer env.Close()

	assert.IsType(t, &jobs.SQLiteStore{}, env.JobStore)
	assert.FileExists(t, filepath.Join(c.Storage.Root, "jobs.db"))

	job, err := env.Tracker.Create(ctx, jobs.TypeEnrichment, 1, nil)
	require.NoError(t, err)
	require.NoError(t, env.Tracker.Cancel(ctx, job.ID, "test"))

	cancelled, err := env.Tracker.IsCancelled(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestInitBase_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Jobs.Driver = "mongo"
	withConfig(t, c)

	_, err := initBase(context.Background(), "jobs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobs.driver")
}

func TestInitEnrich_NoDestination(t *testing.T) {
	withConfig(t, testConfig(t))

	env, err := initEnrich(context.Background(), "enrich")
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Orchestrator)
	assert.Nil(t, env.Dispatcher)
	assert.Equal(t, "none", env.Settings.Destination())
}

func TestInitEnrich_WebhookDestination(t *testing.T) {
	c := testConfig(t)
	c.Output.Destination = "webhook"
	c.Output.WebhookURL = "http://127.0.0.1:1/hook"
	withConfig(t, c)

	env, err := initEnrich(context.Background(), "enrich")
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Dispatcher)
	assert.Equal(t, sink.Stats{}, env.Dispatcher.Stats())
}

func TestInitSink(t *testing.T) {
	withConfig(t, testConfig(t))

	s, err := initSink("none")
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.Output.Notion.Token = "ntn_test"
	cfg.Output.Notion.LeadDB = "lead-db"
	s, err = initSink("notion")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "notion", s.Name())

	_, err = initSink("fax")
	assert.Error(t, err)
}

func TestEnrichConfigMapping(t *testing.T) {
	c := testConfig(t)
	c.Enrich.InterLeadDelayMs = 750
	c.Enrich.JunkCarriers = []string{"acme voip"}
	c.RateLimit.BaseDelayMs = 300
	c.RateLimit.BackoffStepMs = 400
	c.RateLimit.MaxBackoffMs = 1600
	withConfig(t, c)

	ec := enrichConfig()
	assert.Equal(t, 750*time.Millisecond, ec.InterLeadDelay)
	assert.Equal(t, 30*time.Second, ec.SearchTimeout)
	assert.Equal(t, 60*time.Second, ec.DetailTimeout)
	assert.Equal(t, []string{"acme voip"}, ec.JunkCarriers)

	rc := rateLimitConfig()
	assert.Equal(t, 300*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, 400*time.Millisecond, rc.BackoffStep)
	assert.Equal(t, 1600*time.Millisecond, rc.MaxBackoff)
}
