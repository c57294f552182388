package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-enrichment/internal/jobs"
)

func TestFormatJobsList(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	done := now.Add(-58 * time.Minute)
	list := []*jobs.Job{
		{
			ID:        "enrichment_1772447400000_ab12cd34",
			Type:      jobs.TypeEnrichment,
			Status:    jobs.StatusRunning,
			Progress:  jobs.NewProgress(3, 10),
			StartedAt: now.Add(-2 * time.Minute),
		},
		{
			ID:          "enrichment_1772443800000_ef56ab78",
			Type:        jobs.TypeEnrichment,
			Status:      jobs.StatusFailed,
			Progress:    jobs.NewProgress(10, 10),
			StartedAt:   now.Add(-time.Hour),
			CompletedAt: &done,
			Error:       "all 10 processed leads failed enrichment with upstream errors",
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, list, now)

	output := buf.String()
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "enrichment_1772447400000_ab12cd34")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "3/10 (30%)")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "10/10 (100%)")
	assert.Contains(t, output, "all 10 processed leads failed enrichm...")
	assert.Contains(t, output, "2026-03-02 09:30")
}

func TestFormatJobsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatJobsList(&buf, nil, time.Now())

	assert.Contains(t, buf.String(), "ID")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}
