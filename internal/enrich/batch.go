package enrich

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

// Columns added to enriched rows for values with no canonical field.
const (
	ColumnLineType          = "Line Type"
	ColumnCarrier           = "Carrier"
	ColumnCarrierType       = "Carrier Type"
	ColumnNormalizedCarrier = "Normalized Carrier"
	ColumnGatePassed        = "Gate Passed"
	ColumnGateReason        = "Gate Reason"
	ColumnError             = "Enrichment Error"
)

// Event is a progress notification. Current counts leads finished so far,
// including skipped ones.
type Event struct {
	Step    Step              `json:"step"`
	Key     string            `json:"key"`
	Current int               `json:"current"`
	Total   int               `json:"total"`
	Fields  map[string]string `json:"fields,omitempty"`
	Errors  []string          `json:"errors,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
}

// ProgressFunc receives progress events. It runs on the enrichment
// goroutine and should return quickly.
type ProgressFunc func(Event)

// Stats summarizes a batch.
type Stats struct {
	Processed  int `json:"processed"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	GatePassed int `json:"gate_passed"`
}

// Metadata renders the stats for a job record.
func (s Stats) Metadata() map[string]any {
	return map[string]any{
		"processed":   s.Processed,
		"skipped":     s.Skipped,
		"failed":      s.Failed,
		"gate_passed": s.GatePassed,
	}
}

// Batch is the output of EnrichData. Rows has one entry per input row that
// was reached, in input order; skipped rows are returned unchanged.
type Batch struct {
	Rows    []lead.Row
	Results []lead.Result
	Stats   Stats
}

// EnrichData enriches rows in order. Rows already in the checkpoint are
// skipped. Every processed lead is persisted before the next one starts and
// then handed to the sink dispatcher. A cancelled ctx stops the batch and
// returns what was done with the context error; a lead whose calls were cut
// short by the cancel is neither counted nor checkpointed, so a resumed run
// enriches it again. The complete event carries the key the lead was saved
// under, which differs from the input key when enrichment adds a contact.
func (o *Orchestrator) EnrichData(ctx context.Context, rows []lead.Row, onProgress ProgressFunc) (Batch, error) {
	var (
		batch Batch
		pace  *rate.Limiter
	)
	if o.cfg.InterLeadDelay > 0 {
		pace = rate.NewLimiter(rate.Every(o.cfg.InterLeadDelay), 1)
	}
	total := len(rows)
	notify := func(ev Event) {
		if onProgress != nil {
			ev.Total = total
			onProgress(ev)
		}
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return batch, eris.Wrap(err, "enrich: batch interrupted")
		}
		key := lead.Key(row)
		log := zap.L().With(zap.String("lead_key", key), zap.Int("index", i))

		if o.deps.Checkpoint != nil {
			done, err := o.deps.Checkpoint.IsProcessed(ctx, row)
			if err != nil {
				log.Warn("enrich: checkpoint lookup failed", zap.Error(err))
			}
			if done {
				batch.Stats.Skipped++
				batch.Rows = append(batch.Rows, row)
				batch.Results = append(batch.Results, lead.Result{})
				log.Debug("enrich: already processed, skipping")
				notify(Event{Step: StepComplete, Key: key, Current: i + 1, Skipped: true})
				continue
			}
		}

		if pace != nil {
			if err := pace.Wait(ctx); err != nil {
				return batch, eris.Wrap(err, "enrich: batch interrupted")
			}
		}

		res := o.run(ctx, row, func(step Step, st *leadState, errs []string) {
			notify(Event{Step: step, Key: key, Current: i, Fields: snapshot(&st.res), Errors: errs})
		})
		if err := ctx.Err(); err != nil {
			log.Info("enrich: interrupted mid-lead, not checkpointed", zap.Error(err))
			return batch, eris.Wrap(err, "enrich: batch interrupted")
		}
		merged := MergeResult(row, res)

		batch.Stats.Processed++
		if res.Error != "" {
			batch.Stats.Failed++
		}
		if res.GatePassed {
			batch.Stats.GatePassed++
		}
		batch.Rows = append(batch.Rows, merged)
		batch.Results = append(batch.Results, res)

		// Enrichment can upgrade a name-only key; report the persisted one.
		savedKey := lead.Key(merged)
		if o.deps.Checkpoint != nil {
			sum := o.deps.Checkpoint.SaveEnrichedLeadImmediate(ctx, merged, res)
			savedKey = sum.Key
			o.deps.Dispatcher.Dispatch(ctx, sum)
		}
		log.Info("enrich: lead complete",
			zap.Bool("gate_passed", res.GatePassed),
			zap.String("gate_reason", res.GateReason),
			zap.Bool("has_phone", res.Phone != ""),
			zap.String("error", res.Error),
		)
		notify(Event{Step: StepComplete, Key: savedKey, Current: i + 1, Fields: snapshot(&res)})
	}
	return batch, nil
}

// MergeResult returns a copy of row with the enrichment applied. Discovered
// values replace only blank or placeholder cells; phone and email follow the
// contact preservation rule so a valid value is never blanked.
func MergeResult(row lead.Row, res lead.Result) lead.Row {
	out := row.Clone()

	mergeContact(out, lead.FieldPhone, lead.BestPhone(out.Get(lead.FieldPhone), res.Phone))
	mergeContact(out, lead.FieldEmail, lead.BestEmail(out.Get(lead.FieldEmail), res.Email))

	for f, v := range map[lead.Field]string{
		lead.FieldFirstName: res.FirstName,
		lead.FieldLastName:  res.LastName,
		lead.FieldCity:      res.City,
		lead.FieldState:     res.State,
		lead.FieldZip:       res.ZIP,
		lead.FieldAddress:   res.Address,
		lead.FieldAge:       res.Age,
		lead.FieldDOB:       res.DOB,
	} {
		if v != "" && lead.IsPlaceholder(out.Get(f)) {
			out.Set(f, v)
		}
	}

	for col, v := range map[string]string{
		ColumnLineType:          res.LineType,
		ColumnCarrier:           res.Carrier,
		ColumnCarrierType:       res.CarrierType,
		ColumnNormalizedCarrier: res.NormalizedCarrier,
		ColumnGateReason:        res.GateReason,
		ColumnError:             res.Error,
	} {
		if v != "" {
			out[col] = v
		}
	}
	out[ColumnGatePassed] = res.GatePassed
	return out
}

func mergeContact(out lead.Row, f lead.Field, v string) {
	if v != "" && v != out.Get(f) {
		out.Set(f, v)
	}
}

func snapshot(r *lead.Result) map[string]string {
	fields := map[string]string{
		"first_name":  r.FirstName,
		"last_name":   r.LastName,
		"phone":       r.Phone,
		"email":       r.Email,
		"zip":         r.ZIP,
		"city":        r.City,
		"state":       r.State,
		"line_type":   r.LineType,
		"carrier":     r.Carrier,
		"age":         r.Age,
		"gate_passed": strconv.FormatBool(r.GatePassed),
	}
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	return fields
}

// RunJob runs EnrichData as tracked job jobID. Progress is written after
// each lead, an external cancel stops the run between leads, and the job is
// completed with batch stats. The job fails when the run cannot start, is
// interrupted, or every processed lead failed.
func (o *Orchestrator) RunJob(ctx context.Context, tracker *jobs.Tracker, jobID string, rows []lead.Row) (Batch, error) {
	log := zap.L().With(zap.String("job_id", jobID))
	finishCtx := context.WithoutCancel(ctx)

	if len(rows) == 0 {
		return Batch{}, o.failJob(finishCtx, tracker, jobID, "no leads to enrich")
	}
	if err := tracker.UpdateProgress(ctx, jobID, 0, len(rows)); err != nil {
		return Batch{}, eris.Wrap(err, "enrich: start job")
	}
	log.Info("enrich: job started", zap.Int("total", len(rows)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var cancelled bool

	batch, err := o.EnrichData(runCtx, rows, func(ev Event) {
		if ev.Step != StepComplete {
			return
		}
		if err := tracker.UpdateProgress(ctx, jobID, ev.Current, ev.Total); err != nil {
			log.Warn("enrich: progress update failed", zap.Error(err))
		}
		if c, err := tracker.IsCancelled(ctx, jobID); err == nil && c {
			cancelled = true
			cancel()
		}
	})

	switch {
	case cancelled:
		log.Info("enrich: job cancelled", zap.Int("processed", batch.Stats.Processed))
		return batch, nil
	case err != nil:
		return batch, o.failJob(finishCtx, tracker, jobID, fmt.Sprintf("interrupted after %d leads: %v", len(batch.Rows), err))
	case batch.Stats.Processed > 0 && batch.Stats.Failed == batch.Stats.Processed:
		return batch, o.failJob(finishCtx, tracker, jobID, fmt.Sprintf("all %d processed leads failed", batch.Stats.Processed))
	}

	if err := tracker.Complete(finishCtx, jobID, batch.Stats.Metadata()); err != nil {
		return batch, eris.Wrap(err, "enrich: complete job")
	}
	log.Info("enrich: job completed",
		zap.Int("processed", batch.Stats.Processed),
		zap.Int("skipped", batch.Stats.Skipped),
		zap.Int("failed", batch.Stats.Failed),
		zap.Int("gate_passed", batch.Stats.GatePassed),
	)
	return batch, nil
}

func (o *Orchestrator) failJob(ctx context.Context, tracker *jobs.Tracker, jobID, msg string) error {
	zap.L().Error("enrich: job failed", zap.String("job_id", jobID), zap.String("reason", msg))
	if err := tracker.Fail(ctx, jobID, msg); err != nil {
		return eris.Wrap(err, "enrich: fail job")
	}
	return eris.Errorf("enrich: job failed: %s", msg)
}
