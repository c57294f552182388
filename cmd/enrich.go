package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrichment/internal/enrich"
	"github.com/sells-group/lead-enrichment/internal/export"
	"github.com/sells-group/lead-enrichment/internal/jobs"
	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/pkg/notion"
)

var (
	enrichInput    string
	enrichNotionDB string
	enrichLimit    int
	enrichOutput   string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich leads from a file or Notion database as a tracked job",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (enrichInput == "") == (enrichNotionDB == "") {
			return eris.New("exactly one of --input or --notion-db is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrich(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, source, err := loadRows(ctx, notionSource(enrichNotionDB), enrichInput)
		if err != nil {
			return err
		}
		if enrichLimit > 0 && len(rows) > enrichLimit {
			rows = rows[:enrichLimit]
		}

		job, err := env.Tracker.Create(ctx, jobs.TypeEnrichment, len(rows), map[string]any{"source": source})
		if err != nil {
			return eris.Wrap(err, "create job")
		}
		fmt.Fprintf(os.Stderr, "Job %s: enriching %d leads from %s\n", job.ID, len(rows), source)

		batch, err := env.Orchestrator.RunJob(ctx, env.Tracker, job.ID, rows)
		formatBatchStats(os.Stdout, job.ID, batch.Stats)
		if err != nil {
			return err
		}

		if enrichOutput != "" {
			if err := writeRowsJSON(enrichOutput, batch.Rows); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(batch.Rows), enrichOutput)
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "lead file (.json array of objects or .xlsx with a header row)")
	enrichCmd.Flags().StringVar(&enrichNotionDB, "notion-db", "", "Notion database ID to read leads from")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max number of leads to process (0 = all)")
	enrichCmd.Flags().StringVar(&enrichOutput, "output", "", "write the merged rows to this JSON file")
	rootCmd.AddCommand(enrichCmd)
}

// rowSource loads rows from a Notion database.
type rowSource func(ctx context.Context) ([]lead.Row, error)

func notionSource(dbID string) rowSource {
	if dbID == "" {
		return nil
	}
	return func(ctx context.Context) ([]lead.Row, error) {
		if cfg.Output.Notion.Token == "" {
			return nil, eris.New("output.notion.token is required to read a Notion database")
		}
		raw, err := notion.LoadRows(ctx, newNotionClient(), dbID)
		if err != nil {
			return nil, err
		}
		rows := make([]lead.Row, len(raw))
		for i, r := range raw {
			rows[i] = lead.Row(r)
		}
		return rows, nil
	}
}

// loadRows reads rows from the Notion source when set, otherwise from the
// input file. It returns a description of the source for the job record.
func loadRows(ctx context.Context, fromNotion rowSource, input string) ([]lead.Row, string, error) {
	if fromNotion != nil {
		rows, err := fromNotion(ctx)
		if err != nil {
			return nil, "", eris.Wrap(err, "load notion leads")
		}
		return rows, "notion", nil
	}
	rows, err := export.ReadRows(input)
	if err != nil {
		return nil, "", eris.Wrap(err, "load input")
	}
	return rows, input, nil
}

// formatBatchStats writes the run counters to w.
func formatBatchStats(out io.Writer, jobID string, s enrich.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Job:\t%s\n", jobID)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	_, _ = fmt.Fprintf(w, "Gate passed:\t%d\n", s.GatePassed)
	_ = w.Flush()
}

func writeRowsJSON(path string, rows []lead.Row) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode rows")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}
