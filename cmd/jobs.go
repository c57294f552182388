package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrichment/internal/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage tracked jobs",
	Long:  "Commands for listing, viewing, cancelling and cleaning up enrichment jobs.",
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		list, err := env.Tracker.ListAll(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, list, time.Now())
		return nil
	},
}

// -- jobs active --

var jobsActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "List pending and running jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Tracker.ListActive(ctx)
		if err != nil {
			return eris.Wrap(err, "jobs active")
		}
		if len(list) == 0 {
			fmt.Fprintln(os.Stderr, "No active jobs.")
			return nil
		}

		formatJobsList(os.Stdout, list, time.Now())
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Tracker.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}
		if job == nil {
			return eris.Errorf("job %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// -- jobs cancel --

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		reason, _ := cmd.Flags().GetString("reason")
		if err := env.Tracker.Cancel(ctx, args[0], reason); err != nil {
			return eris.Wrap(err, "jobs cancel")
		}
		fmt.Fprintf(os.Stderr, "Job %s cancelled.\n", args[0])
		return nil
	},
}

// -- jobs cleanup --

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete finished jobs older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "jobs")
		if err != nil {
			return err
		}
		defer env.Close()

		days, _ := cmd.Flags().GetInt("days")
		if days <= 0 {
			days = cfg.Jobs.RetentionDays
		}
		res, err := env.Tracker.CleanupOld(ctx, days)
		if err != nil {
			return eris.Wrap(err, "jobs cleanup")
		}
		fmt.Fprintf(os.Stdout, "Deleted %d jobs older than %d days (%d errors).\n", res.Deleted, days, res.Errors)
		return nil
	},
}

func init() {
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")
	jobsCancelCmd.Flags().String("reason", "cancelled from CLI", "reason recorded on the job")
	jobsCleanupCmd.Flags().Int("days", 0, "retention in days (default from config)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsActiveCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsCleanupCmd)
	rootCmd.AddCommand(jobsCmd)
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, list []*jobs.Job, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPROGRESS\tSTARTED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t--------\t-------\t--------\t-----")

	for _, j := range list {
		errMsg := j.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d (%d%%)\t%s\t%s\t%s\n",
			j.ID,
			j.Type,
			j.Status,
			j.Progress.Current,
			j.Progress.Total,
			j.Progress.Percentage,
			j.StartedAt.Format("2006-01-02 15:04"),
			j.Duration(now).Round(time.Second),
			errMsg,
		)
	}
	_ = w.Flush()
}
