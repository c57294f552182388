package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/export"
	"github.com/sells-group/lead-enrichment/internal/lead"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect enriched leads and the processed set",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enriched leads saved by previous runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		all, err := env.Checkpoint.LoadAll(ctx)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(all) == 0 {
			fmt.Fprintln(os.Stderr, "No enriched leads found.")
			return nil
		}
		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(all) > limit {
			all = all[:limit]
		}
		formatLeadsList(os.Stdout, all)
		return nil
	},
}

var leadsStatusCmd = &cobra.Command{
	Use:   "status <input>",
	Short: "Report which rows of a lead file were already processed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := export.ReadRows(args[0])
		if err != nil {
			return eris.Wrap(err, "load input")
		}
		return writeLeadStatus(ctx, os.Stdout, env.Checkpoint, rows)
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export enriched leads to a spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initBase(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		all, err := env.Checkpoint.LoadAll(ctx)
		if err != nil {
			return eris.Wrap(err, "leads export")
		}
		out, _ := cmd.Flags().GetString("out")
		if err := export.WriteXLSX(out, all); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d leads to %s\n", len(all), out)
		return nil
	},
}

var leadsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every processed lead key so leads are enriched again",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return eris.New("refusing to clear the processed set without --yes")
		}

		env, err := initBase(ctx, "leads")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Checkpoint.Count(ctx)
		if err != nil {
			return eris.Wrap(err, "leads clear")
		}
		if err := env.Checkpoint.Clear(ctx); err != nil {
			return eris.Wrap(err, "leads clear")
		}
		fmt.Fprintf(os.Stderr, "Cleared %d processed lead keys.\n", n)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().Int("limit", 100, "max number of leads to display")
	leadsExportCmd.Flags().String("out", "enriched_leads.xlsx", "output .xlsx path")
	leadsClearCmd.Flags().Bool("yes", false, "confirm clearing the processed set")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsStatusCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	leadsCmd.AddCommand(leadsClearCmd)
	rootCmd.AddCommand(leadsCmd)
}

// formatLeadsList writes a tabular list of enriched leads to w.
func formatLeadsList(out io.Writer, all []checkpoint.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tNAME\tPHONE\tLINE\tGATE\tSAVED")
	_, _ = fmt.Fprintln(w, "---\t----\t-----\t----\t----\t-----")

	for _, s := range all {
		gate := "pass"
		if !s.Result.GatePassed {
			gate = "fail"
			if s.Result.GateReason != "" {
				gate += " (" + s.Result.GateReason + ")"
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateKey(s.Key),
			displayName(s),
			s.Result.Phone,
			s.Result.LineType,
			gate,
			s.SavedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// writeLeadStatus prints one line per row with its key and processed flag.
func writeLeadStatus(ctx context.Context, out io.Writer, cp *checkpoint.Store, rows []lead.Row) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tKEY\tPROCESSED")
	for i, row := range rows {
		done, err := cp.IsProcessed(ctx, row)
		if err != nil {
			return eris.Wrapf(err, "leads status row %d", i+1)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%t\n", i+1, truncateKey(cp.LeadKey(row)), done)
	}
	return w.Flush()
}

func displayName(s checkpoint.Summary) string {
	name := s.Result.FirstName
	if s.Result.LastName != "" {
		if name != "" {
			name += " "
		}
		name += s.Result.LastName
	}
	if name == "" {
		name = s.Row.Get(lead.FieldFullName)
	}
	return name
}

// truncateKey shortens long profile-URL keys for compact display.
func truncateKey(key string) string {
	if len(key) > 48 {
		return key[:45] + "..."
	}
	return key
}
