package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leadhunter/internal/history"
	"github.com/jmylchreest/leadhunter/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `History lists runs recorded with "hunt --history", newest first.

With --run, the leads of that run are printed in the chosen format,
followed by any pitches sent for it.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	flags := historyCmd.Flags()
	flags.Int("runs", 20, "number of runs to list (0 for all)")
	flags.String("run", "", "show the leads of this run")
	flags.String("format", "json", "lead output format: json, jsonl, yaml, csv")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := history.Open(historyPath(viper.GetViper()))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		formatStr, _ := cmd.Flags().GetString("format")
		format, err := output.ParseFormat(formatStr)
		if err != nil {
			return err
		}
		return showRun(ctx, cmd, store, runID, format)
	}

	n, _ := cmd.Flags().GetInt("runs")
	runs, err := store.ListRuns(ctx, n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		logInfo("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tNICHE\tLOCATION\tLEADS\tFOUND\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, humanize.Time(r.CreatedAt), r.Niche, r.Location, r.Leads, r.Found, r.Error)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, cmd *cobra.Command, store *history.Store, runID string, format output.Format) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	leads, err := store.RunLeads(ctx, runID)
	if err != nil {
		return err
	}
	logInfo("run %s: %s in %s, %s", run.ID, run.Niche, run.Location, humanize.Time(run.CreatedAt))

	w, err := output.NewWriter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}
	if err := w.WriteAll(output.FromLeads(leads)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	pitches, err := store.RunPitches(ctx, runID)
	if err != nil {
		return err
	}
	for _, p := range pitches {
		status := "sent"
		if p.Error != "" {
			status = "failed: " + p.Error
		}
		fmt.Fprintf(os.Stderr, "pitch to %s <%s> %s (%s)\n", p.LeadName, p.Recipient, status, humanize.Time(p.SentAt))
	}
	return nil
}
