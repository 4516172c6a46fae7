package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dyike/StockAnalyzerAI/internal/storage"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [TICKER]",
		Short: "List past research runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			var ticker string
			if len(args) == 1 {
				ticker = args[0]
			}
			runs, err := store.ListRuns(cmd.Context(), ticker, limit)
			if err != nil {
				return err
			}
			DisplayRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list, 0 for all")

	cmd.AddCommand(&cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show the reports of one past run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			displayRun(cmd.OutOrStdout(), run)
			return nil
		},
	})
	return cmd
}

func DisplayRuns(w io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, noteStyle.Render("No research runs recorded yet."))
		return
	}
	fmt.Fprintln(w, headerStyle.Render("🗂️  Research History"))
	for _, r := range runs {
		status := completedStyle.Render(r.Status)
		if r.Status != storage.StatusDone {
			status = errorStyle.Render(r.Status)
		}
		fmt.Fprintf(w, "%s  %-6s %s → %s  %s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Ticker, r.Start, r.End, status, r.ID)
	}
}

func displayRun(w io.Writer, r *storage.Run) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("📊 %s %s → %s", r.Ticker, r.Start, r.End)))
	fmt.Fprintf(w, "Run:     %s\nStatus:  %s\n", r.ID, r.Status)
	if r.ReportPath != "" {
		fmt.Fprintf(w, "Report:  %s\n", r.ReportPath)
	}
	if r.Error != "" {
		fmt.Fprintln(w, errorStyle.Render("Error: "+r.Error))
	}
	for _, out := range r.Outputs {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%s)", out.Name, out.Agent)))
		fmt.Fprintln(w, out.ExportedOutput)
	}
}
