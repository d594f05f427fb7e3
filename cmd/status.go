package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/query"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active profile and its totals",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		fail(err)
	}
	defer a.close()

	out := cmd.OutOrStdout()
	p, ok := a.ctl.ActiveProfile()
	if !ok {
		fmt.Fprintln(out, "No active profile.")
		fmt.Fprintln(out, "Create one with: vlog profile add <name>")
		return nil
	}

	now := a.ctl.Today()
	entries := a.ctl.Entries()
	thisYear := query.FilterByYear(entries, now.Year())

	fmt.Fprintf(out, "Profile: %s\n", p.Name)
	fmt.Fprintf(out, "  Backend: %s (%s)\n", a.cfg.Storage.Backend, a.cfg.Storage.Dir)
	fmt.Fprintf(out, "  Entries: %d\n", len(entries))
	fmt.Fprintf(out, "  %d: %s\n", now.Year(), query.FormatHours(query.SumHours(thisYear)))
	fmt.Fprintf(out, "  Total: %s\n", query.FormatHours(a.ctl.TotalHours()))
	if sorted := query.SortByDateDesc(entries); len(sorted) > 0 {
		last := sorted[0]
		fmt.Fprintf(out, "  Last: %s at %s (%s)\n", last.Date, last.Place, query.FormatHours(last.Hours))
	}
	return nil
}
