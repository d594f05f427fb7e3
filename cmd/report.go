package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/query"
)

var reportYear int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show hours aggregated per year and per place",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportYear, "year", query.AllYears, "Report a single year")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := a.requireProfile()
	if err != nil {
		a.fail(err)
	}

	printReport(cmd.OutOrStdout(), p.Name, reportYear, a.ctl.Entries())
	return nil
}

// printReport prints totals per year (all years only) and per place.
func printReport(w io.Writer, profile string, year int, entries []model.Entry) {
	entries = query.FilterByYear(entries, year)
	label := "all years"
	if year != query.AllYears {
		label = strconv.Itoa(year)
	}

	fmt.Fprintf(w, "%s – %s\n", profile, label)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	if year == query.AllYears {
		fmt.Fprintln(w, "--------------------------------")
		for _, t := range query.TotalsByYear(entries) {
			fmt.Fprintf(w, "%-20d%10s  (%d)\n", t.Year, query.FormatHours(t.Hours), t.Entries)
		}
	}

	fmt.Fprintln(w, "--------------------------------")
	for _, t := range query.TotalsByPlace(entries) {
		fmt.Fprintf(w, "%-20s%10s  (%d)\n", t.Place, query.FormatHours(t.Hours), t.Entries)
	}
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "%-20s%10s  (%d)\n", "Total", query.FormatHours(query.SumHours(entries)), len(entries))
}
