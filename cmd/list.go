package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/query"
)

var (
	listYear int
	listPage int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries of the active profile, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVar(&listYear, "year", query.AllYears, "Only show entries of this year")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page to show")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := a.requireProfile()
	if err != nil {
		a.fail(err)
	}

	a.ctl.SetYearFilter(listYear)
	a.ctl.SetPage(listPage)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", p.Name)
	printList(out, a.ctl.Page())
	printFooter(out, footer{
		page:          a.ctl.View().Page,
		totalPages:    a.ctl.TotalPages(),
		year:          listYear,
		filteredCount: len(a.ctl.Filtered()),
		filteredHours: a.ctl.FilteredHours(),
		totalHours:    a.ctl.TotalHours(),
	})
	return nil
}

// printList groups entries by year and prints them in the given order.
func printList(w io.Writer, entries []model.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	currentYear := -1
	for _, e := range entries {
		year, _ := e.Year()
		if year != currentYear {
			if currentYear != -1 {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, year)
			currentYear = year
		}

		notes := ""
		if e.Notes != "" {
			notes = "  " + e.Notes
		}
		fmt.Fprintf(w, "  %s  %s  %-24s %8s%s\n", shortID(e.ID), e.Date, e.Place, query.FormatHours(e.Hours), notes)
	}
}

type footer struct {
	page, totalPages int
	year             int
	filteredCount    int
	filteredHours    float64
	totalHours       float64
}

func printFooter(w io.Writer, f footer) {
	fmt.Fprintln(w, "--------------------------------")
	fmt.Fprintf(w, "Page %d of %d\n", f.page, f.totalPages)
	if f.year != query.AllYears {
		fmt.Fprintf(w, "%d: %s in %d entries\n", f.year, query.FormatHours(f.filteredHours), f.filteredCount)
	}
	fmt.Fprintf(w, "Total: %s\n", query.FormatHours(f.totalHours))
}
