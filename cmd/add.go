package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/query"
)

var (
	addDate  string
	addHours string
	addNotes string
)

var addCmd = &cobra.Command{
	Use:   "add <place>",
	Short: "Log volunteering hours for the active profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addDate, "date", "", "Date (YYYY-MM-DD); defaults to today")
	addCmd.Flags().StringVar(&addHours, "hours", "", "Hours worked, e.g. 2.5")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "Optional notes")
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := a.requireProfile()
	if err != nil {
		a.fail(err)
	}

	// The blank form already carries today's date.
	draft := a.ctl.Form().Draft
	draft.Place = args[0]
	draft.Hours = addHours
	draft.Notes = addNotes
	if addDate != "" {
		draft.Date = addDate
	}
	if err := a.ctl.SetDraft(draft); err != nil {
		a.fail(err)
	}

	e, err := a.ctl.SubmitForm(ctx)
	if err != nil {
		a.fail(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged %s at %s on %s for %s (id %s)\n",
		query.FormatHours(e.Hours), e.Place, e.Date, p.Name, shortID(e.ID))
	return nil
}
