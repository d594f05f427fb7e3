package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/query"
)

var (
	editPlace string
	editDate  string
	editHours string
	editNotes string
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change an entry; only the given flags are updated",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editPlace, "place", "", "New place")
	editCmd.Flags().StringVar(&editDate, "date", "", "New date (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&editHours, "hours", "", "New hours")
	editCmd.Flags().StringVar(&editNotes, "notes", "", "New notes (empty string clears them)")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	defer a.close()

	if _, err := a.requireProfile(); err != nil {
		a.fail(err)
	}
	e, err := findEntry(a.ctl.Entries(), args[0])
	if err != nil {
		a.fail(err)
	}
	if err := a.ctl.StartEdit(ctx, e.ID); err != nil {
		a.fail(err)
	}

	draft := a.ctl.Form().Draft
	flags := cmd.Flags()
	if flags.Changed("place") {
		draft.Place = editPlace
	}
	if flags.Changed("date") {
		draft.Date = editDate
	}
	if flags.Changed("hours") {
		draft.Hours = editHours
	}
	if flags.Changed("notes") {
		draft.Notes = editNotes
	}
	if err := a.ctl.SetDraft(draft); err != nil {
		a.fail(err)
	}

	updated, err := a.ctl.SubmitForm(ctx)
	if err != nil {
		a.fail(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s at %s on %s\n",
		shortID(updated.ID), query.FormatHours(updated.Hours), updated.Place, updated.Date)
	return nil
}
