package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
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
	if err := a.ctl.DeleteEntry(ctx, e.ID); err != nil {
		a.fail(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %s (%s on %s)\n", shortID(e.ID), e.Place, e.Date)
	return nil
}
