package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/volunteer-log/internal/model"
)

var profileDeleteYes bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the people whose hours are logged",
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a profile and make it active",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name|id>",
	Short: "Make a profile active",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileUse,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a profile and all of its entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

func init() {
	profileDeleteCmd.Flags().BoolVar(&profileDeleteYes, "yes", false, "Confirm deleting the profile and its entries")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := a.ctl.CreateProfile(ctx, args[0])
	if err != nil {
		a.fail(err)
	}
	a.saveState()

	fmt.Fprintf(cmd.OutOrStdout(), "Created profile %q; it is now active.\n", p.Name)
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		fail(err)
	}
	defer a.close()

	active, _ := a.ctl.ActiveProfile()
	printProfiles(cmd.OutOrStdout(), a.ctl.Profiles(), active.ID)
	return nil
}

func runProfileUse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := findProfile(a.ctl.Profiles(), args[0])
	if err != nil {
		a.fail(err)
	}
	if err := a.ctl.SwitchProfile(ctx, p.ID); err != nil {
		a.fail(err)
	}
	a.saveState()

	fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", p.Name)
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		fail(err)
	}
	defer a.close()

	p, err := findProfile(a.ctl.Profiles(), args[0])
	if err != nil {
		a.fail(err)
	}
	if !profileDeleteYes {
		a.fail(&model.ValidationError{
			Field:  "yes",
			Reason: fmt.Sprintf("deleting %q removes all of its entries; re-run with --yes to confirm", p.Name),
		})
	}
	if err := a.ctl.DeleteProfile(ctx, p.ID); err != nil {
		a.fail(err)
	}
	a.saveState()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Deleted profile %q.\n", p.Name)
	if next, ok := a.ctl.ActiveProfile(); ok {
		fmt.Fprintf(out, "Active profile: %s\n", next.Name)
	}
	return nil
}

// printProfiles lists profiles, marking the active one with "*".
func printProfiles(w io.Writer, profiles []model.Profile, activeID string) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, "No profiles yet. Create one with: vlog profile add <name>")
		return
	}
	for _, p := range profiles {
		marker := " "
		if p.ID == activeID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s\n", marker, p.Name)
	}
}
