package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/volunteer-log/internal/config"
	"github.com/Tiliavir/volunteer-log/internal/logging"
	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/session"
	"github.com/Tiliavir/volunteer-log/internal/storage"
)

var (
	configPath  string
	profileFlag string
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "vlog",
	Short: "Volunteer log – record volunteering hours per person",
	Long: `vlog keeps a personal log of volunteering hours for one or more people.
Entries are grouped by profile; each entry records where, when and for how long.
Data lives in ~/.vlog/ unless configured otherwise in ~/.vlog/config.yaml.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.vlog/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileFlag, "profile", "", "Profile name or id to use for this command")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log debug output to stderr")

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
}

// app is everything one command invocation works with.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	store     storage.Store
	ctl       *session.Controller
	statePath string
	closed    bool
}

// openApp loads config, opens the store and restores the session. The
// --profile flag overrides the remembered profile for this invocation only.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if debugFlag {
		level = "debug"
	}
	log, err := logging.New(level, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Options{Backend: cfg.Storage.Backend, Dir: cfg.Storage.Dir})
	if err != nil {
		return nil, err
	}
	log.Debug("store opened", zap.String("backend", cfg.Storage.Backend), zap.String("dir", cfg.Storage.Dir))

	a := &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		statePath: filepath.Join(cfg.Storage.Dir, session.StateFileName),
		ctl:       session.New(store, session.Options{Logger: log, PerPage: cfg.View.PerPage}),
	}

	st, err := session.LoadState(a.statePath)
	if err != nil {
		log.Warn("ignoring session state", zap.Error(err))
	}
	if err := a.ctl.Load(ctx, st.ActiveProfileID); err != nil {
		_ = a.close()
		return nil, err
	}

	if profileFlag != "" {
		p, err := findProfile(a.ctl.Profiles(), profileFlag)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		if err := a.ctl.SwitchProfile(ctx, p.ID); err != nil {
			_ = a.close()
			return nil, err
		}
	}
	return a, nil
}

// saveState remembers the active profile for later invocations.
func (a *app) saveState() {
	st := session.State{}
	if p, ok := a.ctl.ActiveProfile(); ok {
		st.ActiveProfileID = p.ID
	}
	if err := session.SaveState(a.statePath, st); err != nil {
		a.log.Warn("could not save session state", zap.Error(err))
	}
}

func (a *app) close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	_ = a.log.Sync()
	return a.store.Close()
}

// requireProfile fails with a hint when no profile exists yet.
func (a *app) requireProfile() (model.Profile, error) {
	p, ok := a.ctl.ActiveProfile()
	if !ok {
		return model.Profile{}, fmt.Errorf("%w\nTip: create one with: vlog profile add <name>", session.ErrNoActiveProfile)
	}
	return p, nil
}

// findProfile resolves a profile by id, exact name, or case-insensitive name.
func findProfile(profiles []model.Profile, ref string) (model.Profile, error) {
	ref = strings.TrimSpace(ref)
	for _, p := range profiles {
		if p.ID == ref || p.Name == ref {
			return p, nil
		}
	}
	var matches []model.Profile
	for _, p := range profiles {
		if strings.EqualFold(p.Name, ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Profile{}, fmt.Errorf("%w: profile %q", model.ErrNotFound, ref)
	default:
		return model.Profile{}, fmt.Errorf("%w: profile %q matches %d profiles", model.ErrConflict, ref, len(matches))
	}
}

// findEntry resolves an entry by id or unique id prefix.
func findEntry(entries []model.Entry, ref string) (model.Entry, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Entry{}, &model.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	var matches []model.Entry
	for _, e := range entries {
		if e.ID == ref {
			return e, nil
		}
		if strings.HasPrefix(e.ID, ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Entry{}, fmt.Errorf("%w: entry %q", model.ErrNotFound, ref)
	default:
		return model.Entry{}, fmt.Errorf("%w: entry id prefix %q is ambiguous", model.ErrConflict, ref)
	}
}

// shortID is the id prefix shown in listings.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// exitCode maps an error to the process exit status: 1 for problems the
// user can fix, 2 for storage and configuration failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, model.ErrStorage):
		return 2
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrConflict):
		return 1
	default:
		return 2
	}
}

// exit is replaced in tests.
var exit = os.Exit

// fail prints err and exits.
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	exit(exitCode(err))
}

// fail closes the app, then prints err and exits.
func (a *app) fail(err error) {
	if cerr := a.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	fail(err)
}
