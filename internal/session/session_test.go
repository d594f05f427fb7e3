package session_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/query"
	"github.com/Tiliavir/volunteer-log/internal/session"
	"github.com/Tiliavir/volunteer-log/internal/storage"
	"github.com/Tiliavir/volunteer-log/internal/storage/jsonfile"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var today = time.Date(2024, time.May, 17, 9, 30, 0, 0, time.Local)

// failingStore fails every mutation with err once fail is set.
type failingStore struct {
	storage.Store
	fail bool
	err  error
}

func (s *failingStore) CreateEntry(ctx context.Context, profileID string, f model.EntryFields) (model.Entry, error) {
	if s.fail {
		return model.Entry{}, s.err
	}
	return s.Store.CreateEntry(ctx, profileID, f)
}

func (s *failingStore) UpdateEntry(ctx context.Context, id string, f model.EntryFields) (model.Entry, error) {
	if s.fail {
		return model.Entry{}, s.err
	}
	return s.Store.UpdateEntry(ctx, id, f)
}

func (s *failingStore) DeleteEntry(ctx context.Context, id string) error {
	if s.fail {
		return s.err
	}
	return s.Store.DeleteEntry(ctx, id)
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := jsonfile.Open(filepath.Join(t.TempDir(), jsonfile.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newController(t *testing.T, st storage.Store) *session.Controller {
	t.Helper()
	c := session.New(st, session.Options{Clock: fixedClock{today}, PerPage: 10})
	require.NoError(t, c.Load(context.Background(), ""))
	return c
}

func submit(t *testing.T, c *session.Controller, d session.Draft) model.Entry {
	t.Helper()
	require.NoError(t, c.SetDraft(d))
	e, err := c.SubmitForm(context.Background())
	require.NoError(t, err)
	return e
}

func TestLoadWithoutProfilesIsIdle(t *testing.T) {
	c := newController(t, openStore(t))

	assert.Equal(t, session.FormIdle, c.Form().Mode)
	_, ok := c.ActiveProfile()
	assert.False(t, ok)

	_, err := c.SubmitForm(context.Background())
	assert.ErrorIs(t, err, session.ErrNoActiveProfile)
	assert.ErrorIs(t, c.SetDraft(session.Draft{Place: "x"}), session.ErrNoActiveProfile)
}

func TestCreateProfileActivatesIt(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))

	p, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	active, ok := c.ActiveProfile()
	require.True(t, ok)
	assert.Equal(t, p, active)
	assert.Equal(t, session.FormCreating, c.Form().Mode)
	assert.Equal(t, "2024-05-17", c.Form().Draft.Date)
	assert.Equal(t, session.View{ProfileID: p.ID, Year: query.AllYears, Page: 1}, c.View())
}

func TestLoadPrefersRememberedProfile(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	_, err := st.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	bob, err := st.CreateProfile(ctx, "Bob")
	require.NoError(t, err)

	c := session.New(st, session.Options{Clock: fixedClock{today}})
	require.NoError(t, c.Load(ctx, bob.ID))
	active, _ := c.ActiveProfile()
	assert.Equal(t, "Bob", active.Name)

	// An unknown remembered id falls back to the first profile by name.
	require.NoError(t, c.Load(ctx, "gone"))
	active, _ = c.ActiveProfile()
	assert.Equal(t, "Alice", active.Name)
}

func TestSubmitRejectsInvalidDraft(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := newController(t, st)
	p, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	tests := []struct {
		name  string
		draft session.Draft
		field string
	}{
		{"empty hours", session.Draft{Place: "Food Bank", Date: "2024-05-01", Hours: ""}, "hours"},
		{"negative hours", session.Draft{Place: "Food Bank", Date: "2024-05-01", Hours: "-2"}, "hours"},
		{"text hours", session.Draft{Place: "Food Bank", Date: "2024-05-01", Hours: "two"}, "hours"},
		{"blank place", session.Draft{Place: "   ", Date: "2024-05-01", Hours: "2"}, "place"},
		{"blank date", session.Draft{Place: "Food Bank", Date: "", Hours: "2"}, "date"},
		{"bad date", session.Draft{Place: "Food Bank", Date: "01/05/2024", Hours: "2"}, "date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.SetDraft(tt.draft))
			_, err := c.SubmitForm(ctx)

			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, model.ErrValidation)

			assert.Equal(t, tt.draft, c.Form().Draft, "draft must be kept")
			assert.Empty(t, c.Entries())
			stored, err := st.ListEntries(ctx, p.ID)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestSubmitCreatesAndResetsForm(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := newController(t, st)
	p, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	e := submit(t, c, session.Draft{Place: " Food Bank ", Date: "2024-05-01", Hours: "3.5", Notes: "sorting"})
	assert.Equal(t, "Food Bank", e.Place)
	assert.Equal(t, 3.5, e.Hours)
	assert.Equal(t, p.ID, e.ProfileID)

	assert.Equal(t, session.Form{Mode: session.FormCreating, Draft: session.Draft{Date: "2024-05-17"}}, c.Form())
	assert.Equal(t, []model.Entry{e}, c.Entries())
	assert.Equal(t, 3.5, c.TotalHours())

	stored, err := st.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{e}, stored)
}

func TestEditFlow(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	e := submit(t, c, session.Draft{Place: "Shelter", Date: "2024-03-02", Hours: "2"})

	require.NoError(t, c.StartEdit(ctx, e.ID))
	f := c.Form()
	assert.Equal(t, session.FormEditing, f.Mode)
	assert.Equal(t, e.ID, f.EditingID)
	assert.Equal(t, session.Draft{Place: "Shelter", Date: "2024-03-02", Hours: "2"}, f.Draft)

	// Cancel discards the draft without touching the entry.
	c.CancelEdit()
	assert.Equal(t, session.FormCreating, c.Form().Mode)
	assert.Equal(t, []model.Entry{e}, c.Entries())

	require.NoError(t, c.StartEdit(ctx, e.ID))
	f = c.Form()
	f.Draft.Hours = "4.25"
	require.NoError(t, c.SetDraft(f.Draft))
	updated, err := c.SubmitForm(ctx)
	require.NoError(t, err)

	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, 4.25, updated.Hours)
	assert.Len(t, c.Entries(), 1)
	assert.Equal(t, session.FormCreating, c.Form().Mode)
}

func TestStartEditUnknownEntry(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	err = c.StartEdit(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, session.FormCreating, c.Form().Mode)
}

func TestStoreFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: openStore(t), err: fmt.Errorf("%w: disk full", model.ErrStorage)}
	c := newController(t, fs)
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	fs.fail = true
	draft := session.Draft{Place: "Library", Date: "2024-01-09", Hours: "1"}
	require.NoError(t, c.SetDraft(draft))
	_, err = c.SubmitForm(ctx)
	assert.ErrorIs(t, err, model.ErrStorage)
	assert.Equal(t, draft, c.Form().Draft)
	assert.Empty(t, c.Entries())

	// Retrying after the failure clears succeeds with the same draft.
	fs.fail = false
	e, err := c.SubmitForm(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Library", e.Place)
}

func TestDeleteLastEntryOnPageMovesBack(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	for day := 1; day <= 11; day++ {
		submit(t, c, session.Draft{Place: "Park", Date: fmt.Sprintf("2024-01-%02d", day), Hours: "1"})
	}
	require.Equal(t, 2, c.TotalPages())

	c.SetPage(2)
	page := c.Page()
	require.Len(t, page, 1)
	assert.Equal(t, "2024-01-01", page[0].Date, "oldest entry is last")

	require.NoError(t, c.DeleteEntry(ctx, page[0].ID))
	assert.Equal(t, 1, c.View().Page)
	assert.Len(t, c.Page(), 10)
	assert.Equal(t, 1, c.TotalPages())
}

func TestDeleteEditedEntryResetsForm(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	e := submit(t, c, session.Draft{Place: "Park", Date: "2024-01-01", Hours: "1"})

	require.NoError(t, c.StartEdit(ctx, e.ID))
	require.NoError(t, c.DeleteEntry(ctx, e.ID))
	assert.Equal(t, session.FormCreating, c.Form().Mode)
	assert.Empty(t, c.Entries())

	assert.ErrorIs(t, c.DeleteEntry(ctx, e.ID), model.ErrNotFound)
}

func TestDeleteEntryOfOtherProfile(t *testing.T) {
	ctx := context.Background()
	fs := &failingStore{Store: openStore(t), err: fmt.Errorf("%w: unexpected store call", model.ErrStorage)}
	c := newController(t, fs)
	bob, err := c.CreateProfile(ctx, "Bob")
	require.NoError(t, err)
	bobEntry := submit(t, c, session.Draft{Place: "Park", Date: "2024-01-01", Hours: "1"})

	_, err = c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	// Any store call would now fail with ErrStorage.
	fs.fail = true
	err = c.DeleteEntry(ctx, bobEntry.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NotErrorIs(t, err, model.ErrStorage)

	fs.fail = false
	stored, err := fs.ListEntries(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{bobEntry}, stored)
}

func TestYearFilterResetsPage(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	for day := 1; day <= 12; day++ {
		submit(t, c, session.Draft{Place: "Park", Date: fmt.Sprintf("2023-02-%02d", day), Hours: "1"})
	}
	submit(t, c, session.Draft{Place: "Zoo", Date: "2024-06-01", Hours: "2.5"})

	assert.Equal(t, []int{2024, 2023}, c.Years())
	c.SetPage(2)
	assert.Equal(t, 2, c.View().Page)

	c.SetYearFilter(2024)
	assert.Equal(t, 1, c.View().Page)
	assert.Len(t, c.Filtered(), 1)
	assert.Equal(t, 2.5, c.FilteredHours())
	assert.Equal(t, 14.5, c.TotalHours())

	c.SetYearFilter(query.AllYears)
	assert.Len(t, c.Filtered(), 13)
}

func TestSetPageClamps(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	c.SetPage(5)
	assert.Equal(t, 1, c.View().Page)
	c.SetPage(-1)
	assert.Equal(t, 1, c.View().Page)
}

func TestSwitchProfileResetsView(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	alice, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	submit(t, c, session.Draft{Place: "Park", Date: "2023-01-01", Hours: "1"})

	bob, err := c.CreateProfile(ctx, "Bob")
	require.NoError(t, err)
	assert.Empty(t, c.Entries(), "entries belong to one profile")

	require.NoError(t, c.SwitchProfile(ctx, alice.ID))
	c.SetYearFilter(2023)
	e := c.Entries()[0]
	require.NoError(t, c.StartEdit(ctx, e.ID))

	require.NoError(t, c.SwitchProfile(ctx, bob.ID))
	assert.Equal(t, session.View{ProfileID: bob.ID, Year: query.AllYears, Page: 1}, c.View())
	assert.Equal(t, session.FormCreating, c.Form().Mode)
	assert.Empty(t, c.Entries())

	assert.ErrorIs(t, c.SwitchProfile(ctx, "nope"), model.ErrNotFound)
}

func TestCreateProfileConflictAndValidation(t *testing.T) {
	ctx := context.Background()
	c := newController(t, openStore(t))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	_, err = c.CreateProfile(ctx, "Alice")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = c.CreateProfile(ctx, "  ")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Len(t, c.Profiles(), 1)
}

func TestDeleteActiveProfile(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := newController(t, st)
	_, err := c.CreateProfile(ctx, "Bob")
	require.NoError(t, err)
	submit(t, c, session.Draft{Place: "Park", Date: "2023-01-01", Hours: "1"})
	alice, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	require.NoError(t, c.DeleteProfile(ctx, alice.ID))
	active, ok := c.ActiveProfile()
	require.True(t, ok)
	assert.Equal(t, "Bob", active.Name)
	assert.Len(t, c.Entries(), 1)

	require.NoError(t, c.DeleteProfile(ctx, active.ID))
	assert.Equal(t, session.FormIdle, c.Form().Mode)
	assert.Empty(t, c.Profiles())
	assert.Empty(t, c.Entries())

	// The cascade reached the store too.
	stored, err := st.ListEntries(ctx, active.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, stored)
}

func TestNotFoundRefreshesSnapshot(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := newController(t, st)
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)
	e := submit(t, c, session.Draft{Place: "Park", Date: "2023-01-01", Hours: "1"})

	// Another process removes the entry behind the controller's back.
	require.NoError(t, st.DeleteEntry(ctx, e.ID))

	// The snapshot still has it, so editing starts.
	require.NoError(t, c.StartEdit(ctx, e.ID))
	require.NoError(t, c.SetDraft(session.Draft{Place: "Park", Date: "2023-01-01", Hours: "2"}))
	_, err = c.SubmitForm(ctx)
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)

	assert.Empty(t, c.Entries(), "snapshot reconciled with the store")
	assert.Equal(t, session.FormCreating, c.Form().Mode)
}

func TestNotFoundAfterProfileRemovedElsewhere(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	c := newController(t, st)
	alice, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	require.NoError(t, st.DeleteProfile(ctx, alice.ID))

	require.NoError(t, c.SetDraft(session.Draft{Place: "Park", Date: "2023-01-01", Hours: "2"}))
	_, err = c.SubmitForm(ctx)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, session.FormIdle, c.Form().Mode)
	assert.Empty(t, c.Profiles())
}

func TestStoreFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	fs := &failingStore{Store: openStore(t), err: fmt.Errorf("%w: disk full", model.ErrStorage)}
	c := session.New(fs, session.Options{Clock: fixedClock{today}, Logger: zap.New(core)})
	require.NoError(t, c.Load(ctx, ""))
	_, err := c.CreateProfile(ctx, "Alice")
	require.NoError(t, err)

	fs.fail = true
	require.NoError(t, c.SetDraft(session.Draft{Place: "Park", Date: "2024-01-01", Hours: "1"}))
	_, err = c.SubmitForm(ctx)
	require.Error(t, err)

	failed := logs.FilterMessage("submit entry failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "session", failed[0].ContextMap()["component"])
}

func TestTodayUsesClock(t *testing.T) {
	c := newController(t, openStore(t))
	assert.Equal(t, today, c.Today())
	assert.Equal(t, 2024, c.Today().Year())
}
