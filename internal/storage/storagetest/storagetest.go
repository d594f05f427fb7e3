// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/storage"
)

// Factory opens a store rooted at dir. Calling it twice with the same dir
// must reopen the same data.
type Factory func(t *testing.T, dir string) storage.Store

// Run executes the shared suite against the backend built by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"ProfileIsolation", testProfileIsolation},
		{"CascadeDelete", testCascadeDelete},
		{"RoundTrip", testRoundTrip},
		{"CreateEntryValidation", testCreateEntryValidation},
		{"UnknownIDs", testUnknownIDs},
		{"DeleteEntryIdempotent", testDeleteEntryIdempotent},
		{"DeleteEntriesForProfile", testDeleteEntriesForProfile},
		{"ProfileNames", testProfileNames},
		{"InsertionOrder", testInsertionOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t, t.TempDir())
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}

	t.Run("Reopen", func(t *testing.T) {
		testReopen(t, open)
	})
}

func mustProfile(t *testing.T, s storage.Store, name string) model.Profile {
	t.Helper()
	p, err := s.CreateProfile(context.Background(), name)
	require.NoError(t, err)
	return p
}

func mustEntry(t *testing.T, s storage.Store, profileID, place, date string, hours float64) model.Entry {
	t.Helper()
	e, err := s.CreateEntry(context.Background(), profileID, model.EntryFields{Place: place, Date: date, Hours: hours})
	require.NoError(t, err)
	return e
}

func testProfileIsolation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustProfile(t, s, "Ada")
	b := mustProfile(t, s, "Bea")

	mustEntry(t, s, a.ID, "Shelter", "2024-01-01", 1)
	mustEntry(t, s, a.ID, "Library", "2024-02-01", 2)
	mustEntry(t, s, b.ID, "Park", "2024-03-01", 3)

	listA, err := s.ListEntries(ctx, a.ID)
	require.NoError(t, err)
	listB, err := s.ListEntries(ctx, b.ID)
	require.NoError(t, err)

	assert.Len(t, listA, 2)
	require.Len(t, listB, 1)
	for _, e := range listA {
		assert.Equal(t, a.ID, e.ProfileID)
	}
	assert.Equal(t, "Park", listB[0].Place)
}

func testCascadeDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")
	other := mustProfile(t, s, "Bea")
	e1 := mustEntry(t, s, p.ID, "Shelter", "2024-01-01", 1)
	mustEntry(t, s, p.ID, "Shelter", "2024-01-02", 1)
	kept := mustEntry(t, s, other.ID, "Park", "2024-01-03", 1)

	require.NoError(t, s.DeleteProfile(ctx, p.ID))

	_, err := s.ListEntries(ctx, p.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// No orphan remains addressable by id.
	_, err = s.UpdateEntry(ctx, e1.ID, model.EntryFields{Place: "x", Date: "2024-01-01", Hours: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Profile{other}, profiles)

	rest, err := s.ListEntries(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{kept}, rest)

	// The name is free again.
	_, err = s.CreateProfile(ctx, "Ada")
	assert.NoError(t, err)
}

func testRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")

	created, err := s.CreateEntry(ctx, p.ID, model.EntryFields{
		Place: "Shelter", Date: "2024-03-05", Hours: 2.5, Notes: "sorted donations",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.Entry{
		ID: created.ID, ProfileID: p.ID, Place: "Shelter", Date: "2024-03-05", Hours: 2.5, Notes: "sorted donations",
	}, list[0])

	updated, err := s.UpdateEntry(ctx, created.ID, model.EntryFields{
		Place: "Shelter", Date: "2024-03-05", Hours: 3.0, Notes: "sorted donations",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, p.ID, updated.ProfileID)

	list, err = s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3.0, list[0].Hours)
	assert.Equal(t, created.ID, list[0].ID)
}

func testCreateEntryValidation(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")

	bad := []model.EntryFields{
		{Place: "", Date: "2024-01-01", Hours: 1},
		{Place: "Shelter", Date: "not a date", Hours: 1},
		{Place: "Shelter", Date: "2024-01-01", Hours: -2},
	}
	for _, f := range bad {
		_, err := s.CreateEntry(ctx, p.ID, f)
		assert.ErrorIs(t, err, model.ErrValidation, "fields %+v", f)
	}

	e := mustEntry(t, s, p.ID, "Shelter", "2024-01-01", 1)
	_, err := s.UpdateEntry(ctx, e.ID, model.EntryFields{Place: " ", Date: "2024-01-01", Hours: 1})
	assert.ErrorIs(t, err, model.ErrValidation)

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{e}, list)
}

func testUnknownIDs(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.ListEntries(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.CreateEntry(ctx, "missing", model.EntryFields{Place: "x", Date: "2024-01-01", Hours: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.UpdateEntry(ctx, "missing", model.EntryFields{Place: "x", Date: "2024-01-01", Hours: 1})
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.ErrorIs(t, s.DeleteProfile(ctx, "missing"), model.ErrNotFound)
}

func testDeleteEntryIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")
	e := mustEntry(t, s, p.ID, "Shelter", "2024-01-01", 1)
	keep := mustEntry(t, s, p.ID, "Shelter", "2024-01-02", 2)

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	require.NoError(t, s.DeleteEntry(ctx, "never-existed"))

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{keep}, list)
}

func testDeleteEntriesForProfile(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")
	mustEntry(t, s, p.ID, "Shelter", "2024-01-01", 1)
	mustEntry(t, s, p.ID, "Shelter", "2024-01-02", 1)

	require.NoError(t, s.DeleteEntriesForProfile(ctx, p.ID))
	require.NoError(t, s.DeleteEntriesForProfile(ctx, p.ID))

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// The profile itself survives and accepts new entries.
	mustEntry(t, s, p.ID, "Shelter", "2024-01-03", 1)
}

func testProfileNames(t *testing.T, s storage.Store) {
	ctx := context.Background()

	_, err := s.CreateProfile(ctx, "   ")
	assert.ErrorIs(t, err, model.ErrValidation)

	mustProfile(t, s, "zoe")
	mustProfile(t, s, "Adam")
	p := mustProfile(t, s, "  bob  ")
	assert.Equal(t, "bob", p.Name)

	_, err = s.CreateProfile(ctx, "bob")
	assert.ErrorIs(t, err, model.ErrConflict)
	_, err = s.CreateProfile(ctx, " Adam")
	assert.ErrorIs(t, err, model.ErrConflict)

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	var names []string
	for _, pr := range profiles {
		names = append(names, pr.Name)
	}
	assert.Equal(t, []string{"Adam", "bob", "zoe"}, names)
}

func testInsertionOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustProfile(t, s, "Ada")
	var want []string
	for _, d := range []string{"2024-05-01", "2023-01-01", "2024-05-01", "2025-12-31"} {
		want = append(want, mustEntry(t, s, p.ID, "Shelter", d, 1).ID)
	}

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	var got []string
	for _, e := range list {
		got = append(got, e.ID)
	}
	assert.Equal(t, want, got)
}

func testReopen(t *testing.T, open Factory) {
	ctx := context.Background()
	dir := t.TempDir()

	s := open(t, dir)
	p := mustProfile(t, s, "Ada")
	e := mustEntry(t, s, p.ID, "Shelter", "2024-03-05", 2.5)
	require.NoError(t, s.Close())

	// Opening again must not reset or duplicate the schema.
	s = open(t, dir)
	t.Cleanup(func() { _ = s.Close() })

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Profile{p}, profiles)

	list, err := s.ListEntries(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.Entry{e}, list)
}
