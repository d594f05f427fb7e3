// Package sqlite stores profiles and entries in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/Tiliavir/volunteer-log/internal/model"
)

// FileName is the database name inside the data directory.
const FileName = "volunteer_log.db"

// Store is a SQLite-backed store.
type Store struct {
	db *sql.DB
}

// Open opens and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %w", model.ErrStorage, err)
	}

	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %w", model.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping sqlite db: %w", model.ErrStorage, err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: run migrations: %w", model.ErrStorage, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", model.ErrStorage, op, err)
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func profileExists(ctx context.Context, q queryer, id string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE id = ?`, id).Scan(&n); err != nil {
		return false, storageErr("check profile", err)
	}
	return n > 0, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM profiles ORDER BY name`)
	if err != nil {
		return nil, storageErr("list profiles", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Profile{}
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, storageErr("scan profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list profiles", err)
	}
	model.SortProfiles(out)
	return out, nil
}

func (s *Store) CreateProfile(ctx context.Context, name string) (model.Profile, error) {
	name, err := model.ValidateProfileName(name)
	if err != nil {
		return model.Profile{}, err
	}

	var taken int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM profiles WHERE name = ?`, name).Scan(&taken); err != nil {
		return model.Profile{}, storageErr("check profile name", err)
	}
	if taken > 0 {
		return model.Profile{}, fmt.Errorf("%w: profile %q already exists", model.ErrConflict, name)
	}

	p := model.Profile{ID: uuid.NewString(), Name: name}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO profiles (id, name) VALUES (?, ?)`, p.ID, p.Name); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.Profile{}, fmt.Errorf("%w: profile %q already exists", model.ErrConflict, name)
		}
		return model.Profile{}, storageErr("insert profile", err)
	}
	return p, nil
}

// DeleteProfile removes the profile's entries and the profile in one
// transaction.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin delete profile", err)
	}
	defer func() { _ = tx.Rollback() }()

	ok, err := profileExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: profile %q", model.ErrNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE profile_id = ?`, id); err != nil {
		return storageErr("delete profile entries", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return storageErr("delete profile", err)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit delete profile", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, profileID string) ([]model.Entry, error) {
	ok, err := profileExists(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, profile_id, place, date, hours, notes FROM entries WHERE profile_id = ? ORDER BY rowid`,
		profileID,
	)
	if err != nil {
		return nil, storageErr("list entries", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Entry{}
	for rows.Next() {
		var e model.Entry
		if err := rows.Scan(&e.ID, &e.ProfileID, &e.Place, &e.Date, &e.Hours, &e.Notes); err != nil {
			return nil, storageErr("scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list entries", err)
	}
	return out, nil
}

func (s *Store) CreateEntry(ctx context.Context, profileID string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	ok, err := profileExists(ctx, s.db, profileID)
	if err != nil {
		return model.Entry{}, err
	}
	if !ok {
		return model.Entry{}, fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
	}

	e := model.Entry{ID: uuid.NewString(), ProfileID: profileID}.Apply(f.Normalize())
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, profile_id, place, date, hours, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProfileID, e.Place, e.Date, e.Hours, e.Notes,
	); err != nil {
		return model.Entry{}, storageErr("insert entry", err)
	}
	return e, nil
}

func (s *Store) UpdateEntry(ctx context.Context, id string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	f = f.Normalize()

	var e model.Entry
	err := s.db.QueryRowContext(ctx,
		`UPDATE entries SET place = ?, date = ?, hours = ?, notes = ? WHERE id = ?
		 RETURNING id, profile_id, place, date, hours, notes`,
		f.Place, f.Date, f.Hours, f.Notes, id,
	).Scan(&e.ID, &e.ProfileID, &e.Place, &e.Date, &e.Hours, &e.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, fmt.Errorf("%w: entry %q", model.ErrNotFound, id)
	}
	if err != nil {
		return model.Entry{}, storageErr("update entry", err)
	}
	return e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return storageErr("delete entry", err)
	}
	return nil
}

func (s *Store) DeleteEntriesForProfile(ctx context.Context, profileID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE profile_id = ?`, profileID); err != nil {
		return storageErr("delete profile entries", err)
	}
	return nil
}
