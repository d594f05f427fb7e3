// Package jsonfile stores profiles and entries in a single human-readable
// JSON document.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Tiliavir/volunteer-log/internal/model"
)

// FileName is the document name inside the data directory.
const FileName = "volunteer_log.json"

// LegacyProfileName owns entries migrated from a file written before
// profiles existed.
const LegacyProfileName = "Default"

const documentVersion = 1

// document is the top-level structure stored on disk.
type document struct {
	Version  int             `json:"version"`
	Profiles []model.Profile `json:"profiles"`
	Entries  []model.Entry   `json:"entries"`
}

// legacyEntry is an entry of the older bare-array layout.
type legacyEntry struct {
	ID    string  `json:"id"`
	Place string  `json:"place"`
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
	Notes string  `json:"notes"`
}

// Store is a file-backed store. Every call reads the document and every
// mutation rewrites it before returning.
type Store struct {
	path string
}

// Open creates the document on first run and returns a store for it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating directories: %w", model.ErrStorage, err)
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(document{Version: documentVersion, Profiles: []model.Profile{}, Entries: []model.Entry{}}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", model.ErrStorage, path, err)
	}
	// Surface corruption at open time rather than on the first command.
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close is a no-op; the store holds no open handles.
func (s *Store) Close() error { return nil }

// load reads the document, migrating the legacy layout in place.
func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return document{}, fmt.Errorf("%w: reading %s: %w", model.ErrStorage, s.path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return s.migrateLegacy(trimmed)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Back up corrupt file and abort.
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		return document{}, fmt.Errorf("%w: corrupt JSON in %s (backed up to %s): %w", model.ErrStorage, s.path, backupPath, err)
	}
	return doc, nil
}

// migrateLegacy converts a bare entry array into a document owned by a
// single profile and persists it.
func (s *Store) migrateLegacy(data []byte) (document, error) {
	var legacy []legacyEntry
	if err := json.Unmarshal(data, &legacy); err != nil {
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		return document{}, fmt.Errorf("%w: corrupt JSON in %s (backed up to %s): %w", model.ErrStorage, s.path, backupPath, err)
	}

	if len(legacy) == 0 {
		doc := document{Version: documentVersion, Profiles: []model.Profile{}, Entries: []model.Entry{}}
		if err := s.save(doc); err != nil {
			return document{}, err
		}
		return doc, nil
	}

	owner := model.Profile{ID: uuid.NewString(), Name: LegacyProfileName}
	doc := document{Version: documentVersion, Profiles: []model.Profile{owner}, Entries: make([]model.Entry, 0, len(legacy))}
	for _, le := range legacy {
		id := le.ID
		if id == "" {
			id = uuid.NewString()
		}
		doc.Entries = append(doc.Entries, model.Entry{
			ID:        id,
			ProfileID: owner.ID,
			Place:     le.Place,
			Date:      le.Date,
			Hours:     le.Hours,
			Notes:     le.Notes,
		})
	}
	if err := s.save(doc); err != nil {
		return document{}, err
	}
	return doc, nil
}

// save atomically writes the document.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling JSON: %w", model.ErrStorage, err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing temp file: %w", model.ErrStorage, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming temp file: %w", model.ErrStorage, err)
	}
	return nil
}

func (d *document) profileIndex(id string) int {
	for i, p := range d.Profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (d *document) entryIndex(id string) int {
	for i, e := range d.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// withoutProfileEntries drops every entry owned by profileID.
func (d *document) withoutProfileEntries(profileID string) {
	kept := d.Entries[:0]
	for _, e := range d.Entries {
		if e.ProfileID != profileID {
			kept = append(kept, e)
		}
	}
	d.Entries = kept
}

func (s *Store) ListProfiles(_ context.Context) ([]model.Profile, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	out := append([]model.Profile{}, doc.Profiles...)
	model.SortProfiles(out)
	return out, nil
}

func (s *Store) CreateProfile(_ context.Context, name string) (model.Profile, error) {
	name, err := model.ValidateProfileName(name)
	if err != nil {
		return model.Profile{}, err
	}
	doc, err := s.load()
	if err != nil {
		return model.Profile{}, err
	}
	for _, p := range doc.Profiles {
		if p.Name == name {
			return model.Profile{}, fmt.Errorf("%w: profile %q already exists", model.ErrConflict, name)
		}
	}
	p := model.Profile{ID: uuid.NewString(), Name: name}
	doc.Profiles = append(doc.Profiles, p)
	if err := s.save(doc); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// DeleteProfile drops the profile and its entries in a single document write.
func (s *Store) DeleteProfile(_ context.Context, id string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	i := doc.profileIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: profile %q", model.ErrNotFound, id)
	}
	doc.withoutProfileEntries(id)
	doc.Profiles = append(doc.Profiles[:i], doc.Profiles[i+1:]...)
	return s.save(doc)
}

func (s *Store) ListEntries(_ context.Context, profileID string) ([]model.Entry, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if doc.profileIndex(profileID) < 0 {
		return nil, fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
	}
	out := []model.Entry{}
	for _, e := range doc.Entries {
		if e.ProfileID == profileID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) CreateEntry(_ context.Context, profileID string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	doc, err := s.load()
	if err != nil {
		return model.Entry{}, err
	}
	if doc.profileIndex(profileID) < 0 {
		return model.Entry{}, fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
	}
	e := model.Entry{ID: uuid.NewString(), ProfileID: profileID}.Apply(f.Normalize())
	doc.Entries = append(doc.Entries, e)
	if err := s.save(doc); err != nil {
		return model.Entry{}, err
	}
	return e, nil
}

func (s *Store) UpdateEntry(_ context.Context, id string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	doc, err := s.load()
	if err != nil {
		return model.Entry{}, err
	}
	i := doc.entryIndex(id)
	if i < 0 {
		return model.Entry{}, fmt.Errorf("%w: entry %q", model.ErrNotFound, id)
	}
	doc.Entries[i] = doc.Entries[i].Apply(f.Normalize())
	if err := s.save(doc); err != nil {
		return model.Entry{}, err
	}
	return doc.Entries[i], nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	i := doc.entryIndex(id)
	if i < 0 {
		return nil
	}
	doc.Entries = append(doc.Entries[:i], doc.Entries[i+1:]...)
	return s.save(doc)
}

func (s *Store) DeleteEntriesForProfile(_ context.Context, profileID string) error {
	doc, err := s.load()
	if err != nil {
		return err
	}
	before := len(doc.Entries)
	doc.withoutProfileEntries(profileID)
	if len(doc.Entries) == before {
		return nil
	}
	return s.save(doc)
}
