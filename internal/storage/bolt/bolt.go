// Package bolt stores profiles and entries in a bbolt key/value file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/Tiliavir/volunteer-log/internal/model"
)

// FileName is the database name inside the data directory.
const FileName = "volunteer_log.bolt"

const (
	bucketProfiles       = "profiles"        // key: profile id -> Profile JSON
	bucketProfileNames   = "profile_names"   // key: name -> profile id
	bucketEntries        = "entries"         // key: entry id -> entryRecord JSON
	bucketProfileEntries = "profile_entries" // nested per profile id: seq -> entry id
)

// entryRecord is the persisted form of an entry. Seq is its key in the
// owning profile's index bucket.
type entryRecord struct {
	model.Entry
	Seq uint64 `json:"seq"`
}

// Store is a bbolt-backed store. Each operation runs in one transaction.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file and its buckets.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating directories: %w", model.ErrStorage, err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", model.ErrStorage, path, err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketProfiles, bucketProfileNames, bucketEntries, bucketProfileEntries} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating buckets: %w", model.ErrStorage, err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// view and update wrap transaction failures as storage errors while letting
// domain errors through unchanged.
func (s *Store) view(fn func(tx *bbolt.Tx) error) error {
	return wrap(s.db.View(fn))
}

func (s *Store) update(fn func(tx *bbolt.Tx) error) error {
	return wrap(s.db.Update(fn))
}

func wrap(err error) error {
	if err == nil ||
		errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, model.ErrConflict) ||
		errors.Is(err, model.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", model.ErrStorage, err)
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func getEntry(tx *bbolt.Tx, id string) (entryRecord, bool, error) {
	v := tx.Bucket([]byte(bucketEntries)).Get([]byte(id))
	if v == nil {
		return entryRecord{}, false, nil
	}
	var rec entryRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return entryRecord{}, false, err
	}
	return rec, true, nil
}

func putEntry(tx *bbolt.Tx, rec entryRecord) error {
	data, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketEntries)).Put([]byte(rec.ID), data)
}

func profileExists(tx *bbolt.Tx, id string) bool {
	return tx.Bucket([]byte(bucketProfiles)).Get([]byte(id)) != nil
}

// deleteProfileEntries removes every entry of the profile and its index bucket.
func deleteProfileEntries(tx *bbolt.Tx, profileID string) error {
	index := tx.Bucket([]byte(bucketProfileEntries))
	own := index.Bucket([]byte(profileID))
	if own == nil {
		return nil
	}
	entries := tx.Bucket([]byte(bucketEntries))
	if err := own.ForEach(func(_, id []byte) error {
		return entries.Delete(id)
	}); err != nil {
		return err
	}
	return index.DeleteBucket([]byte(profileID))
}

func (s *Store) ListProfiles(_ context.Context) ([]model.Profile, error) {
	out := []model.Profile{}
	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketProfiles)).ForEach(func(_, v []byte) error {
			var p model.Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	model.SortProfiles(out)
	return out, nil
}

func (s *Store) CreateProfile(_ context.Context, name string) (model.Profile, error) {
	name, err := model.ValidateProfileName(name)
	if err != nil {
		return model.Profile{}, err
	}
	p := model.Profile{ID: uuid.NewString(), Name: name}
	data, err := json.Marshal(&p)
	if err != nil {
		return model.Profile{}, fmt.Errorf("%w: %w", model.ErrStorage, err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		names := tx.Bucket([]byte(bucketProfileNames))
		if names.Get([]byte(name)) != nil {
			return fmt.Errorf("%w: profile %q already exists", model.ErrConflict, name)
		}
		if err := tx.Bucket([]byte(bucketProfiles)).Put([]byte(p.ID), data); err != nil {
			return err
		}
		return names.Put([]byte(name), []byte(p.ID))
	})
	if err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func (s *Store) DeleteProfile(_ context.Context, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		profiles := tx.Bucket([]byte(bucketProfiles))
		v := profiles.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: profile %q", model.ErrNotFound, id)
		}
		var p model.Profile
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}
		if err := deleteProfileEntries(tx, id); err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketProfileNames)).Delete([]byte(p.Name)); err != nil {
			return err
		}
		return profiles.Delete([]byte(id))
	})
}

func (s *Store) ListEntries(_ context.Context, profileID string) ([]model.Entry, error) {
	out := []model.Entry{}
	err := s.view(func(tx *bbolt.Tx) error {
		if !profileExists(tx, profileID) {
			return fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
		}
		own := tx.Bucket([]byte(bucketProfileEntries)).Bucket([]byte(profileID))
		if own == nil {
			return nil
		}
		return own.ForEach(func(_, id []byte) error {
			rec, ok, err := getEntry(tx, string(id))
			if err != nil {
				return err
			}
			if ok {
				out = append(out, rec.Entry)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateEntry(_ context.Context, profileID string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	rec := entryRecord{Entry: model.Entry{ID: uuid.NewString(), ProfileID: profileID}.Apply(f.Normalize())}

	err := s.update(func(tx *bbolt.Tx) error {
		if !profileExists(tx, profileID) {
			return fmt.Errorf("%w: profile %q", model.ErrNotFound, profileID)
		}
		own, err := tx.Bucket([]byte(bucketProfileEntries)).CreateBucketIfNotExists([]byte(profileID))
		if err != nil {
			return err
		}
		seq, err := own.NextSequence()
		if err != nil {
			return err
		}
		rec.Seq = seq
		if err := own.Put(seqKey(seq), []byte(rec.ID)); err != nil {
			return err
		}
		return putEntry(tx, rec)
	})
	if err != nil {
		return model.Entry{}, err
	}
	return rec.Entry, nil
}

func (s *Store) UpdateEntry(_ context.Context, id string, f model.EntryFields) (model.Entry, error) {
	if err := f.Validate(); err != nil {
		return model.Entry{}, err
	}
	var updated model.Entry
	err := s.update(func(tx *bbolt.Tx) error {
		rec, ok, err := getEntry(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: entry %q", model.ErrNotFound, id)
		}
		rec.Entry = rec.Apply(f.Normalize())
		updated = rec.Entry
		return putEntry(tx, rec)
	})
	if err != nil {
		return model.Entry{}, err
	}
	return updated, nil
}

func (s *Store) DeleteEntry(_ context.Context, id string) error {
	return s.update(func(tx *bbolt.Tx) error {
		rec, ok, err := getEntry(tx, id)
		if err != nil || !ok {
			return err
		}
		if own := tx.Bucket([]byte(bucketProfileEntries)).Bucket([]byte(rec.ProfileID)); own != nil {
			if err := own.Delete(seqKey(rec.Seq)); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(bucketEntries)).Delete([]byte(id))
	})
}

func (s *Store) DeleteEntriesForProfile(_ context.Context, profileID string) error {
	return s.update(func(tx *bbolt.Tx) error {
		return deleteProfileEntries(tx, profileID)
	})
}
