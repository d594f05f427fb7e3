// Package storage defines the durable profile and entry store and opens one
// of its backends.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/storage/bolt"
	"github.com/Tiliavir/volunteer-log/internal/storage/jsonfile"
	"github.com/Tiliavir/volunteer-log/internal/storage/sqlite"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// Backends lists every supported backend name.
var Backends = []string{BackendJSON, BackendBolt, BackendSQLite}

// ProfileStore manages profiles.
type ProfileStore interface {
	// ListProfiles returns all profiles ordered by name.
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	CreateProfile(ctx context.Context, name string) (model.Profile, error)
	// DeleteProfile removes the profile together with all of its entries.
	DeleteProfile(ctx context.Context, id string) error
}

// EntryStore manages entries scoped by profile.
type EntryStore interface {
	// ListEntries returns the profile's entries in insertion order. It fails
	// with model.ErrNotFound when the profile does not exist.
	ListEntries(ctx context.Context, profileID string) ([]model.Entry, error)
	CreateEntry(ctx context.Context, profileID string, f model.EntryFields) (model.Entry, error)
	UpdateEntry(ctx context.Context, id string, f model.EntryFields) (model.Entry, error)
	// DeleteEntry is idempotent: deleting a missing id is not an error.
	DeleteEntry(ctx context.Context, id string) error
	DeleteEntriesForProfile(ctx context.Context, profileID string) error
}

// Store is the full persistence boundary used by the session controller.
type Store interface {
	ProfileStore
	EntryStore
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Backend string
	Dir     string
}

// Open creates the data directory layout if needed and opens the backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	var (
		st  Store
		err error
	)
	switch opts.Backend {
	case BackendJSON, "":
		st, err = jsonfile.Open(filepath.Join(opts.Dir, jsonfile.FileName))
	case BackendBolt:
		st, err = bolt.Open(filepath.Join(opts.Dir, bolt.FileName))
	case BackendSQLite:
		st, err = sqlite.Open(ctx, filepath.Join(opts.Dir, sqlite.FileName))
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}
