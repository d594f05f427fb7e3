package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Tiliavir/volunteer-log/internal/storage"
	"github.com/Tiliavir/volunteer-log/internal/storage/bolt"
	"github.com/Tiliavir/volunteer-log/internal/storage/jsonfile"
	"github.com/Tiliavir/volunteer-log/internal/storage/sqlite"
)

func TestOpenBackends(t *testing.T) {
	tests := []struct {
		backend  string
		wantFile string
	}{
		{"", jsonfile.FileName},
		{storage.BackendJSON, jsonfile.FileName},
		{storage.BackendBolt, bolt.FileName},
		{storage.BackendSQLite, sqlite.FileName},
	}
	for _, tt := range tests {
		t.Run("backend="+tt.backend, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "data")
			s, err := storage.Open(context.Background(), storage.Options{Backend: tt.backend, Dir: dir})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() { _ = s.Close() }()

			if _, err := os.Stat(filepath.Join(dir, tt.wantFile)); err != nil {
				t.Errorf("expected %s to exist: %v", tt.wantFile, err)
			}
			profiles, err := s.ListProfiles(context.Background())
			if err != nil {
				t.Fatalf("ListProfiles: %v", err)
			}
			if len(profiles) != 0 {
				t.Errorf("ListProfiles = %d profiles, want 0", len(profiles))
			}
		})
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Options{Backend: "csv", Dir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Options{Backend: storage.BackendJSON})
	if err == nil {
		t.Fatal("expected error for empty dir, got nil")
	}
}
