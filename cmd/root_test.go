package cmd

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/storage"
)

func TestFindProfile(t *testing.T) {
	profiles := []model.Profile{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "bob"},
		{ID: "p3", Name: "Bob"},
	}
	tests := []struct {
		ref     string
		wantID  string
		wantErr error
	}{
		{"p1", "p1", nil},
		{"Alice", "p1", nil},
		{"alice", "p1", nil},
		{"  Alice ", "p1", nil},
		{"Bob", "p3", nil},
		{"BOB", "", model.ErrConflict},
		{"Carol", "", model.ErrNotFound},
	}
	for _, tt := range tests {
		got, err := findProfile(profiles, tt.ref)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("findProfile(%q) error = %v, want %v", tt.ref, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got.ID != tt.wantID {
			t.Errorf("findProfile(%q) = %v, %v; want %s", tt.ref, got, err, tt.wantID)
		}
	}
}

func TestFindEntry(t *testing.T) {
	entries := []model.Entry{
		{ID: "abc123"},
		{ID: "abd456"},
		{ID: "ab"},
	}
	tests := []struct {
		ref     string
		wantID  string
		wantErr error
	}{
		{"abc123", "abc123", nil},
		{"abc", "abc123", nil},
		{"ab", "ab", nil},
		{"a", "", model.ErrConflict},
		{"zzz", "", model.ErrNotFound},
		{" ", "", model.ErrValidation},
	}
	for _, tt := range tests {
		got, err := findEntry(entries, tt.ref)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("findEntry(%q) error = %v, want %v", tt.ref, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got.ID != tt.wantID {
			t.Errorf("findEntry(%q) = %v, %v; want %s", tt.ref, got, err, tt.wantID)
		}
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"", ""},
		{"abc", "abc"},
		{"12345678", "12345678"},
		{"5b0e7f1c-8d2a-4f4e-9f55-0c1f3a2b9d11", "5b0e7f1c"},
	}
	for _, tt := range tests {
		if got := shortID(tt.id); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&model.ValidationError{Field: "hours", Reason: "must not be empty"}, 1},
		{fmt.Errorf("%w: profile %q", model.ErrNotFound, "x"), 1},
		{fmt.Errorf("%w: duplicate", model.ErrConflict), 1},
		{fmt.Errorf("%w: disk full", model.ErrStorage), 2},
		{errors.New("config broken"), 2},
		{errors.Join(model.ErrNotFound, model.ErrStorage), 2},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type closeCountingStore struct {
	storage.Store
	closes int
	err    error
}

func (s *closeCountingStore) Close() error {
	s.closes++
	return s.err
}

func TestAppFailClosesStoreOnce(t *testing.T) {
	var codes []int
	exit = func(code int) { codes = append(codes, code) }
	t.Cleanup(func() { exit = os.Exit })

	st := &closeCountingStore{}
	a := &app{log: zap.NewNop(), store: st}
	a.fail(fmt.Errorf("%w: entry %q", model.ErrNotFound, "x"))
	if err := a.close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	if st.closes != 1 {
		t.Errorf("store closed %d times, want 1", st.closes)
	}
	if len(codes) != 1 || codes[0] != 1 {
		t.Errorf("exit codes = %v, want [1]", codes)
	}
}

func TestAppFailReportsCloseError(t *testing.T) {
	var codes []int
	exit = func(code int) { codes = append(codes, code) }
	t.Cleanup(func() { exit = os.Exit })

	st := &closeCountingStore{err: fmt.Errorf("%w: flush failed", model.ErrStorage)}
	a := &app{log: zap.NewNop(), store: st}
	a.fail(&model.ValidationError{Field: "hours", Reason: "must not be empty"})

	// A failed close turns a user error into a storage failure.
	if len(codes) != 1 || codes[0] != 2 {
		t.Errorf("exit codes = %v, want [2]", codes)
	}
}
