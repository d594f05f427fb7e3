package bolt_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/volunteer-log/internal/storage"
	"github.com/Tiliavir/volunteer-log/internal/storage/bolt"
	"github.com/Tiliavir/volunteer-log/internal/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, dir string) storage.Store {
		s, err := bolt.Open(filepath.Join(dir, bolt.FileName))
		require.NoError(t, err)
		return s
	})
}
