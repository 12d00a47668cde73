package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "ocred.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutAndList(t *testing.T) {
	s := openTestStore(t)

	rec := ContainerRecord{ID: "c1", Image: "hello.wasm", Status: "running", CreatedAt: time.Now()}
	require.NoError(t, s.Put(rec))

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, "running", records[0].Status)
}

func TestStorePutUpserts(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(ContainerRecord{ID: "c1", Status: "running"}))
	require.NoError(t, s.Put(ContainerRecord{ID: "c1", Status: "stopped", ExitCode: 0}))

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stopped", records[0].Status)
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put(ContainerRecord{ID: "c1", Status: "running"}))
	require.NoError(t, s.Delete("c1"))

	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreListEmpty(t *testing.T) {
	s := openTestStore(t)
	records, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}
