package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planStub struct {
	Filters int `json:"filters"`
}

func TestStore_PutThenGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Put("find printers in venice", planStub{Filters: 2}))

	var got planStub
	found, err := s.Get("find printers in venice", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, got.Filters)
}

func TestStore_MissOnUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	s, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var got planStub
	found, err := s.Get("never cached", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RebuildsIndexFromExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.jsonl")
	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Put("key one", planStub{Filters: 5}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = s2.Close() }()

	var got planStub
	found, err := s2.Get("key one", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 5, got.Filters)
}
