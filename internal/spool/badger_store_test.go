package spool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBadgerStoreSaveLoadDelete(t *testing.T) {
	store, err := OpenBadgerStore(BadgerStoreOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	r1 := NewRecord("a/b", []byte("hello"), QoS1, false)
	r1.ID = 1
	r2 := NewRecord("a/c", []byte("world"), QoS0, true)
	r2.ID = 2

	require.NoError(t, store.Save(r1))
	require.NoError(t, store.Save(r2))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, uint64(1), loaded[0].ID)
	require.Equal(t, uint64(2), loaded[1].ID)
	require.Equal(t, "a/b", loaded[0].Topic)
	require.Equal(t, []byte("hello"), loaded[0].Payload)

	require.NoError(t, store.Delete(1))
	loaded, err = store.LoadAll()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, uint64(2), loaded[0].ID)
}

func TestSpoolRecoversFromPersistentStore(t *testing.T) {
	store, err := OpenBadgerStore(BadgerStoreOptions{InMemory: true})
	require.NoError(t, err)

	r1 := NewRecord("a/b", []byte("hello"), QoS1, false)
	r1.ID = 5
	require.NoError(t, store.Save(r1))

	s, err := New(Config{MaxBytes: 1 << 20, Storage: StoragePersistent, Store: store})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec, ok := s.Get(5)
	require.True(t, ok)
	require.Equal(t, "a/b", rec.Topic)

	next, err := s.Admit(NewRecord("a/d", []byte("x"), QoS1, false))
	require.NoError(t, err)
	require.Greater(t, next, uint64(5))
}
