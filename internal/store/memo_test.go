package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestMemo(t *testing.T) *Memo {
	t.Helper()
	m, err := OpenMemo(filepath.Join(t.TempDir(), MemoDBName))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestOpenMemo_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), MemoDBName)
	m, err := OpenMemo(path)
	require.NoError(t, err)
	defer m.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenMemo_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), MemoDBName)
	for i := 0; i < 3; i++ {
		m, err := OpenMemo(path)
		require.NoError(t, err, "iteration %d", i)
		m.Close()
	}
}

func TestMemo_GetPut(t *testing.T) {
	ctx := context.Background()
	m := openTestMemo(t)

	_, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "k1", []byte("result-1")))

	got, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "result-1", string(got))
}

func TestMemo_PutIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	m := openTestMemo(t)

	require.NoError(t, m.Put(ctx, "k1", []byte("first")))
	require.NoError(t, m.Put(ctx, "k1", []byte("second")))

	got, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", string(got))
}

func TestMemo_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), MemoDBName)

	m1, err := OpenMemo(path)
	require.NoError(t, err)
	require.NoError(t, m1.Put(ctx, "k1", []byte("durable")))
	require.NoError(t, m1.Close())

	m2, err := OpenMemo(path)
	require.NoError(t, err)
	defer m2.Close()

	got, ok, err := m2.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", string(got))
}

func TestMemo_ClearAll(t *testing.T) {
	ctx := context.Background()
	m := openTestMemo(t)

	require.NoError(t, m.Put(ctx, "k1", []byte("a")))
	require.NoError(t, m.Put(ctx, "k2", []byte("b")))

	n, err := m.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, m.ClearAll(ctx))

	n, err = m.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Cleared keys are writable again.
	require.NoError(t, m.Put(ctx, "k1", []byte("new")))
	got, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(got))
}
