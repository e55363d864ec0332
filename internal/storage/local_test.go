package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasnerz/letax/internal/config"
)

func TestLocalReadWriteDelete(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx := context.Background()

	// Write creates intermediate directories.
	require.NoError(t, l.Write(ctx, "files/ev1/story/a.jpg", []byte("data")))

	got, err := l.Read(ctx, "files/ev1/story/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	require.NoError(t, l.Delete(ctx, "files/ev1/story/a.jpg"))
	_, err = l.Read(ctx, "files/ev1/story/a.jpg")
	assert.ErrorIs(t, err, ErrNotExist)
	assert.ErrorIs(t, l.Delete(ctx, "files/ev1/story/a.jpg"), ErrNotExist)
}

func TestNewSelectsBackend(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{DataDir: root}

	s, err := New("local", "", cfg)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), "x.txt", []byte("y")))
	assert.FileExists(t, filepath.Join(root, "x.txt"))

	_, err = New("nfs", "", cfg)
	assert.Error(t, err)
}
