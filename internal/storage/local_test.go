package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now time.Time) (*LocalStore, string) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	s.now = func() time.Time { return now }
	return s, dir
}

func TestLocalStoreUpload(t *testing.T) {
	now := time.UnixMilli(1718000000000)
	s, dir := newTestStore(t, now)
	ctx := context.Background()

	p, err := s.Upload(ctx, "Me.PNG", "image/png", strings.NewReader("first"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/1718000000000.png", p)

	b, err := os.ReadFile(filepath.Join(dir, "1718000000000.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	t.Run("same millisecond never overwrites", func(t *testing.T) {
		p2, err := s.Upload(ctx, "other.png", "image/png", strings.NewReader("second"))
		require.NoError(t, err)
		assert.Equal(t, "uploads/1718000000000-1.png", p2)

		b, err := os.ReadFile(filepath.Join(dir, "1718000000000.png"))
		require.NoError(t, err)
		assert.Equal(t, "first", string(b))
	})

	t.Run("no extension", func(t *testing.T) {
		s, _ := newTestStore(t, now)
		p, err := s.Upload(ctx, "avatar", "", strings.NewReader("x"))
		require.NoError(t, err)
		assert.Equal(t, "uploads/1718000000000", p)
	})
}

func TestLocalStoreOpen(t *testing.T) {
	s, _ := newTestStore(t, time.UnixMilli(1700000000000))
	ctx := context.Background()

	p, err := s.Upload(ctx, "a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	obj, err := s.Open(ctx, p)
	require.NoError(t, err)
	defer obj.Body.Close()

	b, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))
	assert.Equal(t, int64(9), obj.Size)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = s.Open(ctx, "uploads/missing.png")
	assert.True(t, errors.Is(err, ErrNotExist))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, _ := newTestStore(t, time.Now())
	ctx := context.Background()

	for _, p := range []string{
		"uploads/../secret",
		"uploads/a/b.png",
		"../uploads/a.png",
		"other/a.png",
		"uploads/",
		"uploads/..",
		`uploads/..\x`,
		"a.png",
	} {
		_, err := s.Open(ctx, p)
		assert.True(t, errors.Is(err, ErrInvalidPath), p)
		assert.True(t, errors.Is(s.Delete(ctx, p), ErrInvalidPath), p)
	}
}

func TestLocalStoreDelete(t *testing.T) {
	s, dir := newTestStore(t, time.UnixMilli(1700000000000))
	ctx := context.Background()

	p, err := s.Upload(ctx, "a.jpg", "image/jpeg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, p))
	_, err = os.Stat(filepath.Join(dir, "1700000000000.jpg"))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, errors.Is(s.Delete(ctx, p), ErrNotExist))
}

func TestObjectName(t *testing.T) {
	now := time.UnixMilli(42)
	assert.Equal(t, "42.jpeg", objectName(now, "dir/photo.JPEG", 0))
	assert.Equal(t, "42-3.gif", objectName(now, "x.gif", 3))
	assert.Equal(t, "42", objectName(now, "", 0))
}
