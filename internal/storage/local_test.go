package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_RoundTrip(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	payload := make([]byte, 70_000)
	_, _ = rand.Read(payload)

	info, err := s.Put(ctx, bytes.NewReader(payload), PutOptions{Size: int64(len(payload)), ContentType: "application/pdf"})
	require.NoError(t, err)
	assert.Regexp(t, localHandleRegex, info.Handle)
	assert.Equal(t, int64(len(payload)), info.Size)
	assert.Len(t, info.ETag, 64)

	rc, got, err := s.Get(ctx, info.Handle)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, info.Size, got.Size)
}

func TestLocal_DistinctHandles(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	a, err := s.Put(ctx, bytes.NewReader([]byte("same")), PutOptions{Size: -1})
	require.NoError(t, err)
	b, err := s.Put(ctx, bytes.NewReader([]byte("same")), PutOptions{Size: -1})
	require.NoError(t, err)
	assert.NotEqual(t, a.Handle, b.Handle)
}

func TestLocal_SizeMismatch(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Put(context.Background(), bytes.NewReader([]byte("abc")), PutOptions{Size: 10})
	assert.Error(t, err)
}

func TestLocal_DeleteAndNotFound(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	info, err := s.Put(ctx, bytes.NewReader([]byte("x")), PutOptions{Size: 1})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, info.Handle))
	_, _, err = s.Get(ctx, info.Handle)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, info.Handle), ErrNotFound)
}

func TestLocal_RejectsForeignHandles(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for _, h := range []string{"", "../etc/passwd", "ab", "documents/123", "/abs/path"} {
		_, _, err := s.Get(ctx, h)
		assert.ErrorIs(t, err, ErrNotFound, h)
		assert.ErrorIs(t, s.Delete(ctx, h), ErrNotFound, h)
	}
}

func TestLocal_CanceledContext(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, bytes.NewReader([]byte("x")), PutOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
