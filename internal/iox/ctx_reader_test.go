package iox

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextReader_Success(t *testing.T) {
	data := []byte("hello world")
	reader := NewContextReader(t.Context(), bytes.NewReader(data))

	buf := make([]byte, len(data))
	n, err := reader.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)
}

func TestNewContextReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	reader := NewContextReader(ctx, bytes.NewReader([]byte("test")))
	n, err := reader.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewContextReader_WithDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	data := []byte("timeout test")
	reader := NewContextReader(ctx, bytes.NewReader(data))
	buf := make([]byte, len(data))

	n, err := reader.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, len(data), n)

	<-ctx.Done()
	n, err = reader.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestNewContextReadCloser_ForwardsClose(t *testing.T) {
	src := &closeRecorder{Reader: bytes.NewReader([]byte("data"))}
	rc := NewContextReadCloser(t.Context(), src)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "data", string(data))
	require.NoError(t, rc.Close())
	require.True(t, src.closed)
}
