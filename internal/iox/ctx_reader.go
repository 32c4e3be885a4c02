// Package iox contains io helpers shared by the store and the archive codec.
package iox

import (
	"context"
	"io"
	"time"
)

// NewContextReader wraps an io.Reader with one that checks ctx.Done() on each Read call.
//
// If ctx has a deadline and if r has a `SetReadDeadline(time.Time) error` method,
// then it is called with the deadline. Readers that reject deadlines, such as regular
// files, are still wrapped.
func NewContextReader(ctx context.Context, r io.Reader) io.Reader {
	if deadline, ok := ctx.Deadline(); ok {
		if d, ok := r.(interface{ SetReadDeadline(time.Time) error }); ok {
			_ = d.SetReadDeadline(deadline)
		}
	}
	return &contextReader{ctx: ctx, r: r}
}

// NewContextReadCloser is NewContextReader for an io.ReadCloser. Close is forwarded.
func NewContextReadCloser(ctx context.Context, rc io.ReadCloser) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{NewContextReader(ctx, rc), rc}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (n int, err error) {
	if err = r.ctx.Err(); err != nil {
		return 0, err
	}
	if n, err = r.r.Read(p); err != nil {
		return n, err
	}
	return n, r.ctx.Err()
}
