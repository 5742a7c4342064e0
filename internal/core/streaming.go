package core

import (
	"fmt"
	"io"
)

// sizeLimitReader counts bytes read and fails with ErrFileTooLarge once
// more than limit bytes have been read. A non-positive limit disables the
// check. Unlike io.LimitReader it reports the overrun instead of silently
// truncating the upload.
type sizeLimitReader struct {
	reader    io.Reader
	limit     int64
	BytesRead int64
}

func newSizeLimitReader(r io.Reader, limit int64) *sizeLimitReader {
	return &sizeLimitReader{reader: r, limit: limit}
}

// Read implements io.Reader.
func (r *sizeLimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.limit > 0 && r.BytesRead > r.limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.limit)
	}
	return n, err
}
