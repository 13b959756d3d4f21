package bufio

import (
	_bufio "bufio"
	"bytes"
	"io"
)

// BytesReader serves lines straight out of the slice it was created with.
// Slices returned by ReadUpTo alias that slice.
type BytesReader struct {
	*bytes.Reader
	buf []byte
}

func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{Reader: bytes.NewReader(b), buf: b}
}

func (r *BytesReader) ReadUpTo(delim byte) ([]byte, bool, error) {
	off := len(r.buf) - r.Len()
	rest := r.buf[off:]
	n := bytes.IndexByte(rest, delim) + 1
	var err error
	if n == 0 {
		n, err = len(rest), io.EOF
	}
	if _, serr := r.Seek(int64(n), io.SeekCurrent); serr != nil {
		return nil, false, serr
	}
	return rest[:n:n], true, err
}

var _ BufferedReader = &BytesReader{}

// BufferWrapper reads ahead of what it returns.
type BufferWrapper struct {
	*_bufio.Reader
}

func NewBufferWrapper(r io.Reader, size int) *BufferWrapper {
	return &BufferWrapper{Reader: _bufio.NewReaderSize(r, size)}
}

func (w *BufferWrapper) ReadUpTo(delim byte) ([]byte, bool, error) {
	b, err := w.ReadSlice(delim)
	return b, false, err
}

var _ BufferedReader = &BufferWrapper{}
