package bufio

import "io"

// ByteReader reads a source one byte at a time without reading ahead, so
// the source is left positioned right after the last byte returned.
type ByteReader struct {
	r   io.Reader
	br  io.ByteReader
	buf [1]byte
	err error
}

// NewByteReader wraps r. Sources that already implement io.ByteReader are
// used directly.
func NewByteReader(r io.Reader) *ByteReader {
	if br, ok := r.(*ByteReader); ok {
		return br
	}
	br, _ := r.(io.ByteReader)
	return &ByteReader{r: r, br: br}
}

// ReadByte returns the next byte. It returns ErrNoData when the source
// produced nothing without an error.
func (r *ByteReader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.br != nil {
		b, err := r.br.ReadByte()
		if err != nil {
			r.err = err
		}
		return b, err
	}
	n, err := r.r.Read(r.buf[:])
	if n > 0 {
		if err != nil {
			r.err = err
		}
		return r.buf[0], nil
	}
	if err != nil {
		r.err = err
		return 0, err
	}
	return 0, ErrNoData
}

// Read reads at most one byte, so that a ByteReader shared between several
// stream readers never consumes more than the reader asking for it.
func (r *ByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b, err := r.ReadByte()
	if err == ErrNoData {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	p[0] = b
	return 1, nil
}
