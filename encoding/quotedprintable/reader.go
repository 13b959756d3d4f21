// Package quotedprintable implements streaming Quoted-Printable decoding and
// encoding with soft line break handling.
package quotedprintable

import (
	"bytes"
	"fmt"
	"io"

	"github.com/teawithsand/smtpc/internal/errs"
)

var (
	ErrInvalidEncoding       = errs.ErrInvalidEncoding
	ErrUnexpectedEndOfStream = errs.ErrUnexpectedEndOfStream
	ErrWriterFinalized       = errs.ErrWriterFinalized
)

type readerState int

const (
	stateLiteral readerState = iota
	stateSeenEquals
	stateSeenEqualsHex
	stateSeenEqualsCR
)

func (s readerState) String() string {
	switch s {
	case stateLiteral:
		return "literal"
	case stateSeenEquals:
		return "seen-equals"
	case stateSeenEqualsHex:
		return "seen-equals-hex"
	case stateSeenEqualsCR:
		return "seen-equals-cr"
	}
	return fmt.Sprintf("readerState(%d)", int(s))
}

func unhex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// Reader decodes Quoted-Printable data read from the underlying source.
// Soft line breaks ("=\n" and "=\r\n") are removed.
type Reader struct {
	r      io.Reader
	strict bool
	state  readerState
	hi     byte
	latch  errs.Latch
	eof    bool
}

type ReaderOptionFunc func(r *Reader) error

// WithStrict makes the reader reject non-ASCII literal bytes and an "=\r"
// that is not followed by "\n", including one at the end of the input, as
// well as a lone "=" at the end. A lenient reader drops such "=\r" and
// keeps the byte that follows.
func WithStrict(strict bool) ReaderOptionFunc {
	return func(r *Reader) error {
		r.strict = strict
		return nil
	}
}

func NewReader(r io.Reader, options ...ReaderOptionFunc) (*Reader, error) {
	qr := &Reader{r: r}
	for _, o := range options {
		if err := o(qr); err != nil {
			return nil, err
		}
	}
	return qr, nil
}

func (r *Reader) invalid(b byte) error {
	return r.latch.Set(fmt.Errorf("unexpected byte %q in state %s: %w", b, r.state, ErrInvalidEncoding))
}

// decode transforms p[:n] in place and returns the length of the output.
func (r *Reader) decode(p []byte, n int) (int, error) {
	w := 0
	for i := 0; i < n; i++ {
		b := p[i]
		switch r.state {
		case stateSeenEqualsCR:
			if b == '\n' {
				r.state = stateLiteral
				continue
			}
			if r.strict {
				return w, r.invalid(b)
			}
			r.state = stateLiteral
			fallthrough
		case stateLiteral:
			if b == '=' {
				r.state = stateSeenEquals
				continue
			}
			if r.strict && b >= 0x80 {
				return w, r.invalid(b)
			}
			p[w] = b
			w++
		case stateSeenEquals:
			switch b {
			case '\n':
				r.state = stateLiteral
				continue
			case '\r':
				r.state = stateSeenEqualsCR
				continue
			}
			v, ok := unhex(b)
			if !ok {
				return w, r.invalid(b)
			}
			r.hi = v
			r.state = stateSeenEqualsHex
		case stateSeenEqualsHex:
			v, ok := unhex(b)
			if !ok {
				return w, r.invalid(b)
			}
			p[w] = r.hi<<4 | v
			w++
			r.state = stateLiteral
		}
	}
	return w, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if err := r.latch.Err(); err != nil {
		return 0, err
	}
	if r.eof {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := r.r.Read(p)
		w, derr := r.decode(p, n)
		if derr != nil {
			return w, derr
		}
		if err == io.EOF {
			switch {
			case r.state == stateSeenEqualsHex, r.strict && r.state == stateSeenEquals:
				return w, r.latch.Set(fmt.Errorf("escape sequence cut short: %w", ErrUnexpectedEndOfStream))
			case r.strict && r.state == stateSeenEqualsCR:
				return w, r.invalid('\r')
			}
			r.eof = true
			if w == 0 {
				return 0, io.EOF
			}
			return w, nil
		}
		if err != nil {
			return w, r.latch.Set(err)
		}
		if w > 0 || n == 0 {
			return w, nil
		}
	}
}

// Decode decodes s with a lenient Reader.
func Decode(s []byte) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(s))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
