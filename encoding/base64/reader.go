// Package base64 implements streaming readers and writers for the standard
// Base64 alphabet with padding and without line wrapping.
package base64

import (
	_base64 "encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/errs"
)

var (
	ErrInvalidEncoding       = errs.ErrInvalidEncoding
	ErrUnexpectedEndOfStream = errs.ErrUnexpectedEndOfStream
	ErrWriterFinalized       = errs.ErrWriterFinalized
)

var encoding = _base64.StdEncoding

const maxPadding = 2

func isAlphabet(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '+', b == '/':
		return true
	}
	return false
}

// Reader decodes Base64 text read from the underlying source. Whitespace is
// not tolerated; wrap the source with spaceless.NewReader for line-wrapped
// input.
type Reader struct {
	src      *bufio.ByteReader
	group    [4]byte
	groupLen int
	padding  int

	carry    [3]byte
	carryOff int
	carryLen int

	latch errs.Latch
	eof   bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{src: bufio.NewByteReader(r)}
}

func (r *Reader) fail(err error) error {
	return r.latch.Set(err)
}

func (r *Reader) accept(b byte) error {
	if b == '=' {
		r.padding++
		if r.padding > maxPadding {
			return fmt.Errorf("too much padding: %w", ErrInvalidEncoding)
		}
		if r.groupLen < 2 {
			return fmt.Errorf("padding at position %d of a group: %w", r.groupLen, ErrInvalidEncoding)
		}
	} else if r.padding > 0 {
		return fmt.Errorf("byte %q after padding: %w", b, ErrInvalidEncoding)
	} else if !isAlphabet(b) {
		return fmt.Errorf("byte %q outside of the alphabet: %w", b, ErrInvalidEncoding)
	}
	r.group[r.groupLen] = b
	r.groupLen++
	return nil
}

func (r *Reader) decodeGroup(dst []byte) (int, error) {
	n, err := encoding.Decode(dst, r.group[:])
	r.groupLen = 0
	if err != nil {
		return n, fmt.Errorf("malformed group %q: %w", r.group[:], ErrInvalidEncoding)
	}
	return n, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	if r.carryLen > 0 {
		c := copy(p, r.carry[r.carryOff:r.carryOff+r.carryLen])
		r.carryOff += c
		r.carryLen -= c
		n += c
	}
	if err := r.latch.Err(); err != nil {
		if n > 0 {
			return n, nil
		}
		return 0, err
	}
	for n < len(p) && !r.eof {
		b, err := r.src.ReadByte()
		if err == bufio.ErrNoData {
			break
		}
		if err == io.EOF {
			if r.groupLen != 0 {
				return n, r.fail(fmt.Errorf("%d characters left in the last group: %w", r.groupLen, ErrUnexpectedEndOfStream))
			}
			r.eof = true
			break
		}
		if err != nil {
			return n, r.fail(err)
		}
		if err = r.accept(b); err != nil {
			return n, r.fail(err)
		}
		if r.groupLen < len(r.group) {
			continue
		}
		if len(p)-n >= len(r.carry) {
			d, err := r.decodeGroup(p[n:])
			n += d
			if err != nil {
				return n, r.fail(err)
			}
			continue
		}
		d, err := r.decodeGroup(r.carry[:])
		if err != nil {
			return n, r.fail(err)
		}
		c := copy(p[n:], r.carry[:d])
		n += c
		r.carryOff = c
		r.carryLen = d - c
	}
	if r.eof && n == 0 && r.carryLen == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// DecodeString decodes s with a Reader.
func DecodeString(s string) ([]byte, error) {
	return io.ReadAll(NewReader(strings.NewReader(s)))
}
