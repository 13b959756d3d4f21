// Package header separates the header block of a mail message from its body
// and tokenizes header fields.
package header

import (
	"bytes"
	"io"

	"github.com/teawithsand/smtpc/internal/boundary"
	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/errs"
)

var (
	ErrUnexpectedEndOfStream = errs.ErrUnexpectedEndOfStream
)

var headerTerminator = []byte("\r\n\r\n")

type readerState int

const (
	reading readerState = iota
	unexpectedEOF
	finished
)

// Reader yields the header bytes of a message, without the blank line that
// terminates them, and then reports io.EOF. The underlying source is left
// positioned right after the terminator so it can be used to read the body.
type Reader struct {
	src    *bufio.ByteReader
	bd     *boundary.Detector
	inMail bool
	state  readerState
	err    error

	// bytes released by a broken terminator match that did not fit into
	// the caller's buffer
	recovery    [len("\r\n\r\n")]byte
	recoveryOff int
	recoveryLen int
}

// NewReader returns a Reader for r. When inMail is true the header block is
// expected to be followed by a body, and a source ending before the blank
// line is an error. Otherwise the end of the source also ends the headers.
func NewReader(r io.Reader, inMail bool) *Reader {
	return &Reader{
		src:    bufio.NewByteReader(r),
		bd:     boundary.New(headerTerminator),
		inMail: inMail,
	}
}

// Finished reports whether the header terminator (or, outside of a message,
// the end of the source) has been reached.
func (r *Reader) Finished() bool {
	return r.state == finished
}

func (r *Reader) emit(p []byte, n int, bs ...byte) int {
	for _, b := range bs {
		if n < len(p) {
			p[n] = b
			n++
		} else {
			r.recovery[r.recoveryLen] = b
			r.recoveryLen++
		}
	}
	return n
}

func (r *Reader) drain(p []byte) int {
	n := copy(p, r.recovery[r.recoveryOff:r.recoveryLen])
	r.recoveryOff += n
	if r.recoveryOff == r.recoveryLen {
		r.recoveryOff, r.recoveryLen = 0, 0
	}
	return n
}

func (r *Reader) process(p []byte, n int, b byte) int {
	for {
		res, released := r.bd.Feed(b)
		switch res {
		case boundary.NoMatch:
			return r.emit(p, n, b)
		case boundary.MatchBegin:
			return n
		case boundary.MatchDone:
			r.state = finished
			return n
		case boundary.MatchBroke:
			n = r.emit(p, n, released...)
		}
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		n += r.drain(p[n:])
		if n == len(p) || r.state != reading || r.err != nil {
			break
		}
		b, err := r.src.ReadByte()
		if err == bufio.ErrNoData {
			break
		}
		if err == io.EOF {
			if r.inMail {
				r.state = unexpectedEOF
				r.err = ErrUnexpectedEndOfStream
			} else {
				r.state = finished
			}
			break
		}
		if err != nil {
			r.err = err
			break
		}
		n = r.process(p, n, b)
	}
	if n > 0 {
		return n, nil
	}
	if r.err != nil {
		return 0, r.err
	}
	if r.state == finished {
		return 0, io.EOF
	}
	return 0, nil
}

// CountHeaderBytes returns the length of the header block of mail, not
// counting the terminating blank line, so that mail[:n] are the headers.
func CountHeaderBytes(mail []byte) (int, error) {
	r := NewReader(bytes.NewReader(mail), true)
	var buf [512]byte
	offset := 0
	for {
		n, err := r.Read(buf[:])
		offset += n
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return 0, err
		}
	}
}
