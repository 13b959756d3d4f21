// Package multipart splits a multipart body into its parts without
// buffering them.
package multipart

import (
	"fmt"
	"io"
	"strings"

	"github.com/teawithsand/smtpc/internal/boundary"
	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/errs"
)

var (
	ErrMalformedDelimiter    = errs.ErrMalformedDelimiter
	ErrUnexpectedEndOfStream = errs.ErrUnexpectedEndOfStream
)

var (
	crlf = []byte("\r\n")
	lf   = []byte("\n")
)

// State tells how a part ended.
type State int

const (
	LookingForBoundary State = iota
	// FoundMiddleBoundary means more parts follow.
	FoundMiddleBoundary
	// FoundFinalBoundary means the part was the last one.
	FoundFinalBoundary
)

func (s State) String() string {
	switch s {
	case LookingForBoundary:
		return "LookingForBoundary"
	case FoundMiddleBoundary:
		return "FoundMiddleBoundary"
	case FoundFinalBoundary:
		return "FoundFinalBoundary"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type matchState int

const (
	disambiguating matchState = iota
	lockedMiddle
	lockedFinal
)

type config struct {
	singleNewline bool
	lenientEOF    bool
}

func (c *config) newline() []byte {
	if c.singleNewline {
		return lf
	}
	return crlf
}

type OptionFunc func(c *config) error

// WithSingleNewline makes boundaries end with "\n" instead of "\r\n".
func WithSingleNewline(enabled bool) OptionFunc {
	return func(c *config) error {
		c.singleNewline = enabled
		return nil
	}
}

// WithLenientEOF accepts a source that ends right where the newline after
// a boundary is expected.
func WithLenientEOF(enabled bool) OptionFunc {
	return func(c *config) error {
		c.lenientEOF = enabled
		return nil
	}
}

func newConfig(options []OptionFunc) (config, error) {
	var c config
	for _, o := range options {
		if err := o(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}

func validateBoundary(marker string) error {
	if marker == "" {
		return fmt.Errorf("empty boundary: %w", ErrMalformedDelimiter)
	}
	if strings.ContainsAny(marker, "\r\n") {
		return fmt.Errorf("boundary %q contains a line break: %w", marker, ErrMalformedDelimiter)
	}
	return nil
}

// PartReader yields the body of one part, up to the next boundary, and then
// reports io.EOF. State tells which kind of boundary ended the part. The
// source is left positioned right after the boundary line.
type PartReader struct {
	src    *bufio.ByteReader
	config config
	nl     []byte

	common *boundary.Detector
	middle *boundary.Detector
	final  *boundary.Detector
	match  matchState
	state  State
	err    error

	// bytes of a broken boundary match that did not fit into the caller's
	// buffer
	recovery    []byte
	recoveryOff int
	recoveryLen int
}

func newPartReader(src *bufio.ByteReader, marker string, c config) *PartReader {
	nl := c.newline()
	common := make([]byte, 0, len(nl)+2+len(marker))
	common = append(common, nl...)
	common = append(common, '-', '-')
	common = append(common, marker...)
	final := append([]byte("--"), nl...)
	return &PartReader{
		src:      src,
		config:   c,
		nl:       nl,
		common:   boundary.New(common),
		middle:   boundary.New(nl),
		final:    boundary.New(final),
		recovery: make([]byte, len(common)+len(final)+1),
	}
}

// NewPartReader returns a reader of the part that starts at the current
// position of r. The boundary line has to be preceded by a newline, so the
// very first part of a body should be read with a Reader instead.
func NewPartReader(r io.Reader, marker string, options ...OptionFunc) (*PartReader, error) {
	if err := validateBoundary(marker); err != nil {
		return nil, err
	}
	c, err := newConfig(options)
	if err != nil {
		return nil, err
	}
	return newPartReader(bufio.NewByteReader(r), marker, c), nil
}

func (r *PartReader) State() State {
	return r.state
}

func (r *PartReader) emit(p []byte, n int, bs ...byte) int {
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

func (r *PartReader) drain(p []byte) int {
	n := copy(p, r.recovery[r.recoveryOff:r.recoveryLen])
	r.recoveryOff += n
	if r.recoveryOff == r.recoveryLen {
		r.recoveryOff, r.recoveryLen = 0, 0
	}
	return n
}

func (r *PartReader) resetAll() {
	r.common.Reset()
	r.middle.Reset()
	r.final.Reset()
	r.match = disambiguating
}

func (r *PartReader) suffix() *boundary.Detector {
	if r.match == lockedMiddle {
		return r.middle
	}
	return r.final
}

func (r *PartReader) process(p []byte, n int, b byte) int {
	for {
		if !r.common.Done() {
			res, released := r.common.Feed(b)
			switch res {
			case boundary.NoMatch:
				return r.emit(p, n, b)
			case boundary.MatchBegin, boundary.MatchDone:
				return n
			case boundary.MatchBroke:
				n = r.emit(p, n, released...)
				continue
			}
		}

		if r.match == disambiguating {
			mres, _ := r.middle.Feed(b)
			fres, _ := r.final.Feed(b)
			switch {
			case mres == boundary.MatchDone:
				r.state = FoundMiddleBoundary
				return n
			case mres == boundary.MatchBegin && fres != boundary.MatchBegin:
				r.match = lockedMiddle
				r.final.Reset()
				return n
			case fres == boundary.MatchBegin && mres != boundary.MatchBegin:
				r.match = lockedFinal
				r.middle.Reset()
				return n
			}
			n = r.emit(p, n, r.common.Delimiter()...)
			r.resetAll()
			continue
		}

		d := r.suffix()
		matched := d.Matched()
		res, _ := d.Feed(b)
		switch res {
		case boundary.MatchBegin:
			return n
		case boundary.MatchDone:
			if r.match == lockedMiddle {
				r.state = FoundMiddleBoundary
			} else {
				r.state = FoundFinalBoundary
			}
			return n
		}
		n = r.emit(p, n, r.common.Delimiter()...)
		n = r.emit(p, n, matched...)
		r.resetAll()
	}
}

// endOfStream decides what a source ending before a complete boundary
// means.
func (r *PartReader) endOfStream() error {
	if r.config.lenientEOF && r.common.Done() {
		switch r.match {
		case disambiguating:
			r.state = FoundMiddleBoundary
			return nil
		case lockedFinal:
			if r.final.Pos() == len(r.final.Delimiter())-len(r.nl) {
				r.state = FoundFinalBoundary
				return nil
			}
		}
	}
	return fmt.Errorf("no boundary at the end of the part: %w", ErrUnexpectedEndOfStream)
}

func (r *PartReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n < len(p) {
		n += r.drain(p[n:])
		if n == len(p) || r.state != LookingForBoundary || r.err != nil {
			break
		}
		b, err := r.src.ReadByte()
		if err == bufio.ErrNoData {
			break
		}
		if err == io.EOF {
			r.err = r.endOfStream()
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
	if r.state != LookingForBoundary {
		return 0, io.EOF
	}
	return 0, nil
}
