package multipart

import (
	"bytes"
	"io"

	"github.com/teawithsand/smtpc/internal/bufio"
)

// Reader iterates over the parts of a multipart body. The preamble before
// the first boundary and the epilogue after the final one are discarded.
type Reader struct {
	src     *bufio.ByteReader
	marker  string
	config  config
	current *PartReader
	parts   int
	err     error
}

func NewReader(r io.Reader, marker string, options ...OptionFunc) (*Reader, error) {
	if err := validateBoundary(marker); err != nil {
		return nil, err
	}
	c, err := newConfig(options)
	if err != nil {
		return nil, err
	}
	// the first boundary line may start right at the beginning of the body
	src := bufio.NewByteReader(io.MultiReader(bytes.NewReader(c.newline()), r))
	return &Reader{
		src:     src,
		marker:  marker,
		config:  c,
		current: newPartReader(src, marker, c),
	}, nil
}

// NextPart skips what is left of the current part and returns a reader of
// the next one. It returns io.EOF after the final boundary.
func (r *Reader) NextPart() (*PartReader, error) {
	if r.err != nil {
		return nil, r.err
	}
	if _, err := bufio.Drain(r.current); err != nil {
		r.err = err
		return nil, err
	}
	if r.current.State() == FoundFinalBoundary {
		r.err = io.EOF
		return nil, io.EOF
	}
	r.current = newPartReader(r.src, r.marker, r.config)
	r.parts++
	return r.current, nil
}

// Parts returns the number of parts returned by NextPart so far.
func (r *Reader) Parts() int {
	return r.parts
}
