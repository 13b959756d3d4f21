// Package errs holds the error kinds shared by the stream transducers.
package errs

import (
	"errors"
	"fmt"
	"io"
)

// MaxEmptyReads bounds the number of consecutive 0, nil reads tolerated
// before ErrNoProgress is reported.
const MaxEmptyReads = 100

var (
	// ErrMalformedDelimiter reports a delimiter that cannot be matched, such as
	// an empty multipart boundary marker.
	ErrMalformedDelimiter = errors.New("malformed delimiter")
	// ErrUnexpectedEndOfStream reports a source that ended while a required
	// delimiter or encoded group was incomplete. It matches io.ErrUnexpectedEOF.
	ErrUnexpectedEndOfStream = fmt.Errorf("unexpected end of stream: %w", io.ErrUnexpectedEOF)
	ErrInvalidEncoding       = errors.New("invalid encoding")
	ErrWriterFinalized       = errors.New("writer is finalized")
	// ErrNoProgress is returned by loops that drive a reader when it keeps
	// returning no data and no error.
	ErrNoProgress = fmt.Errorf("no progress: %w", io.ErrNoProgress)
)

// Latch remembers the first error reported to it.
type Latch struct {
	err error
}

func (l *Latch) Set(err error) error {
	if l.err == nil {
		l.err = err
	}
	return l.err
}

func (l *Latch) Err() error {
	return l.err
}
