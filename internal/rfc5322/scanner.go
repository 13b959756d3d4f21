// Package rfc5322 splits a header block into folded header fields.
package rfc5322

import (
	"bytes"
	"errors"
	"io"

	"github.com/teawithsand/smtpc/internal/bufio"
)

var ErrLineTooLong = errors.New("header line too long")

// Handler receives the fields found by Scan.
type Handler interface {
	// HandleOrphan receives a continuation line that comes before any field.
	HandleOrphan(line []byte) error
	// HandleField receives one field as the physical lines it was folded
	// into, line breaks removed.
	HandleField(lines [][]byte) error
}

// HandlerFuncs adapts a pair of functions to Handler. Nil functions ignore
// what they would receive.
type HandlerFuncs struct {
	Orphan func(line []byte) error
	Field  func(lines [][]byte) error
}

func (h HandlerFuncs) HandleOrphan(line []byte) error {
	if h.Orphan == nil {
		return nil
	}
	return h.Orphan(line)
}

func (h HandlerFuncs) HandleField(lines [][]byte) error {
	if h.Field == nil {
		return nil
	}
	return h.Field(lines)
}

func isFoldingWhitespace(b byte) bool {
	return b == ' ' || b == '\t'
}

// nextLine returns the next line without its CRLF or LF.
func nextLine(r bufio.Scanner) ([]byte, bool, error) {
	line, owned, err := r.ReadUpTo('\n')
	if err == bufio.ErrBufferFull {
		return nil, false, ErrLineTooLong
	}
	line = bytes.TrimSuffix(line, []byte{'\n'})
	line = bytes.TrimSuffix(line, []byte{'\r'})
	return line, owned, err
}

// Scan reads fields from r up to the first empty line or the end of r.
// Lines handed to HandleField may be retained; the line handed to
// HandleOrphan is only valid during the call.
func Scan(r bufio.Scanner, h Handler) error {
	var field [][]byte
	flush := func() error {
		if len(field) == 0 {
			return nil
		}
		err := h.HandleField(field)
		field = nil
		return err
	}
	for {
		line, owned, err := nextLine(r)
		atEOF := err == io.EOF
		if err != nil && !atEOF {
			return err
		}
		if len(line) == 0 {
			return flush()
		}
		if isFoldingWhitespace(line[0]) && len(field) == 0 {
			if err := h.HandleOrphan(line); err != nil {
				return err
			}
		} else {
			if !isFoldingWhitespace(line[0]) {
				if err := flush(); err != nil {
					return err
				}
			}
			if !owned {
				line = bytes.Clone(line)
			}
			field = append(field, line)
		}
		if atEOF {
			return flush()
		}
	}
}
