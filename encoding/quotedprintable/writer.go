package quotedprintable

import (
	"fmt"
	"io"
	"strings"
)

// MaxLineLength is the longest encoded line the Writer produces, soft
// break marker included.
const MaxLineLength = 76

// SoftBreak selects what the Writer inserts to keep lines short.
type SoftBreak int

const (
	// NoInsert never wraps lines.
	NoInsert SoftBreak = iota
	// Standard inserts "=\r\n".
	Standard
	// BreakLine inserts "=\n".
	BreakLine
)

func (sb SoftBreak) marker() []byte {
	switch sb {
	case Standard:
		return []byte("=\r\n")
	case BreakLine:
		return []byte("=\n")
	}
	return nil
}

func (sb SoftBreak) String() string {
	switch sb {
	case NoInsert:
		return "none"
	case Standard:
		return "standard"
	case BreakLine:
		return "lf"
	}
	return fmt.Sprintf("SoftBreak(%d)", int(sb))
}

// ParseSoftBreak is the inverse of SoftBreak.String.
func ParseSoftBreak(s string) (SoftBreak, error) {
	switch strings.ToLower(s) {
	case "none":
		return NoInsert, nil
	case "standard", "crlf":
		return Standard, nil
	case "lf":
		return BreakLine, nil
	}
	return 0, fmt.Errorf("unknown soft break mode: %s", s)
}

const upperhex = "0123456789ABCDEF"

func isLiteral(b byte) bool {
	return (b >= '!' && b <= '~' && b != '=') || b == ' ' || b == '\t'
}

// Writer encodes data written to it as Quoted-Printable. CRLF pairs in the
// input are kept as hard line breaks; a lone CR or LF is escaped.
type Writer struct {
	w         io.Writer
	softBreak SoftBreak
	col       int
	pendingCR bool
	buf       [6]byte
	finalized bool
	err       error
}

type WriterOptionFunc func(w *Writer) error

func WithSoftBreak(sb SoftBreak) WriterOptionFunc {
	return func(w *Writer) error {
		switch sb {
		case NoInsert, Standard, BreakLine:
		default:
			return fmt.Errorf("unknown soft break mode: %d", int(sb))
		}
		w.softBreak = sb
		return nil
	}
}

func NewWriter(w io.Writer, options ...WriterOptionFunc) (*Writer, error) {
	qw := &Writer{w: w, softBreak: Standard}
	for _, o := range options {
		if err := o(qw); err != nil {
			return nil, err
		}
	}
	return qw, nil
}

func (w *Writer) writeAll(b []byte) error {
	for len(b) > 0 {
		n, err := w.w.Write(b)
		b = b[n:]
		if err != nil {
			w.err = err
			return err
		}
		if n == 0 {
			w.err = io.ErrShortWrite
			return w.err
		}
	}
	return nil
}

// emit writes one encoded unit, preceded by a soft break when the unit
// would not fit on the current line.
func (w *Writer) emit(b byte) error {
	n := 0
	width := 3
	if isLiteral(b) {
		width = 1
	}
	if w.softBreak != NoInsert && w.col+width > MaxLineLength-1 {
		n += copy(w.buf[:], w.softBreak.marker())
		w.col = 0
	}
	if width == 1 {
		w.buf[n] = b
	} else {
		w.buf[n] = '='
		w.buf[n+1] = upperhex[b>>4]
		w.buf[n+2] = upperhex[b&0x0f]
	}
	n += width
	w.col += width
	return w.writeAll(w.buf[:n])
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, ErrWriterFinalized
	}
	if w.err != nil {
		return 0, w.err
	}
	for i, b := range p {
		if w.pendingCR {
			w.pendingCR = false
			if b == '\n' {
				if err := w.writeAll([]byte{'\r', '\n'}); err != nil {
					return i, err
				}
				w.col = 0
				continue
			}
			if err := w.emit('\r'); err != nil {
				return i, err
			}
		}
		if b == '\r' {
			w.pendingCR = true
			continue
		}
		if err := w.emit(b); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close writes a pending lone CR and finalizes the writer.
func (w *Writer) Close() error {
	if w.finalized {
		return nil
	}
	if w.err != nil {
		return w.err
	}
	if w.pendingCR {
		w.pendingCR = false
		if err := w.emit('\r'); err != nil {
			return err
		}
	}
	w.finalized = true
	return w.Flush()
}

// Encode encodes b with a Writer using standard soft breaks.
func Encode(b []byte) string {
	var sb strings.Builder
	w, _ := NewWriter(&sb)
	w.Write(b)
	w.Close()
	return sb.String()
}
