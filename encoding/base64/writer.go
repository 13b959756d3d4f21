package base64

import (
	"io"
	"strings"
)

type flusher interface {
	Flush() error
}

// Writer encodes data written to it as Base64. A trailing partial group is
// kept until Finalize (or Close) pads and writes it.
type Writer struct {
	w               io.Writer
	finalizeOnFlush bool

	in    [3]byte
	inLen int

	out    [4]byte
	outOff int
	outLen int

	finalized bool
	err       error
}

// NewWriter returns a Writer writing to w. When finalizeOnFlush is true,
// Flush finalizes the stream.
func NewWriter(w io.Writer, finalizeOnFlush bool) *Writer {
	return &Writer{w: w, finalizeOnFlush: finalizeOnFlush}
}

func (w *Writer) flushOut() error {
	for w.outLen > 0 {
		n, err := w.w.Write(w.out[w.outOff : w.outOff+w.outLen])
		w.outOff += n
		w.outLen -= n
		if err != nil {
			w.err = err
			return err
		}
		if n == 0 {
			w.err = io.ErrShortWrite
			return w.err
		}
	}
	w.outOff = 0
	return nil
}

func (w *Writer) encodeGroup() {
	encoding.Encode(w.out[:], w.in[:w.inLen])
	w.outOff = 0
	w.outLen = len(w.out)
	w.inLen = 0
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.finalized {
		return 0, ErrWriterFinalized
	}
	if w.err != nil {
		return 0, w.err
	}
	if err := w.flushOut(); err != nil {
		return 0, err
	}
	for i, b := range p {
		w.in[w.inLen] = b
		w.inLen++
		if w.inLen < len(w.in) {
			continue
		}
		w.encodeGroup()
		if err := w.flushOut(); err != nil {
			return i + 1, err
		}
	}
	return len(p), nil
}

func (w *Writer) flushUnderlying() error {
	if f, ok := w.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Finalize pads and writes the pending partial group. Writing after
// Finalize fails with ErrWriterFinalized.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	if w.err != nil {
		return w.err
	}
	if err := w.flushOut(); err != nil {
		return err
	}
	if w.inLen > 0 {
		w.encodeGroup()
		if err := w.flushOut(); err != nil {
			return err
		}
	}
	w.finalized = true
	return w.flushUnderlying()
}

// Flush writes every complete group. A partial group stays buffered unless
// the writer finalizes on flush.
func (w *Writer) Flush() error {
	if w.finalizeOnFlush {
		return w.Finalize()
	}
	if w.err != nil {
		return w.err
	}
	if err := w.flushOut(); err != nil {
		return err
	}
	return w.flushUnderlying()
}

func (w *Writer) Close() error {
	return w.Finalize()
}

// EncodeToString encodes b with a Writer.
func EncodeToString(b []byte) string {
	var sb strings.Builder
	w := NewWriter(&sb, false)
	// strings.Builder never fails
	w.Write(b)
	w.Finalize()
	return sb.String()
}
