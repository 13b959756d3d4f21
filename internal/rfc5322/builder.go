package rfc5322

import (
	"io"
)

var crlf = []byte{'\r', '\n'}

// Builder is a Handler that writes what it receives back out, every line
// terminated with CRLF.
type Builder struct {
	io.Writer
	written    int64
	shortWrite bool
}

func (bl *Builder) put(b []byte) error {
	n, err := bl.Writer.Write(b)
	bl.written += int64(n)
	if err != nil {
		return err
	}
	if n < len(b) {
		bl.shortWrite = true
		return io.ErrShortWrite
	}
	return nil
}

func (bl *Builder) putLine(line []byte) error {
	if err := bl.put(line); err != nil {
		return err
	}
	return bl.put(crlf)
}

func (bl *Builder) HandleOrphan(line []byte) error {
	return bl.putLine(line)
}

func (bl *Builder) HandleField(lines [][]byte) error {
	for _, line := range lines {
		if err := bl.putLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Terminate writes the empty line that ends a header block.
func (bl *Builder) Terminate() error {
	return bl.put(crlf)
}

func (bl *Builder) ShortWrite() bool {
	return bl.shortWrite
}

// Written returns the number of bytes written so far.
func (bl *Builder) Written() int64 {
	return bl.written
}

var _ Handler = &Builder{}
