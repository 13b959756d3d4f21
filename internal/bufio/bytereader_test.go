package bufio

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

type emptyOnceReader struct {
	r     io.Reader
	empty bool
}

func (r *emptyOnceReader) Read(p []byte) (int, error) {
	r.empty = !r.empty
	if r.empty {
		return 0, nil
	}
	return r.r.Read(p)
}

func TestByteReaderDoesNotReadAhead(t *testing.T) {
	t.Parallel()
	src := iotest.OneByteReader(bytes.NewReader([]byte("abc")))
	br := NewByteReader(src)
	buf := make([]byte, 16)
	n, err := br.Read(buf)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('a'), buf[0])

	rest, err := io.ReadAll(src)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, "bc", string(rest))
}

func TestByteReaderTransientEmptyRead(t *testing.T) {
	t.Parallel()
	br := NewByteReader(&emptyOnceReader{r: bytes.NewReader([]byte("x"))})
	_, err := br.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)
	b, err := br.ReadByte()
	if assert.NoError(t, err) {
		assert.Equal(t, byte('x'), b)
	}
	n, err := br.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
	_, err = br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestByteReaderLatchesErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	br := NewByteReader(iotest.ErrReader(boom))
	_, err := br.ReadByte()
	assert.ErrorIs(t, err, boom)
	_, err = br.Read(make([]byte, 4))
	assert.ErrorIs(t, err, boom)
}

func TestByteReaderDataWithError(t *testing.T) {
	t.Parallel()
	br := NewByteReader(iotest.DataErrReader(iotest.OneByteReader(bytes.NewReader([]byte("z")))))
	b, err := br.ReadByte()
	if assert.NoError(t, err) {
		assert.Equal(t, byte('z'), b)
	}
	_, err = br.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNewByteReaderReuses(t *testing.T) {
	t.Parallel()
	br := NewByteReader(bytes.NewReader(nil))
	assert.Same(t, br, NewByteReader(br))
}
