package base64

import (
	"bytes"
	_base64 "encoding/base64"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

var bufSizes = []int{1, 2, 3, 4, 5, 8, 16, 32, 64, 128, 256}

func readAllWithBufSize(r io.Reader, size int) ([]byte, error) {
	var out []byte
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// writeWithBufSize feeds data to w in chunks of at most size bytes.
func writeWithBufSize(w io.Writer, data []byte, size int) error {
	for len(data) > 0 {
		c := min(size, len(data))
		n, err := w.Write(data[:c])
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func TestDecodeMatchesStdlib(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"garbage",
		"",
		"YQ==",
		"YWE=",
		"YWFh",
		"YWFhYQ==",
		"YWFhYWE=",
		"YWFhYWFh",
		"YWFhYWFhYQ==",
		"YWFhYWFhYWE=",
		"YWFhYWFhYWFh",
		"YWFhYWFhYWFhYQ==",
		"YWFhYWFhYWFhYWE=",
		"YWFhYWFhYWFhYWFh",
		"WYQ=YQ==",
		"YQ===",
		"YQ=a",
		"Y===",
		"YWE",
		"YW*h",
	}
	for i, input := range inputs {
		expected, expectedErr := _base64.StdEncoding.DecodeString(input)
		for _, size := range bufSizes {
			t.Run(fmt.Sprintf("#%d: %q/%d", i, input, size), func(t *testing.T) {
				t.Parallel()
				actual, err := readAllWithBufSize(NewReader(bytes.NewReader([]byte(input))), size)
				if expectedErr != nil {
					assert.Error(t, err)
					return
				}
				if !assert.NoError(t, err) {
					t.FailNow()
				}
				assert.Equal(t, string(expected), string(actual))
			})
		}
	}
}

func TestPaddingValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
		err      error
	}{
		{name: "one byte", input: "YQ==", expected: "a"},
		{name: "two bytes", input: "YWE=", expected: "aa"},
		{name: "three bytes", input: "YWFh", expected: "aaa"},
		{name: "three padding bytes", input: "YQ===", err: ErrInvalidEncoding},
		{name: "data after padding", input: "YWE=YQ==", err: ErrInvalidEncoding},
		{name: "truncated group", input: "YWFhYQ", err: ErrUnexpectedEndOfStream},
		{name: "padding too early", input: "Y=Q=", err: ErrInvalidEncoding},
		{name: "outside of the alphabet", input: "YW-h", err: ErrInvalidEncoding},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("#%d: %s", i, c.name), func(t *testing.T) {
			t.Parallel()
			actual, err := DecodeString(c.input)
			if c.err != nil {
				assert.ErrorIs(t, err, c.err)
				return
			}
			if assert.NoError(t, err) {
				assert.Equal(t, c.expected, string(actual))
			}
		})
	}
}

func TestTruncationIsUnexpectedEOF(t *testing.T) {
	t.Parallel()
	_, err := DecodeString("YW")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderLatchesErrors(t *testing.T) {
	t.Parallel()
	r := NewReader(bytes.NewReader([]byte("YQ==YWFh")))
	buf := make([]byte, 16)
	var err error
	for err == nil {
		_, err = r.Read(buf)
	}
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	for i := 0; i < 3; i++ {
		n, again := r.Read(buf)
		assert.Equal(t, 0, n)
		assert.Equal(t, err, again)
	}
}

func TestReaderSourceError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := NewReader(io.MultiReader(bytes.NewReader([]byte("YWFh")), iotest.ErrReader(boom)))
	actual, err := readAllWithBufSize(r, 8)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "aaa", string(actual))
	_, err = r.Read(make([]byte, 8))
	assert.ErrorIs(t, err, boom)
}

func TestReaderChunkedSource(t *testing.T) {
	t.Parallel()
	for _, size := range bufSizes {
		r := NewReader(iotest.OneByteReader(bytes.NewReader([]byte("YWFhYWFhYWE="))))
		actual, err := readAllWithBufSize(r, size)
		if assert.NoError(t, err) {
			assert.Equal(t, "aaaaaaaa", string(actual))
		}
	}
}

func TestEncodeMatchesStdlib(t *testing.T) {
	t.Parallel()
	inputs := []string{"", "a", "aa", "aaa", "aaaa", "aaaaa", "aaaaaa", "\x00\xff\xfe binary"}
	for i, input := range inputs {
		for _, size := range bufSizes {
			t.Run(fmt.Sprintf("#%d: %q/%d", i, input, size), func(t *testing.T) {
				t.Parallel()
				var buf bytes.Buffer
				w := NewWriter(&buf, false)
				if !assert.NoError(t, writeWithBufSize(w, []byte(input), size)) {
					t.FailNow()
				}
				if !assert.NoError(t, w.Close()) {
					t.FailNow()
				}
				assert.Equal(t, _base64.StdEncoding.EncodeToString([]byte(input)), buf.String())
			})
		}
	}
}

func TestWriterFlush(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	_, err := w.Write([]byte("aaaa"))
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NoError(t, w.Flush())
	assert.Equal(t, "YWFh", buf.String())
	_, err = w.Write([]byte("a"))
	assert.NoError(t, err)
	assert.NoError(t, w.Finalize())
	assert.Equal(t, "YWFhYWE=", buf.String())

	_, err = w.Write([]byte("a"))
	assert.ErrorIs(t, err, ErrWriterFinalized)
	assert.NoError(t, w.Close())
}

func TestWriterFinalizeOnFlush(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := NewWriter(&buf, true)
	_, err := w.Write([]byte("aaaa"))
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.NoError(t, w.Flush())
	assert.Equal(t, "YWFhYQ==", buf.String())
	_, err = w.Write([]byte("a"))
	assert.ErrorIs(t, err, ErrWriterFinalized)
}

type zeroWriter struct{}

func (zeroWriter) Write(p []byte) (int, error) {
	return 0, nil
}

func TestWriterShortWrite(t *testing.T) {
	t.Parallel()
	w := NewWriter(zeroWriter{}, false)
	_, err := w.Write([]byte("aaa"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	_, err = w.Write([]byte("aaa"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	for n := 0; n < 10; n++ {
		encoded := EncodeToString(data[:n*97])
		decoded, err := DecodeString(encoded)
		if assert.NoError(t, err) {
			assert.Equal(t, data[:n*97], decoded)
		}
	}
}
