package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

const marker = "some-boundary"

var bufSizes = []int{1, 2, 4, 8, 16, 32, 64, 128, 256}

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

func TestPartReader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		input     string
		options   []OptionFunc
		expected  string
		state     State
		remainder string
		err       error
	}{
		{
			name:     "final boundary",
			input:    "some text\r\n--some-boundary--\r\n",
			expected: "some text",
			state:    FoundFinalBoundary,
		},
		{
			name:      "middle boundary",
			input:     "some text\r\n--some-boundary\r\nnext part",
			expected:  "some text",
			state:     FoundMiddleBoundary,
			remainder: "next part",
		},
		{
			name:      "look-alike boundary",
			input:     "some text\r\n--some-like-boundary\r\n\r\n--some-boundary\r\n",
			expected:  "some text\r\n--some-like-boundary\r\n",
			state:     FoundMiddleBoundary,
			remainder: "",
		},
		{
			name:     "look-alike boundary before final",
			input:    "some text\r\n--some-like-boundary\r\n\r\n--some-boundary--\r\n",
			expected: "some text\r\n--some-like-boundary\r\n",
			state:    FoundFinalBoundary,
		},
		{
			name:     "boundary without leading newline",
			input:    "a--some-boundary\r\nb\r\n--some-boundary--\r\n",
			expected: "a--some-boundary\r\nb",
			state:    FoundFinalBoundary,
		},
		{
			name:     "marker followed by other text",
			input:    "a\r\n--some-boundaryx\r\n--some-boundary\r\n",
			expected: "a\r\n--some-boundaryx",
			state:    FoundMiddleBoundary,
		},
		{
			name:     "broken final suffix",
			input:    "a\r\n--some-boundary-x\r\n--some-boundary--\r\n",
			expected: "a\r\n--some-boundary-x",
			state:    FoundFinalBoundary,
		},
		{
			name:     "broken final suffix newline",
			input:    "a\r\n--some-boundary--x\r\n--some-boundary--\r\n",
			expected: "a\r\n--some-boundary--x",
			state:    FoundFinalBoundary,
		},
		{
			name:     "broken middle suffix starting a boundary",
			input:    "a\r\n--some-boundary\r\r\n--some-boundary\r\n",
			expected: "a\r\n--some-boundary\r",
			state:    FoundMiddleBoundary,
		},
		{
			name:     "too many dashes",
			input:    "a\r\n--some-boundary---\r\n--some-boundary--\r\n",
			expected: "a\r\n--some-boundary---",
			state:    FoundFinalBoundary,
		},
		{
			name:     "empty part",
			input:    "\r\n--some-boundary\r\n",
			expected: "",
			state:    FoundMiddleBoundary,
		},
		{
			name:     "single newline",
			input:    "some text\n--some-boundary--\n",
			options:  []OptionFunc{WithSingleNewline(true)},
			expected: "some text",
			state:    FoundFinalBoundary,
		},
		{
			name:      "single newline middle",
			input:     "some\r\ntext\n--some-boundary\nrest",
			options:   []OptionFunc{WithSingleNewline(true)},
			expected:  "some\r\ntext",
			state:     FoundMiddleBoundary,
			remainder: "rest",
		},
		{
			name:     "crlf boundary is not a single newline boundary",
			input:    "a\r\n--some-boundary\r\n\n--some-boundary--\n",
			options:  []OptionFunc{WithSingleNewline(true)},
			expected: "a\r\n--some-boundary\r\n",
			state:    FoundFinalBoundary,
		},
		{
			name:  "no boundary",
			input: "some text",
			err:   ErrUnexpectedEndOfStream,
		},
		{
			name:  "truncated boundary",
			input: "some text\r\n--some-bound",
			err:   ErrUnexpectedEndOfStream,
		},
		{
			name:  "unterminated final boundary in strict mode",
			input: "some text\r\n--some-boundary--",
			err:   ErrUnexpectedEndOfStream,
		},
		{
			name:     "unterminated final boundary",
			input:    "some text\r\n--some-boundary--",
			options:  []OptionFunc{WithLenientEOF(true)},
			expected: "some text",
			state:    FoundFinalBoundary,
		},
		{
			name:     "unterminated middle boundary",
			input:    "some text\r\n--some-boundary",
			options:  []OptionFunc{WithLenientEOF(true)},
			expected: "some text",
			state:    FoundMiddleBoundary,
		},
		{
			name:    "half of the final suffix",
			input:   "some text\r\n--some-boundary-",
			options: []OptionFunc{WithLenientEOF(true)},
			err:     ErrUnexpectedEndOfStream,
		},
		{
			name:    "lenient without any boundary",
			input:   "some text",
			options: []OptionFunc{WithLenientEOF(true)},
			err:     ErrUnexpectedEndOfStream,
		},
	}

	for i, c := range cases {
		for _, size := range bufSizes {
			t.Run(fmt.Sprintf("#%d: %s/%d", i, c.name, size), func(t *testing.T) {
				t.Parallel()
				src := bytes.NewReader([]byte(c.input))
				pr, err := NewPartReader(src, marker, c.options...)
				if !assert.NoError(t, err) {
					t.FailNow()
				}
				actual, err := readAllWithBufSize(pr, size)
				if c.err != nil {
					assert.ErrorIs(t, err, c.err)
					assert.Equal(t, LookingForBoundary, pr.State())
					return
				}
				if !assert.NoError(t, err) {
					t.FailNow()
				}
				assert.Equal(t, c.expected, string(actual))
				assert.Equal(t, c.state, pr.State())
				rest, err := io.ReadAll(src)
				if assert.NoError(t, err) {
					assert.Equal(t, c.remainder, string(rest))
				}
			})
		}
	}
}

func TestPartReaderErrorIsLatched(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	pr, err := NewPartReader(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)), marker)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	actual, err := readAllWithBufSize(pr, 16)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "abc", string(actual))
	_, err = pr.Read(make([]byte, 16))
	assert.ErrorIs(t, err, boom)
}

func TestPartReaderChunkedSource(t *testing.T) {
	t.Parallel()
	input := "x\r\n--some-like-boundary\r\n--some-boundar\r\n--some-boundary--\r\n"
	for _, size := range bufSizes {
		pr, err := NewPartReader(iotest.OneByteReader(strings.NewReader(input)), marker)
		if !assert.NoError(t, err) {
			t.FailNow()
		}
		actual, err := readAllWithBufSize(pr, size)
		if assert.NoError(t, err) {
			assert.Equal(t, "x\r\n--some-like-boundary\r\n--some-boundar", string(actual))
			assert.Equal(t, FoundFinalBoundary, pr.State())
		}
	}
}

func TestInvalidBoundary(t *testing.T) {
	t.Parallel()
	for _, m := range []string{"", "a\r\nb", "a\nb"} {
		_, err := NewPartReader(strings.NewReader(""), m)
		assert.ErrorIs(t, err, ErrMalformedDelimiter)
		_, err = NewReader(strings.NewReader(""), m)
		assert.ErrorIs(t, err, ErrMalformedDelimiter)
	}
}

func TestReader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		options  []OptionFunc
		expected []string
		err      error
	}{
		{
			name: "preamble and epilogue",
			input: "This is a preamble.\r\n" +
				"--some-boundary\r\n" +
				"Content-Type: text/plain\r\n\r\nfirst\r\n" +
				"--some-boundary\r\n" +
				"\r\nsecond\r\n" +
				"--some-boundary--\r\n" +
				"epilogue",
			expected: []string{
				"Content-Type: text/plain\r\n\r\nfirst",
				"\r\nsecond",
			},
		},
		{
			name: "boundary at the start",
			input: "--some-boundary\r\n" +
				"one\r\n" +
				"--some-boundary--\r\n",
			expected: []string{"one"},
		},
		{
			name:     "no parts",
			input:    "--some-boundary--\r\n",
			expected: nil,
		},
		{
			name: "single newline",
			input: "--some-boundary\n" +
				"one\n" +
				"--some-boundary\n" +
				"two\n" +
				"--some-boundary--\n",
			options:  []OptionFunc{WithSingleNewline(true)},
			expected: []string{"one", "two"},
		},
		{
			name: "lenient final boundary",
			input: "--some-boundary\r\n" +
				"one\r\n" +
				"--some-boundary--",
			options:  []OptionFunc{WithLenientEOF(true)},
			expected: []string{"one"},
		},
		{
			name: "missing final boundary",
			input: "--some-boundary\r\n" +
				"one",
			expected: []string{"one"},
			err:      ErrUnexpectedEndOfStream,
		},
		{
			name:  "missing first boundary",
			input: "just text",
			err:   ErrUnexpectedEndOfStream,
		},
	}

	for i, c := range cases {
		t.Run(fmt.Sprintf("#%d: %s", i, c.name), func(t *testing.T) {
			t.Parallel()
			mr, err := NewReader(strings.NewReader(c.input), marker, c.options...)
			if !assert.NoError(t, err) {
				t.FailNow()
			}
			var parts []string
			for {
				pr, err := mr.NextPart()
				if err == io.EOF {
					break
				}
				if c.err != nil && err != nil {
					assert.ErrorIs(t, err, c.err)
					break
				}
				if !assert.NoError(t, err) {
					t.FailNow()
				}
				b, err := io.ReadAll(pr)
				if c.err != nil && err != nil {
					parts = append(parts, string(b))
					assert.ErrorIs(t, err, c.err)
					break
				}
				if !assert.NoError(t, err) {
					t.FailNow()
				}
				parts = append(parts, string(b))
			}
			assert.Equal(t, c.expected, parts)
			assert.Equal(t, len(c.expected), mr.Parts())
		})
	}
}

func TestReaderSkipsUnreadParts(t *testing.T) {
	t.Parallel()
	input := "--some-boundary\r\none\r\n--some-boundary\r\ntwo\r\n--some-boundary--\r\n"
	mr, err := NewReader(strings.NewReader(input), marker)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	_, err = mr.NextPart()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	pr, err := mr.NextPart()
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	b, err := io.ReadAll(pr)
	if assert.NoError(t, err) {
		assert.Equal(t, "two", string(b))
	}
	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err)
	_, err = mr.NextPart()
	assert.Equal(t, io.EOF, err)
}
