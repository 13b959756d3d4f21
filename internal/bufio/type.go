package bufio

import (
	_bufio "bufio"
	"errors"
	"io"
)

var ErrBufferFull = _bufio.ErrBufferFull

// ErrNoData is reported by ByteReader when the source returned no bytes and
// no error. It is a transient condition, not the end of the stream.
var ErrNoData = errors.New("no data available yet")

type Scanner interface {
	// ReadUpTo reads until delim (inclusive). The boolean reports whether
	// the returned slice may be retained by the caller.
	ReadUpTo(delim byte) ([]byte, bool, error)
}

type BufferedReader interface {
	io.Reader
	io.ByteScanner
	Scanner
}
