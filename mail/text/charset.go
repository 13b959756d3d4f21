// Package text extracts the readable text of a message as UTF-8.
package text

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

var ErrUnknownCharset = errors.New("unknown charset")

// NewCharsetReader returns a reader converting r from charset to UTF-8.
// An empty charset, us-ascii and utf-8 leave r as it is.
func NewCharsetReader(r io.Reader, charset string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "us-ascii", "utf-8", "utf8":
		return r, nil
	}
	enc, _ := ianaindex.MIME.Encoding(charset)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(charset)
	}
	if enc == nil {
		return nil, fmt.Errorf("%q: %w", charset, ErrUnknownCharset)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
