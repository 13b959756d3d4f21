// Package spaceless strips line breaks, spaces and tabs from a stream.
// Base64 mail bodies are wrapped into lines and have to go through it
// before they are decoded.
package spaceless

import (
	"io"

	"golang.org/x/text/transform"
)

func isSpace(b byte) bool {
	return b == '\r' || b == '\n' || b == ' ' || b == '\t'
}

// Transformer removes whitespace bytes. It keeps no state between calls.
type Transformer struct {
	transform.NopResetter
}

func (Transformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if isSpace(b) {
			nSrc++
			continue
		}
		if nDst >= len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		dst[nDst] = b
		nDst++
		nSrc++
	}
	return nDst, nSrc, nil
}

func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, Transformer{})
}

// String returns s without whitespace.
func String(s string) string {
	out, _, _ := transform.String(Transformer{}, s)
	return out
}
