package header

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"strings"

	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/rfc5322"
)

var ErrMalformedHeader = errors.New("malformed header")

const maxHeaderLineLength = 64 * 1024

const (
	defaultMediaType = "text/plain"
	defaultCharset   = "us-ascii"
)

// Field is one header field. Lines holds the physical lines the field was
// folded into.
type Field struct {
	Name  string
	Value string
	Lines [][]byte
}

// RawBag holds header fields in their original order, indexed by canonical
// field name. Values are not decoded.
type RawBag struct {
	fields []Field
	index  map[string][]int
}

func NewRawBag() *RawBag {
	return &RawBag{index: make(map[string][]int)}
}

func isFieldNameByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9', b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b >= '!' && b <= '\'':
		return true
	}
	return strings.IndexByte("*+-.^_`|~", b) >= 0
}

// CanonicalName validates a field name and returns it in canonical form,
// e.g. "content-type" becomes "Content-Type".
func CanonicalName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty field name: %w", ErrMalformedHeader)
	}
	for i := 0; i < len(name); i++ {
		if !isFieldNameByte(name[i]) {
			return "", fmt.Errorf("invalid byte %q in field name %q: %w", name[i], name, ErrMalformedHeader)
		}
	}
	return textproto.CanonicalMIMEHeaderKey(name), nil
}

func (bag *RawBag) add(f Field) {
	bag.index[f.Name] = append(bag.index[f.Name], len(bag.fields))
	bag.fields = append(bag.fields, f)
}

// Add appends a field. The value must not contain line breaks.
func (bag *RawBag) Add(name, value string) error {
	cname, err := CanonicalName(name)
	if err != nil {
		return err
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("line break in the value of %s: %w", cname, ErrMalformedHeader)
	}
	bag.add(Field{
		Name:  cname,
		Value: value,
		Lines: [][]byte{[]byte(cname + ": " + value)},
	})
	return nil
}

func (bag *RawBag) handleField(chunks [][]byte) error {
	first := chunks[0]
	colon := bytes.IndexByte(first, ':')
	if colon < 0 {
		return fmt.Errorf("no colon in %q: %w", first, ErrMalformedHeader)
	}
	name, err := CanonicalName(string(first[:colon]))
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.Write(bytes.TrimSpace(first[colon+1:]))
	lines := make([][]byte, len(chunks))
	lines[0] = first
	for i, chunk := range chunks[1:] {
		sb.Write(bytes.TrimSpace(chunk))
		lines[i+1] = chunk
	}
	bag.add(Field{Name: name, Value: sb.String(), Lines: lines})
	return nil
}

func (bag *RawBag) scan(r bufio.BufferedReader) error {
	return rfc5322.Scan(r, rfc5322.HandlerFuncs{
		Orphan: func(l []byte) error {
			return fmt.Errorf("continuation line %q without a field: %w", l, ErrMalformedHeader)
		},
		Field: bag.handleField,
	})
}

// ParseRawBag tokenizes a header block. Continuation lines are joined to
// the value they continue without a separator. The Lines of the returned
// fields share memory with b.
func ParseRawBag(b []byte) (*RawBag, error) {
	bag := NewRawBag()
	if err := bag.scan(bufio.NewBytesReader(b)); err != nil {
		return nil, err
	}
	return bag, nil
}

// ReadRawBag is like ParseRawBag but reads the header block from r, up to
// the first empty line. r is read ahead through a buffer, so it cannot be
// used for the body afterwards.
func ReadRawBag(r io.Reader) (*RawBag, error) {
	bag := NewRawBag()
	if err := bag.scan(bufio.NewBufferWrapper(r, maxHeaderLineLength)); err != nil {
		return nil, err
	}
	return bag, nil
}

func (bag *RawBag) Len() int {
	return len(bag.fields)
}

// Fields returns the fields in their original order.
func (bag *RawBag) Fields() []Field {
	return bag.fields
}

// Get returns the first value of the field, or "" if it is absent.
func (bag *RawBag) Get(name string) string {
	idx := bag.index[textproto.CanonicalMIMEHeaderKey(name)]
	if len(idx) == 0 {
		return ""
	}
	return bag.fields[idx[0]].Value
}

func (bag *RawBag) Has(name string) bool {
	return len(bag.index[textproto.CanonicalMIMEHeaderKey(name)]) > 0
}

// Values returns every value of the field in order.
func (bag *RawBag) Values(name string) []string {
	idx := bag.index[textproto.CanonicalMIMEHeaderKey(name)]
	if len(idx) == 0 {
		return nil
	}
	values := make([]string, len(idx))
	for i, j := range idx {
		values[i] = bag.fields[j].Value
	}
	return values
}

// Keys returns the distinct field names in order of first appearance.
func (bag *RawBag) Keys() []string {
	keys := make([]string, 0, len(bag.index))
	for i, f := range bag.fields {
		if bag.index[f.Name][0] == i {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// TransferEncoding returns the Content-Transfer-Encoding of the entity,
// which is 7bit when the header is absent.
func (bag *RawBag) TransferEncoding() TransferEncoding {
	if !bag.Has("Content-Transfer-Encoding") {
		return SevenBit
	}
	return ParseTransferEncoding(bag.Get("Content-Transfer-Encoding"))
}

// ContentType returns the media type and parameters of the entity. An
// absent header yields text/plain with the us-ascii charset.
func (bag *RawBag) ContentType() (string, map[string]string, error) {
	if !bag.Has("Content-Type") {
		return defaultMediaType, map[string]string{"charset": defaultCharset}, nil
	}
	mediaType, params, err := mime.ParseMediaType(bag.Get("Content-Type"))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse Content-Type: %w", err)
	}
	return mediaType, params, nil
}

// WriteTo writes the fields back with their original folding and CRLF line
// endings, followed by the empty line that ends a header block.
func (bag *RawBag) WriteTo(w io.Writer) (int64, error) {
	bl := &rfc5322.Builder{Writer: w}
	for _, f := range bag.fields {
		if err := bl.HandleField(f.Lines); err != nil {
			return bl.Written(), err
		}
	}
	err := bl.Terminate()
	return bl.Written(), err
}
