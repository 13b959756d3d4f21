package header

import (
	"fmt"
	"io"
	"strings"

	"github.com/teawithsand/smtpc/encoding/base64"
	"github.com/teawithsand/smtpc/encoding/quotedprintable"
	"github.com/teawithsand/smtpc/encoding/spaceless"
)

// TransferEncoding is the value of a Content-Transfer-Encoding header.
type TransferEncoding int

const (
	UnknownEncoding TransferEncoding = iota
	SevenBit
	EightBit
	Binary
	QuotedPrintable
	Base64
)

func (te TransferEncoding) String() string {
	switch te {
	case SevenBit:
		return "7bit"
	case EightBit:
		return "8bit"
	case Binary:
		return "binary"
	case QuotedPrintable:
		return "quoted-printable"
	case Base64:
		return "base64"
	}
	return "unknown"
}

// ParseTransferEncoding maps a header value to a TransferEncoding. Values
// that are not recognized map to UnknownEncoding.
func ParseTransferEncoding(s string) TransferEncoding {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "7bit":
		return SevenBit
	case "8bit":
		return EightBit
	case "binary":
		return Binary
	case "quoted-printable":
		return QuotedPrintable
	case "base64":
		return Base64
	}
	return UnknownEncoding
}

// NewDecoder wraps r with the decoder for te. Encodings that need no
// decoding return r itself.
func (te TransferEncoding) NewDecoder(r io.Reader, qpOptions ...quotedprintable.ReaderOptionFunc) (io.Reader, error) {
	switch te {
	case Base64:
		return base64.NewReader(spaceless.NewReader(r)), nil
	case QuotedPrintable:
		qr, err := quotedprintable.NewReader(r, qpOptions...)
		if err != nil {
			return nil, fmt.Errorf("failed to create quoted-printable decoder: %w", err)
		}
		return qr, nil
	}
	return r, nil
}
