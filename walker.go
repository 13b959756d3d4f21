// Package smtpc walks internet mail messages: it splits the header block
// from the body, follows multipart bodies and hands every leaf part, with
// its transfer encoding removed, to a PartHandler.
package smtpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/teawithsand/smtpc/encoding/multipart"
	"github.com/teawithsand/smtpc/encoding/quotedprintable"
	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/logging"
	"github.com/teawithsand/smtpc/mail/header"
)

const DefaultMaxDepth = 16

var ErrTooDeep = errors.New("multipart nesting too deep")

var crlf = []byte("\r\n")

// Part is a leaf entity of a message.
type Part struct {
	// Path is the dot separated position of the part, "1" for the body of
	// a message that is not multipart.
	Path  string
	Depth int
	// Parent is the media type of the enclosing multipart, "" when the
	// message is not multipart.
	Parent           string
	Header           *header.RawBag
	ContentType      string
	Params           map[string]string
	TransferEncoding header.TransferEncoding
	// Body yields the decoded content. It is only valid until HandlePart
	// returns.
	Body io.Reader
}

type PartHandler interface {
	HandlePart(ctx context.Context, part *Part) error
}

type PartHandlerFunc func(ctx context.Context, part *Part) error

func (f PartHandlerFunc) HandlePart(ctx context.Context, part *Part) error {
	return f(ctx, part)
}

type Walker struct {
	handler    PartHandler
	logger     *slog.Logger
	maxDepth   int
	lenientEOF bool
	strictQP   bool
}

type OptionFunc func(w *Walker) error

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(w *Walker) error {
		if logger == nil {
			logger = logging.Discard()
		}
		w.logger = logger
		return nil
	}
}

func WithMaxDepth(depth int) OptionFunc {
	return func(w *Walker) error {
		if depth < 0 {
			return fmt.Errorf("negative depth: %d", depth)
		}
		w.maxDepth = depth
		return nil
	}
}

// WithLenientEOF accepts multipart bodies whose last boundary line lacks
// its newline.
func WithLenientEOF(enabled bool) OptionFunc {
	return func(w *Walker) error {
		w.lenientEOF = enabled
		return nil
	}
}

func WithStrictQuotedPrintable(enabled bool) OptionFunc {
	return func(w *Walker) error {
		w.strictQP = enabled
		return nil
	}
}

func NewWalker(handler PartHandler, options ...OptionFunc) (*Walker, error) {
	w := &Walker{
		handler:  handler,
		logger:   logging.Discard(),
		maxDepth: DefaultMaxDepth,
	}
	for _, o := range options {
		if err := o(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func formatPath(path []int) string {
	if len(path) == 0 {
		return "1"
	}
	ss := make([]string, len(path))
	for i, p := range path {
		ss[i] = strconv.Itoa(p)
	}
	return strings.Join(ss, ".")
}

// readHeader reads the header block of the entity at src. An entity may
// start with the blank line right away when it has no header fields.
func readHeader(src io.Reader) (*header.RawBag, error) {
	hr := header.NewReader(io.MultiReader(bytes.NewReader(crlf), src), false)
	raw, err := io.ReadAll(hr)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	bag, err := header.ParseRawBag(bytes.TrimPrefix(raw, crlf))
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	return bag, nil
}

// Walk reads a message from r and reports its leaf parts in order.
func (w *Walker) Walk(ctx context.Context, r io.Reader) error {
	return w.walk(ctx, r, nil, "")
}

func (w *Walker) walk(ctx context.Context, r io.Reader, path []int, parent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := w.logger.With(slog.String("path", formatPath(path)))
	src := bufio.NewByteReader(r)
	bag, err := readHeader(src)
	if err != nil {
		return fmt.Errorf("part %s: %w", formatPath(path), err)
	}
	mediaType, params, err := bag.ContentType()
	if err != nil {
		logger.Warn("malformed content type, assuming text/plain", slog.Any("error", err))
		mediaType, params = "text/plain", map[string]string{}
	}
	logger.Debug("found part", slog.String("content_type", mediaType), slog.Int("fields", bag.Len()))

	if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
		if len(path) >= w.maxDepth {
			return fmt.Errorf("part %s: %w", formatPath(path), ErrTooDeep)
		}
		// the newline after a nested close delimiter belongs to the enclosing
		// boundary, so nested bodies end right after "--"
		lenient := w.lenientEOF || len(path) > 0
		mr, err := multipart.NewReader(src, params["boundary"], multipart.WithLenientEOF(lenient))
		if err != nil {
			return fmt.Errorf("part %s: %w", formatPath(path), err)
		}
		for i := 1; ; i++ {
			pr, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("part %s: failed to find the next part: %w", formatPath(path), err)
			}
			child := append(append(make([]int, 0, len(path)+1), path...), i)
			if err := w.walk(ctx, pr, child, mediaType); err != nil {
				return err
			}
		}
		logger.Debug("multipart done", slog.Int("parts", mr.Parts()))
		return nil
	}

	te := bag.TransferEncoding()
	body, err := te.NewDecoder(src, quotedprintable.WithStrict(w.strictQP))
	if err != nil {
		return fmt.Errorf("part %s: %w", formatPath(path), err)
	}
	err = w.handler.HandlePart(ctx, &Part{
		Path:             formatPath(path),
		Depth:            len(path),
		Parent:           parent,
		Header:           bag,
		ContentType:      mediaType,
		Params:           params,
		TransferEncoding: te,
		Body:             body,
	})
	if err != nil {
		logger.Warn("part handler failed", slog.Any("error", err))
		return fmt.Errorf("part %s: %w", formatPath(path), err)
	}
	return nil
}
