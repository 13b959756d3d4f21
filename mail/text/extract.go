package text

import (
	_bufio "bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/teawithsand/smtpc"
	"github.com/teawithsand/smtpc/internal/logging"
)

// Extractor writes the text parts of messages as UTF-8.
type Extractor struct {
	logger        *slog.Logger
	html          bool
	walkerOptions []smtpc.OptionFunc
}

type OptionFunc func(e *Extractor) error

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(e *Extractor) error {
		if logger == nil {
			logger = logging.Discard()
		}
		e.logger = logger
		return nil
	}
}

// WithHTML controls whether text/html parts are rendered. They are by
// default.
func WithHTML(enabled bool) OptionFunc {
	return func(e *Extractor) error {
		e.html = enabled
		return nil
	}
}

// WithWalkerOptions passes options on to the Walker used by Extract.
func WithWalkerOptions(options ...smtpc.OptionFunc) OptionFunc {
	return func(e *Extractor) error {
		e.walkerOptions = append(e.walkerOptions, options...)
		return nil
	}
}

func NewExtractor(options ...OptionFunc) (*Extractor, error) {
	e := &Extractor{
		logger: logging.Discard(),
		html:   true,
	}
	for _, o := range options {
		if err := o(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func isAttachment(part *smtpc.Part) bool {
	v := part.Header.Get("Content-Disposition")
	if v == "" {
		return false
	}
	disposition, _, err := mime.ParseMediaType(v)
	return err == nil && disposition == "attachment"
}

func (e *Extractor) renders(part *smtpc.Part) bool {
	switch part.ContentType {
	case "text/plain":
	case "text/html":
		if !e.html {
			return false
		}
	default:
		return false
	}
	return !isAttachment(part)
}

func parentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

// writePlain copies r to w with CRLF turned into LF, ending with a newline.
func writePlain(w io.Writer, r io.Reader) error {
	br := _bufio.NewReader(r)
	bw := _bufio.NewWriter(w)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
		if err == io.EOF {
			return bw.Flush()
		}
		if err != nil {
			return err
		}
	}
}

// Extract writes the text of the message read from r to w, parts separated
// by an empty line. Attachments are skipped. Of the parts of a
// multipart/alternative only the first one rendered is used. Parts in an
// unknown charset are skipped with a warning.
func (e *Extractor) Extract(ctx context.Context, w io.Writer, r io.Reader) error {
	rendered := map[string]bool{}
	written := 0
	handler := smtpc.PartHandlerFunc(func(ctx context.Context, part *smtpc.Part) error {
		if !e.renders(part) {
			return nil
		}
		group := parentPath(part.Path)
		if part.Parent == "multipart/alternative" && rendered[group] {
			return nil
		}
		body, err := NewCharsetReader(part.Body, part.Params["charset"])
		if err != nil {
			e.logger.Warn("skipping part", slog.String("path", part.Path), slog.Any("error", err))
			return nil
		}
		if written > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if part.ContentType == "text/html" {
			err = WriteHTML(w, body)
		} else {
			err = writePlain(w, body)
		}
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", part.ContentType, err)
		}
		rendered[group] = true
		written++
		return nil
	})
	walker, err := smtpc.NewWalker(
		handler,
		append([]smtpc.OptionFunc{smtpc.WithLogger(e.logger)}, e.walkerOptions...)...,
	)
	if err != nil {
		return err
	}
	return walker.Walk(ctx, r)
}
