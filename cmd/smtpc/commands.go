package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teawithsand/smtpc"
	"github.com/teawithsand/smtpc/encoding/base64"
	"github.com/teawithsand/smtpc/encoding/multipart"
	"github.com/teawithsand/smtpc/encoding/quotedprintable"
	"github.com/teawithsand/smtpc/internal/bufio"
	"github.com/teawithsand/smtpc/internal/dkimcheck"
	"github.com/teawithsand/smtpc/mail/header"
	"github.com/teawithsand/smtpc/mail/text"
)

const stdinName = "-"

func (app *App) open(name string) (io.ReadCloser, error) {
	if name == stdinName {
		return io.NopCloser(app.Stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}

func (app *App) readFile(name string) ([]byte, error) {
	f, err := app.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type HeadersCmd struct {
	File       string `arg:"" default:"-" help:"Message file, - for stdin."`
	Count      bool   `name:"count" help:"Print the length of the header block instead."`
	Fields     bool   `name:"fields" help:"Print the parsed fields, one per line, unfolded."`
	Standalone bool   `name:"standalone" help:"The input is a header block without a body."`
}

func (cmd *HeadersCmd) Run(app *App) error {
	if cmd.Count {
		b, err := app.readFile(cmd.File)
		if err != nil {
			return err
		}
		n, err := header.CountHeaderBytes(b)
		if err != nil {
			return fmt.Errorf("failed to find the end of the header block: %w", err)
		}
		_, err = fmt.Fprintln(app.Stdout, n)
		return err
	}
	f, err := app.open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	raw, err := io.ReadAll(header.NewReader(f, !cmd.Standalone))
	if err != nil {
		return fmt.Errorf("failed to read the header block: %w", err)
	}
	if !cmd.Fields {
		_, err = fmt.Fprintf(app.Stdout, "%s\r\n", raw)
		return err
	}
	bag, err := header.ParseRawBag(raw)
	if err != nil {
		return err
	}
	for _, field := range bag.Fields() {
		_, err = fmt.Fprintf(app.Stdout, "%s: %s\n", field.Name, field.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

type DecodeCmd struct {
	File     string `arg:"" default:"-" help:"Encoded file, - for stdin."`
	Encoding string `name:"encoding" short:"e" help:"Transfer encoding." enum:"base64,quoted-printable" default:"base64"`
	Strict   bool   `name:"strict" help:"Reject non-ASCII bytes and malformed soft breaks in Quoted-Printable input."`
}

func (cmd *DecodeCmd) Run(app *App) error {
	f, err := app.open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	r, err := header.ParseTransferEncoding(cmd.Encoding).NewDecoder(f, quotedprintable.WithStrict(cmd.Strict))
	if err != nil {
		return err
	}
	n, err := io.Copy(app.Stdout, r)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", cmd.File, err)
	}
	app.Logger.Debug("decoded", slog.String("file", cmd.File), slog.Int64("bytes", n))
	return nil
}

type EncodeCmd struct {
	File      string `arg:"" default:"-" help:"Input file, - for stdin."`
	Encoding  string `name:"encoding" short:"e" help:"Transfer encoding." enum:"base64,quoted-printable" default:"base64"`
	SoftBreak string `name:"soft-break" help:"Soft line break style for Quoted-Printable." enum:"none,standard,lf" default:"standard"`
}

func (cmd *EncodeCmd) newWriter(w io.Writer) (io.WriteCloser, error) {
	switch header.ParseTransferEncoding(cmd.Encoding) {
	case header.Base64:
		return base64.NewWriter(w, false), nil
	case header.QuotedPrintable:
		sb, err := quotedprintable.ParseSoftBreak(cmd.SoftBreak)
		if err != nil {
			return nil, err
		}
		return quotedprintable.NewWriter(w, quotedprintable.WithSoftBreak(sb))
	}
	return nil, fmt.Errorf("unsupported encoding: %s", cmd.Encoding)
}

func (cmd *EncodeCmd) Run(app *App) error {
	f, err := app.open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	w, err := cmd.newWriter(app.Stdout)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to encode %s: %w", cmd.File, err)
	}
	return w.Close()
}

type PartsCmd struct {
	File          string `arg:"" default:"-" help:"Multipart body, - for stdin."`
	Boundary      string `name:"boundary" short:"b" help:"Boundary marker." required:""`
	SingleNewline bool   `name:"single-newline" help:"Boundary lines end with LF instead of CRLF."`
	LenientEOF    bool   `name:"lenient-eof" help:"Accept a last boundary line without its newline."`
}

func (cmd *PartsCmd) Run(app *App) error {
	f, err := app.open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	mr, err := multipart.NewReader(
		f,
		cmd.Boundary,
		multipart.WithSingleNewline(cmd.SingleNewline),
		multipart.WithLenientEOF(cmd.LenientEOF),
	)
	if err != nil {
		return err
	}
	for {
		pr, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		n, err := bufio.Drain(pr)
		if err != nil {
			return fmt.Errorf("part %d: %w", mr.Parts(), err)
		}
		_, err = fmt.Fprintf(app.Stdout, "%d\t%d\t%s\n", mr.Parts(), n, pr.State())
		if err != nil {
			return err
		}
	}
}

type InspectCmd struct {
	Files      []string `arg:"" help:"Message files, - for stdin." default:"-"`
	Jobs       int      `name:"jobs" short:"j" help:"Number of messages processed at once." default:"4"`
	DKIMKeys   string   `name:"dkim-keys" help:"YAML table of DKIM key records to verify signatures against." env:"SMTPC_DKIM_KEYS" optional:""`
	MaxDepth   int      `name:"max-depth" help:"Maximum multipart nesting." default:"16"`
	LenientEOF bool     `name:"lenient-eof" help:"Accept a last boundary line without its newline."`
	Strict     bool     `name:"strict" help:"Decode Quoted-Printable parts strictly."`
}

type partSummary struct {
	path        string
	contentType string
	encoding    header.TransferEncoding
	size        int64
}

func (cmd *InspectCmd) inspect(ctx context.Context, app *App, name string, keys dkimcheck.KeyTable) (string, error) {
	logger := app.Logger.With(slog.String("file", name))
	data, err := app.readFile(name)
	if err != nil {
		return "", err
	}
	var parts []partSummary
	walker, err := smtpc.NewWalker(
		smtpc.PartHandlerFunc(func(ctx context.Context, part *smtpc.Part) error {
			n, err := bufio.Drain(part.Body)
			if err != nil {
				return err
			}
			parts = append(parts, partSummary{
				path:        part.Path,
				contentType: part.ContentType,
				encoding:    part.TransferEncoding,
				size:        n,
			})
			return nil
		}),
		smtpc.WithLogger(logger),
		smtpc.WithMaxDepth(cmd.MaxDepth),
		smtpc.WithLenientEOF(cmd.LenientEOF),
		smtpc.WithStrictQuotedPrintable(cmd.Strict),
	)
	if err != nil {
		return "", err
	}
	if err := walker.Walk(ctx, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", name)
	for _, p := range parts {
		fmt.Fprintf(&sb, "  %s\t%s\t%s\t%d\n", p.path, p.contentType, p.encoding, p.size)
	}
	if keys != nil {
		results, err := dkimcheck.Verify(bytes.NewReader(data), keys)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		if len(results) == 0 {
			fmt.Fprintf(&sb, "  dkim\tnone\n")
		}
		for _, r := range results {
			if r.OK() {
				fmt.Fprintf(&sb, "  dkim\t%s\tpass\n", r.Domain)
			} else {
				fmt.Fprintf(&sb, "  dkim\t%s\tfail\t%v\n", r.Domain, r.Err)
			}
		}
	}
	return sb.String(), nil
}

func (cmd *InspectCmd) Run(app *App) error {
	var keys dkimcheck.KeyTable
	if cmd.DKIMKeys != "" {
		var err error
		keys, err = dkimcheck.LoadKeyTable(cmd.DKIMKeys)
		if err != nil {
			return err
		}
	}
	ctx := app.Context
	if ctx == nil {
		ctx = context.Background()
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(cmd.Jobs, 1))
	reports := make([]string, len(cmd.Files))
	for i, name := range cmd.Files {
		eg.Go(func() error {
			report, err := cmd.inspect(ctx, app, name, keys)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, report := range reports {
		if _, err := io.WriteString(app.Stdout, report); err != nil {
			return err
		}
	}
	return nil
}

type TextCmd struct {
	File       string `arg:"" default:"-" help:"Message file, - for stdin."`
	NoHTML     bool   `name:"no-html" help:"Leave text/html parts out."`
	LenientEOF bool   `name:"lenient-eof" help:"Accept a last boundary line without its newline."`
}

func (cmd *TextCmd) Run(app *App) error {
	f, err := app.open(cmd.File)
	if err != nil {
		return err
	}
	defer f.Close()
	e, err := text.NewExtractor(
		text.WithLogger(app.Logger.With(slog.String("file", cmd.File))),
		text.WithHTML(!cmd.NoHTML),
		text.WithWalkerOptions(smtpc.WithLenientEOF(cmd.LenientEOF)),
	)
	if err != nil {
		return err
	}
	ctx := app.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.Extract(ctx, app.Stdout, f); err != nil {
		return fmt.Errorf("%s: %w", cmd.File, err)
	}
	return nil
}
