// Package logging builds the slog handlers used by the library and the CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (d discard) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discard) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops everything. Components use it when no
// logger was given.
func Discard() *slog.Logger {
	return slog.New(discard{})
}

// NewHandler returns a colored text handler when f is a terminal and a JSON
// handler otherwise. Logs never go to stdout, which carries command output.
func NewHandler(f *os.File, level slog.Level) slog.Handler {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return tint.NewHandler(colorable.NewColorable(f), &tint.Options{Level: level})
	}
	return NewJSONHandler(f, level)
}

func NewJSONHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
