package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/teawithsand/smtpc/internal/logging"
)

// App carries what commands need from the process.
type App struct {
	Context context.Context
	Logger  *slog.Logger
	Stdin   io.Reader
	Stdout  io.Writer
}

type CLI struct {
	LogLevel slog.Level      `name:"log-level" help:"Log level." env:"SMTPC_LOG_LEVEL" default:"INFO" enum:"DEBUG,INFO,WARN,ERROR"`
	Config   kong.ConfigFlag `name:"config" help:"Path to a YAML configuration file." env:"SMTPC_CONFIG" optional:""`

	Headers HeadersCmd `cmd:"" help:"Print the header block of a message."`
	Decode  DecodeCmd  `cmd:"" help:"Decode a Base64 or Quoted-Printable stream."`
	Encode  EncodeCmd  `cmd:"" help:"Encode a stream as Base64 or Quoted-Printable."`
	Parts   PartsCmd   `cmd:"" help:"List the parts of a multipart body."`
	Inspect InspectCmd `cmd:"" help:"Print the part tree of messages."`
	Text    TextCmd    `cmd:"" help:"Print the text of a message as UTF-8."`
}

func (CLI *CLI) initLogger(*kong.Context) *slog.Logger {
	return slog.New(logging.NewHandler(os.Stderr, CLI.LogLevel))
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("smtpc"),
		kong.Description("Streaming mail decoding toolkit."),
		kong.Configuration(yamlLoader),
		kong.UsageOnError(),
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	var CLI CLI
	parser, err := newParser(&CLI)
	if err != nil {
		panic(err)
	}
	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	logger := CLI.initLogger(kongCtx)
	err = kongCtx.Run(&App{
		Context: ctx,
		Logger:  logger,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	})
	if err != nil {
		logger.Error("command failed", slog.String("command", kongCtx.Command()), slog.Any("error", err))
		os.Exit(1)
	}
}
