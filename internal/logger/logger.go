package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options controls where and how much the process logs. The zero value logs JSON at
// info level to stderr.
type Options struct {
	// Service is attached to every line so gateway and tool logs can be told apart.
	Service string
	// Env "development" switches to the console writer and debug level.
	Env string
	// Level overrides the env default, e.g. "warn". Unknown values are ignored.
	Level string
	Out   io.Writer
}

// FromEnv reads ENV and LOG_LEVEL. The logger is built before config loads so it can
// report config errors.
func FromEnv(service string) Options {
	return Options{Service: service, Env: os.Getenv("ENV"), Level: os.Getenv("LOG_LEVEL")}
}

func New(opts Options) zerolog.Logger {
	// Cloud Logging reads the level from "severity".
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out}
		level = zerolog.DebugLevel
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil && opts.Level != "" {
		level = l
	}

	ctx := zerolog.New(out).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	return ctx.Logger().Level(level)
}
