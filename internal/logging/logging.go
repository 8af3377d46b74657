// Package logging configures zerolog for the signage binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects the log level and output format.
type Options struct {
	Level  string // zerolog level name; empty means info
	Format string // "console" or "json"; empty means console
	Out    io.Writer
}

// Setup builds the process logger and installs it as the global zerolog
// logger. An unknown level falls back to info and is reported as an error.
func Setup(opts Options) (zerolog.Logger, error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var err error
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, perr := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if perr != nil || parsed == zerolog.NoLevel {
			err = fmt.Errorf("unknown log level %q, using info", opts.Level)
		} else {
			level = parsed
		}
	}

	var writer io.Writer = out
	if opts.Format != FormatJSON {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(level)
	log.Logger = logger
	return logger, err
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
