package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the process logger. Output is JSON on stdout except in dev,
// where the console writer is easier to read.
func New(level, env string) zerolog.Logger {
	return newWithWriter(level, env, os.Stdout)
}

func newWithWriter(level, env string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
