package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger writes to stdout: console format when APP_ENV=dev, JSON
// otherwise. LOG_LEVEL (debug, info, warn, error) sets the minimum level,
// info by default. Every entry carries the component field.
func NewZerologLogger(component string) Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, component, levelFromEnv())
}

// NewWithWriter builds a logger on an arbitrary writer.
func NewWithWriter(w io.Writer, component string, level zerolog.Level) *ZerologLogger {
	z := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
