package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = zerolog.Nop()
	once   sync.Once
)

type Option func(*options)

type options struct {
	fileName string
	console  bool
	level    zerolog.Level
	out      io.Writer
}

// WithFileLogger adds a size-rotated log file.
func WithFileLogger(fileName string) Option {
	return func(o *options) {
		o.fileName = fileName
	}
}

// WithConsoleLogger writes human readable lines to stdout.
func WithConsoleLogger() Option {
	return func(o *options) {
		o.console = true
	}
}

// WithLogLevel accepts zerolog level names ("debug", "info", ...). Unknown names keep info.
func WithLogLevel(level string) Option {
	return func(o *options) {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && parsed != zerolog.NoLevel {
			o.level = parsed
		}
	}
}

// WithWriter replaces stdout as the default sink.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// Init configures the process logger once. Later calls are ignored.
func Init(serviceName string, opts ...Option) zerolog.Logger {
	once.Do(func() {
		logger = New(serviceName, opts...)
	})
	return logger
}

// New builds a logger without touching the process-wide one.
func New(serviceName string, opts ...Option) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	o := &options{level: zerolog.InfoLevel, out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	writers := make([]io.Writer, 0, 2)
	if o.console {
		writers = append(writers, zerolog.ConsoleWriter{Out: o.out, TimeFormat: time.RFC3339})
	}
	if o.fileName != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   o.fileName,
			MaxSize:    5,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		})
	}
	if len(writers) == 0 {
		writers = append(writers, o.out)
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(o.level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

func GetLogger() zerolog.Logger {
	return logger
}
