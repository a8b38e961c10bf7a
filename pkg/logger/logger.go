package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a leveled zerolog logger taking typed fields.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()
	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that carries fields on every event.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.context(ctx)
	}
	return &Logger{zl: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { emit(l.zl.Error(), msg, fields) }

// emit is a no-op for disabled levels: zerolog hands back a nil event.
func emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindStrings
	kindInt
	kindFloat
	kindBool
	kindError
	kindAny
)

// Field is one typed key/value pair.
type Field struct {
	key  string
	kind fieldKind
	str  string
	strs []string
	num  int64
	flt  float64
	err  error
	any  interface{}
}

func (f Field) event(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.str)
	case kindStrings:
		e.Strs(f.key, f.strs)
	case kindInt:
		e.Int64(f.key, f.num)
	case kindFloat:
		e.Float64(f.key, f.flt)
	case kindBool:
		e.Bool(f.key, f.num != 0)
	case kindError:
		e.AnErr(f.key, f.err)
	default:
		e.Interface(f.key, f.any)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.key, f.str)
	case kindStrings:
		return c.Strs(f.key, f.strs)
	case kindInt:
		return c.Int64(f.key, f.num)
	case kindFloat:
		return c.Float64(f.key, f.flt)
	case kindBool:
		return c.Bool(f.key, f.num != 0)
	case kindError:
		return c.AnErr(f.key, f.err)
	default:
		return c.Interface(f.key, f.any)
	}
}

func String(key, value string) Field {
	return Field{key: key, kind: kindString, str: value}
}

func Strings(key string, value []string) Field {
	return Field{key: key, kind: kindStrings, strs: value}
}

func Int(key string, value int) Field {
	return Field{key: key, kind: kindInt, num: int64(value)}
}

func Int64(key string, value int64) Field {
	return Field{key: key, kind: kindInt, num: value}
}

func Uint64(key string, value uint64) Field {
	return Field{key: key, kind: kindInt, num: int64(value)}
}

func Float(key string, value float64) Field {
	return Field{key: key, kind: kindFloat, flt: value}
}

func Bool(key string, value bool) Field {
	f := Field{key: key, kind: kindBool}
	if value {
		f.num = 1
	}
	return f
}

// Error logs err under "error". A nil error is omitted.
func Error(err error) Field {
	return Field{key: zerolog.ErrorFieldName, kind: kindError, err: err}
}

func Any(key string, value interface{}) Field {
	return Field{key: key, kind: kindAny, any: value}
}

// Duration logs d in whole milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{key: key, kind: kindInt, num: d.Milliseconds()}
}
