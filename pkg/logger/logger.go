package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string // debug, info, warn, error
	Format  string // json or console
	Output  string // stdout (default), stderr or a file path
	Service string // stamped on every entry when set
}

// Logger is a zerolog wrapper with typed fields. Children made with With share the
// parent's digest collector.
type Logger struct {
	zl   zerolog.Logger
	base []Field
	sink *digestSink
}

// digestSink is shared by a logger and all of its children.
type digestSink struct {
	mu sync.RWMutex
	c  *Collector
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
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().CallerWithSkipFrameCount(3)
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	return &Logger{zl: ctx.Logger(), sink: &digestSink{}}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), sink: &digestSink{}}
}

// With returns a child logger that stamps fields on every entry, e.g. the ticker being processed.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = f.context(ctx)
	}
	base := append(append([]Field{}, l.base...), fields...)
	return &Logger{zl: ctx.Logger(), base: base, sink: l.sink}
}

func (l *Logger) Debug(msg string, fields ...Field) { emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { emit(l.zl.Info(), msg, fields) }

// Warn entries are collected too: skipped tickers and missing quotes surface as warnings.
func (l *Logger) Warn(msg string, fields ...Field) {
	emit(l.zl.Warn(), msg, fields)
	l.collect("warn", msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	emit(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func emit(e *zerolog.Event, msg string, fields []Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		f.apply(e)
	}
	e.Msg(msg)
}

// EnableDigests starts folding warnings and errors into periodic digests, replacing any
// running collector.
func (l *Logger) EnableDigests(cfg DigestConfig) {
	c := NewCollector(cfg)
	l.sink.mu.Lock()
	old := l.sink.c
	l.sink.c = c
	l.sink.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// DisableDigests flushes and stops the collector.
func (l *Logger) DisableDigests() {
	l.sink.mu.Lock()
	old := l.sink.c
	l.sink.c = nil
	l.sink.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.sink == nil {
		return
	}
	l.sink.mu.RLock()
	c := l.sink.c
	l.sink.mu.RUnlock()
	if c == nil {
		return
	}

	// frames: collect -> Warn/Error -> caller
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		caller = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	values := make(map[string]interface{}, len(l.base)+len(fields))
	for _, f := range l.base {
		values[f.Key] = f.Value()
	}
	for _, f := range fields {
		values[f.Key] = f.Value()
	}
	c.Add(level, msg, values, caller)
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindError
	kindAny
)

// Field is one typed key/value pair.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	bln  bool
	err  error
	any  interface{}
}

func (f Field) apply(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.Key, f.str)
	case kindInt:
		e.Int64(f.Key, f.num)
	case kindFloat:
		e.Float64(f.Key, f.flt)
	case kindBool:
		e.Bool(f.Key, f.bln)
	case kindError:
		e.AnErr(f.Key, f.err)
	default:
		e.Interface(f.Key, f.any)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch f.kind {
	case kindString:
		return c.Str(f.Key, f.str)
	case kindInt:
		return c.Int64(f.Key, f.num)
	case kindFloat:
		return c.Float64(f.Key, f.flt)
	case kindBool:
		return c.Bool(f.Key, f.bln)
	case kindError:
		return c.AnErr(f.Key, f.err)
	default:
		return c.Interface(f.Key, f.any)
	}
}

// Value returns the field's value as it appears in digests.
func (f Field) Value() interface{} {
	switch f.kind {
	case kindString:
		return f.str
	case kindInt:
		return f.num
	case kindFloat:
		return f.flt
	case kindBool:
		return f.bln
	case kindError:
		if f.err == nil {
			return ""
		}
		return f.err.Error()
	default:
		return f.any
	}
}

func String(key, value string) Field { return Field{Key: key, kind: kindString, str: value} }
func Int(key string, value int) Field { return Field{Key: key, kind: kindInt, num: int64(value)} }
func Int64(key string, value int64) Field { return Field{Key: key, kind: kindInt, num: value} }
func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }
func Bool(key string, value bool) Field       { return Field{Key: key, kind: kindBool, bln: value} }
func Error(err error) Field                   { return Field{Key: "error", kind: kindError, err: err} }
func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, any: value} }

// Duration logs whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64(key, value.Milliseconds())
}

// Date logs a trading day as YYYY-MM-DD.
func Date(key string, value time.Time) Field {
	return String(key, value.Format("2006-01-02"))
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ","))
}
