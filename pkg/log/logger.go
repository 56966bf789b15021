package log

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// zerologLogger adapts zerolog to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger returns a Logger writing JSON lines to w.
func NewZerologLogger(w io.Writer, level Level) Logger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// NewConsoleLogger returns a Logger writing human-readable lines to w.
func NewConsoleLogger(w io.Writer, level Level) Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	zl := zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// SetupLogger builds the process logger from a level name. Console output
// is meant for terminals; JSON otherwise.
func SetupLogger(w io.Writer, level string, console bool) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if console {
		return NewConsoleLogger(w, lvl), nil
	}
	return NewZerologLogger(w, lvl), nil
}

func (l *zerologLogger) Debug(msg string, fields ...any) { emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any) { emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any) { emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for _, kv := range pairs(fields) {
		if err, ok := kv.value.(error); ok {
			ctx = ctx.AnErr(kv.key, err)
			continue
		}
		ctx = ctx.Interface(kv.key, kv.value)
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for _, kv := range pairs(fields) {
		switch v := kv.value.(type) {
		case error:
			e = e.AnErr(kv.key, v)
			if kv.key == ErrAttrKey {
				if st := extractStacktrace(v); st != "" {
					e = e.Str(StacktraceAttrKey, st)
				}
			}
		case zerolog.LogObjectMarshaler:
			e = e.Object(kv.key, v)
		case time.Duration:
			e = e.Dur(kv.key, v)
		default:
			e = e.Interface(kv.key, v)
		}
	}
	e.Msg(msg)
}

type field struct {
	key   string
	value any
}

// pairs normalizes variadic fields. A leading error without a key is
// stored under ErrAttrKey; a trailing key without value is dropped.
func pairs(fields []any) []field {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err}, fields[1:]...)
		}
	}
	out := make([]field, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		out = append(out, field{key: fmt.Sprint(fields[i]), value: fields[i+1]})
	}
	return out
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
