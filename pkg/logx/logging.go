package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// Logger is a structured logger over zerolog.
//
// The zero value discards everything. With bakes its fields into the derived
// logger once, so per-event cost does not grow with the number of With calls.
type Logger struct {
	zl *zerolog.Logger
}

var nop = zerolog.Nop()

// Nop returns a logger that writes nothing but is not IsZero.
func Nop() Logger { return Logger{zl: &nop} }

// NewConsole creates a human-readable logger on stderr.
func NewConsole(level string) Logger {
	return build(consoleWriter(Stderr()), level)
}

// NewWriter creates a JSON logger writing to w.
func NewWriter(w io.Writer, level string) Logger {
	return build(w, level)
}

func build(w io.Writer, level string) Logger {
	setGlobals()
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
	return Logger{zl: &zl}
}

// IsZero reports whether l is the zero Logger.
func (l Logger) IsZero() bool { return l.zl == nil }

// Enabled reports whether level would be written.
func (l Logger) Enabled(level Level) bool {
	if l.zl == nil {
		return false
	}
	return level >= l.zl.GetLevel()
}

func (l Logger) With(fields ...Field) Logger {
	if l.zl == nil || len(fields) == 0 {
		return l
	}
	c := l.zl.With()
	for _, f := range fields {
		c = f.context(c)
	}
	zl := c.Logger()
	return Logger{zl: &zl}
}

func (l Logger) Trace(msg string, fields ...Field) { l.write(zerolog.TraceLevel, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.write(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(zerolog.ErrorLevel, msg, fields) }

func (l Logger) write(level zerolog.Level, msg string, fields []Field) {
	if l.zl == nil {
		return
	}
	e := l.zl.WithLevel(level)
	if e == nil {
		return
	}
	// skip write and the level method
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, f := range fields {
		f.event(e)
	}
	e.Msg(msg)
}
