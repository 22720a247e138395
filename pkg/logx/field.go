package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field is one key/value attached to an event or a derived logger.
type Field struct {
	Key   string
	Value any
}

func String(k, v string) Field                 { return Field{k, v} }
func Int(k string, v int) Field                { return Field{k, v} }
func Int64(k string, v int64) Field            { return Field{k, v} }
func Bool(k string, v bool) Field              { return Field{k, v} }
func Duration(k string, v time.Duration) Field { return Field{k, v} }
func Time(k string, v time.Time) Field         { return Field{k, v} }
func Strings(k string, v []string) Field       { return Field{k, v} }
func Any(k string, v any) Field                { return Field{k, v} }

// Err attaches err under "err". A nil error adds nothing.
func Err(err error) Field { return Field{ErrorKey, err} }

const ErrorKey = "err"

func (f Field) event(e *zerolog.Event) {
	switch v := f.Value.(type) {
	case string:
		e.Str(f.Key, v)
	case int:
		e.Int(f.Key, v)
	case int64:
		e.Int64(f.Key, v)
	case bool:
		e.Bool(f.Key, v)
	case time.Duration:
		e.Dur(f.Key, v)
	case time.Time:
		e.Time(f.Key, v)
	case []string:
		e.Strs(f.Key, v)
	case error:
		e.AnErr(f.Key, v)
	case nil:
		if f.Key != ErrorKey {
			e.Interface(f.Key, nil)
		}
	default:
		e.Interface(f.Key, v)
	}
}

func (f Field) context(c zerolog.Context) zerolog.Context {
	switch v := f.Value.(type) {
	case string:
		return c.Str(f.Key, v)
	case int:
		return c.Int(f.Key, v)
	case int64:
		return c.Int64(f.Key, v)
	case bool:
		return c.Bool(f.Key, v)
	case time.Duration:
		return c.Dur(f.Key, v)
	case time.Time:
		return c.Time(f.Key, v)
	case []string:
		return c.Strs(f.Key, v)
	case error:
		return c.AnErr(f.Key, v)
	case nil:
		return c
	default:
		return c.Interface(f.Key, v)
	}
}
