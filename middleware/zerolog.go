package middleware

import (
	"time"

	"github.com/rs/zerolog"
)

type zerologLogger struct {
	log zerolog.Logger
}

// Zerolog adapts a zerolog.Logger to the Logger interface.
func Zerolog(log zerolog.Logger) Logger {
	return zerologLogger{log: log}
}

func (z zerologLogger) Info(msg string, fields ...Field) {
	withFields(z.log.Info(), fields).Msg(msg)
}

func (z zerologLogger) Error(msg string, fields ...Field) {
	withFields(z.log.Error(), fields).Msg(msg)
}

func (z zerologLogger) Debug(msg string, fields ...Field) {
	withFields(z.log.Debug(), fields).Msg(msg)
}

func (z zerologLogger) Warn(msg string, fields ...Field) {
	withFields(z.log.Warn(), fields).Msg(msg)
}

func withFields(e *zerolog.Event, fields []Field) *zerolog.Event {
	// Disabled levels return a nil event.
	if e == nil {
		return e
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case int64:
			e = e.Int64(f.Key, v)
		case bool:
			e = e.Bool(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	return e
}
