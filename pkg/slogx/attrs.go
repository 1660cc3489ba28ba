// Package slogx carries the small log/slog attribute helpers shared by
// every waggle package, so log output stays uniform across the broker,
// the planners and the dashboard.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns a slog.Attr with key "error" and the error's message as
// value. Handlers and delivery loops log failures through this helper so
// error lines are grep-able by a single key.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer returns a slog.Attr holding the string form of any
// fmt.Stringer, evaluated eagerly. Useful for uuid.UUID and
// messages.Kind values.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// KeyLoggerName is the attribute key identifying which component
// produced a log line.
const KeyLoggerName = "logger"

// LoggerName tags a log line with the component it came from, e.g.
// "broker" or "agents.demand".
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
