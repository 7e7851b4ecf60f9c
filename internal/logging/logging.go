// Package logging builds the service's structured logger.
package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w with timestamps and caller info. An
// unknown level falls back to info.
func New(w io.Writer, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Prefix:          "gallery",
	})
	l.SetLevel(ParseLevel(level))
	return l
}

// With returns a child logger tagged with component.
func With(l *log.Logger, component string) *log.Logger {
	return l.With("component", component)
}

func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
