// Package logging wires the structured logger shared by every component.
package logging

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New builds a logger writing to stderr at the given level ("debug",
// "info", "warn", "error"; anything else falls back to "info").
func New(level string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "sqlited",
	})
	switch level {
	case "debug":
		l.SetLevel(log.DebugLevel)
	case "warn":
		l.SetLevel(log.WarnLevel)
	case "error":
		l.SetLevel(log.ErrorLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}
	return l
}
