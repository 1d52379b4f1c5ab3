package dap

import (
	"io"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
)

// consoleHook forwards adapter diagnostics to the client as output
// events with the "console" category, so attach progress and breakpoint
// warnings show up in the client's debug console rather than only in a
// local log file.
type consoleHook struct {
	s *Server
}

func (h *consoleHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel}
}

func (h *consoleHook) Fire(entry *logrus.Entry) error {
	if h.s.conn == nil {
		return nil
	}
	h.s.send(&dap.OutputEvent{
		Event: *newEvent("output"),
		Body:  dap.OutputEventBody{Category: "console", Output: entry.Message + "\n"},
	})
	return nil
}

// newConsoleLogger builds the logger used for user-facing session
// diagnostics. Records are delivered to the client only; the server's
// own structured log is separate and controlled by the log flags.
func newConsoleLogger(s *Server) *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	l.Level = logrus.InfoLevel
	l.AddHook(&consoleHook{s: s})
	return logrus.NewEntry(l)
}
