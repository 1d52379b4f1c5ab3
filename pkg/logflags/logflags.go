// Package logflags configures the component loggers of the adapter.
// Logging is off by default; --log enables it and --log-output selects
// which components produce debug output.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	dap     = false
	wire    = false
	logOut  io.Writer
	logFile *os.File
)

// Close closes the file output opened by Setup, if any.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	lf := logrus.New()
	lf.Formatter = textFormatter()
	if logOut != nil {
		lf.Out = logOut
	}
	logger := lf.WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	return logger
}

// textFormatter colors output when the destination is a terminal.
func textFormatter() logrus.Formatter {
	colors := logOut == nil && isatty.IsTerminal(os.Stderr.Fd())
	return &logrus.TextFormatter{
		ForceColors:   colors,
		FullTimestamp: true,
	}
}

// DAP returns true if the dap server should log.
func DAP() bool {
	return dap
}

// DAPLogger returns a logger for the dap package.
func DAPLogger() *logrus.Entry {
	return makeLogger(dap, logrus.Fields{"layer": "dap"})
}

// Wire returns true if jdwp packet traffic should be logged.
func Wire() bool {
	return wire
}

// WireLogger returns a configured logger for the jdwp wire protocol.
func WireLogger() *logrus.Entry {
	return makeLogger(wire, logrus.Fields{"layer": "jvmwire"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component flags based on the contents of logstr and
// redirects output to logDest if non-empty (a file path, or a file
// descriptor number inherited from the parent process).
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logFile = os.NewFile(uintptr(n), "jdap-logs")
		} else {
			logFile, err = os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
		}
		logOut = logFile
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		logOut = colorable.NewColorableStderr()
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "dap"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "dap":
			dap = true
		case "jvmwire":
			wire = true
		}
	}
	return nil
}
