package logger

import (
	"io"
	"os"
	"strings"

	logging "github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

var stdoutLogFormat = logging.MustStringFormatter(
	`%{color:reset}%{color}%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

var fileLogFormat = logging.MustStringFormatter(
	`%{time:2006-01-02 15:04:05.000} [%{level}] [%{module}/%{shortfunc}] %{message}`,
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the stdout backend and, when file is set, a rotating file
// backend. The returned closer flushes the file writer.
func Setup(level, file string) io.Closer {
	backendStdout := logging.NewLogBackend(os.Stdout, "", 0)
	backendStdoutFormatter := logging.NewBackendFormatter(backendStdout, stdoutLogFormat)

	var closer io.Closer = nopCloser{}
	if file != "" {
		w := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		backendFile := logging.NewLogBackend(w, "", 0)
		backendFileFormatter := logging.NewBackendFormatter(backendFile, fileLogFormat)
		logging.SetBackend(backendFileFormatter, backendStdoutFormatter)
		closer = w
	} else {
		logging.SetBackend(backendStdoutFormatter)
	}

	logging.SetLevel(ParseLevel(level), "")
	return closer
}

// ParseLevel maps a level name to a logging level, defaulting to INFO.
func ParseLevel(level string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logging.DEBUG
	case "info":
		return logging.INFO
	case "notice":
		return logging.NOTICE
	case "warning", "warn":
		return logging.WARNING
	case "error":
		return logging.ERROR
	case "critical":
		return logging.CRITICAL
	default:
		return logging.INFO
	}
}
