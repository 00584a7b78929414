package logger

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

var (
	once sync.Once
	le   *log.Entry
)

// AddLogger returns the process-wide log entry, creating it on first use.
// Set LOG_FORMAT=json for machine-readable output and LOG_LEVEL to override
// the default info level.
func AddLogger() *log.Entry {
	once.Do(func() {
		le = log.NewEntry(newLogger())
	})

	return le
}

func newLogger() *log.Logger {
	logger := log.New()

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&log.JSONFormatter{
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				return f.Function, fmt.Sprintf("%s:%d", f.File, f.Line)
			},
		})
	} else {
		logger.SetFormatter(&log.TextFormatter{
			ForceColors:   true,
			FullTimestamp: true,
			CallerPrettyfier: func(_ *runtime.Frame) (string, string) {
				return "", ""
			},
			QuoteEmptyFields: true,
		})
	}

	logger.SetReportCaller(true)
	logger.SetLevel(levelFromEnv())
	logger.Out = os.Stdout

	return logger
}

func levelFromEnv() log.Level {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		return log.InfoLevel
	}

	level, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel
	}

	return level
}
