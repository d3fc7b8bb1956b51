package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// Logger provides leveled logging throughout the ingester. Messages below the
// configured level are dropped; errors always go to the error stream.
type Logger struct {
	out *log.Logger
	err *log.Logger
	min level
}

// NewLogger creates a Logger writing to stdout/stderr. level is one of debug,
// info, warn or error; anything else means info.
func NewLogger(level string) *Logger {
	return newLogger(os.Stdout, os.Stderr, level)
}

// NewLoggerTo creates a Logger that writes every level to w.
func NewLoggerTo(w io.Writer, level string) *Logger {
	return newLogger(w, w, level)
}

func newLogger(out, errOut io.Writer, name string) *Logger {
	return &Logger{
		out: log.New(out, "", 0),
		err: log.New(errOut, "", 0),
		min: parseLevel(name),
	}
}

func parseLevel(name string) level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	}
	return levelInfo
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) printf(lv level, dst *log.Logger, tag, format string, args []any) {
	if lv < l.min {
		return
	}
	dst.Printf(fmt.Sprintf("[%s] %s %s\n", l.timestamp(), tag, format), args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.printf(levelInfo, l.out, "\033[32mINFO\033[0m ", format, args)
}

func (l *Logger) Warn(format string, args ...any) {
	l.printf(levelWarn, l.out, "\033[33mWARN\033[0m ", format, args)
}

func (l *Logger) Error(format string, args ...any) {
	l.printf(levelError, l.err, "\033[31mERROR\033[0m", format, args)
}

func (l *Logger) Debug(format string, args ...any) {
	l.printf(levelDebug, l.out, "\033[36mDEBUG\033[0m", format, args)
}
