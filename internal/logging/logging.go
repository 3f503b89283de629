// Package logging builds the per-invocation logrus logger: a rotating log
// file, optionally mirrored to stderr, tagged with an invocation ID.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cognaterra/better-drinking-bird/internal/config"
)

// InvocationIDKey is the field carrying the per-process invocation ID.
const InvocationIDKey = "invocation_id"

// EnvDebug mirrors log output to stderr when set to a non-empty value.
const EnvDebug = "BDB_DEBUG"

// LogFormatter renders entries as
// [2026-01-02 15:04:05] [1a2b3c4d] [info ] [stop.go:42] message | k=v, k2=v2
type LogFormatter struct{}

// Format renders a single log entry.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	invocationID := "--------"
	if id, ok := entry.Data[InvocationIDKey].(string); ok && id != "" {
		invocationID = shortID(id)
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s] [%s] [%-5s] [%s:%d] %s", timestamp, invocationID, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message)
	} else {
		fmt.Fprintf(buffer, "[%s] [%s] [%-5s] %s", timestamp, invocationID, level, message)
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != InvocationIDKey {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		buffer.WriteString(" |")
		for i, k := range keys {
			if i > 0 {
				buffer.WriteString(",")
			}
			fmt.Fprintf(buffer, " %s=%v", k, entry.Data[k])
		}
	}
	buffer.WriteString("\n")

	return buffer.Bytes(), nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Logger is the configured logger plus the resources it owns.
type Logger struct {
	*log.Entry
	writer *lumberjack.Logger
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l.writer == nil {
		return nil
	}
	return l.writer.Close()
}

// New builds a logger from cfg. mirror additionally writes to stderr.
// When the log file cannot be prepared the logger still works, writing to
// stderr if mirrored and discarding otherwise, and the error is returned.
func New(cfg config.LoggingConfig, mirror bool) (*Logger, error) {
	logger := log.New()
	logger.SetReportCaller(true)
	logger.SetFormatter(&LogFormatter{})

	var setupErr error
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
		setupErr = fmt.Errorf("logging: %w", err)
	}
	logger.SetLevel(level)

	var writers []io.Writer
	var fileWriter *lumberjack.Logger
	if path := config.ExpandHome(cfg.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			setupErr = fmt.Errorf("logging: failed to create log directory: %w", err)
		} else {
			fileWriter = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    max(cfg.MaxSizeMB, 1),
				MaxBackups: cfg.MaxBackups,
			}
			writers = append(writers, fileWriter)
		}
	}
	if mirror {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField(InvocationIDKey, uuid.NewString())
	return &Logger{Entry: entry, writer: fileWriter}, setupErr
}

// MirrorFromEnv reports whether BDB_DEBUG asks for stderr output.
func MirrorFromEnv() bool {
	return os.Getenv(EnvDebug) != ""
}

// Discard returns a logger that drops everything, for tests and fallbacks.
func Discard() *Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return &Logger{Entry: log.NewEntry(logger)}
}
