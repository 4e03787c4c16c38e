// Package logging provides the structured logger used across the adapter
// layer. Adapters emit debug/warn events only; classifying and logging
// operation failures is the caller's concern.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal structured logging surface the adapters depend on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a child logger that attaches fields to every entry.
	WithFields(fields ...Field) Logger

	SetLevel(level Level)
	SetOutput(w io.Writer)
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Error(err error) Field                 { return Field{Key: "error", Value: err.Error()} }
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// logger is the default JSON-lines implementation.
type logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	fields []Field
}

// NewLogger returns a JSON logger writing to stdout at INFO.
func NewLogger() Logger {
	return &logger{out: os.Stdout, level: INFO}
}

// NewNopLogger returns a logger that discards everything. It is the default
// inside adapters when no logger is configured.
func NewNopLogger() Logger {
	return &logger{out: io.Discard, level: ERROR + 1}
}

func (l *logger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}
	for _, f := range l.fields {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error marshaling log entry: %v\n", err)
		return
	}
	data = append(data, '\n')
	if _, err := l.out.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "error writing log entry: %v\n", err)
	}
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *logger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

func (l *logger) WithFields(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	child := &logger{out: l.out, level: l.level}
	child.fields = append(append([]Field{}, l.fields...), fields...)
	return child
}

func (l *logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}
