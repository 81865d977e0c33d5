package core

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Logger provides structured logging capabilities
// This abstraction allows swapping logging implementations
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})

	// WithFields returns a logger that attaches fields to every entry
	WithFields(fields map[string]interface{}) Logger
}

// Level is a logging threshold
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a config string into a Level. Unknown values map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// NewLogger builds a logger from config values: format is "json" or "text".
func NewLogger(format string, level string) Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return newJSONLogger(os.Stdout, lvl)
	}
	return newTextLogger(os.Stderr, os.Stdout, lvl)
}

// defaultLogger implements Logger using Go's standard log package
// Can be swapped with other logging implementations (e.g., structured loggers)
type defaultLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	minLevel    Level
	fields      map[string]interface{}
}

// NewDefaultLogger creates a new default logger implementation
func NewDefaultLogger() Logger {
	return newTextLogger(os.Stderr, os.Stdout, LevelDebug)
}

// NewWriterLogger creates a text logger sending every level to w
func NewWriterLogger(w io.Writer, minLevel Level) Logger {
	return newTextLogger(w, w, minLevel)
}

func newTextLogger(errOut, out io.Writer, minLevel Level) *defaultLogger {
	return &defaultLogger{
		errorLogger: log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		warnLogger:  log.New(errOut, "[WARN] ", log.LstdFlags|log.Lshortfile),
		infoLogger:  log.New(out, "[INFO] ", log.LstdFlags|log.Lshortfile),
		debugLogger: log.New(out, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
		minLevel:    minLevel,
	}
}

func (l *defaultLogger) output(level Level, target *log.Logger, msg string) {
	if level < l.minLevel {
		return
	}
	if len(l.fields) > 0 {
		msg = msg + " " + formatFields(l.fields)
	}
	target.Output(3, msg)
}

// Error logs an error message
func (l *defaultLogger) Error(args ...interface{}) {
	l.output(LevelError, l.errorLogger, fmt.Sprint(args...))
}

// Errorf logs a formatted error message
func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.output(LevelError, l.errorLogger, fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *defaultLogger) Warn(args ...interface{}) {
	l.output(LevelWarn, l.warnLogger, fmt.Sprint(args...))
}

// Warnf logs a formatted warning message
func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.output(LevelWarn, l.warnLogger, fmt.Sprintf(format, args...))
}

// Info logs an informational message
func (l *defaultLogger) Info(args ...interface{}) {
	l.output(LevelInfo, l.infoLogger, fmt.Sprint(args...))
}

// Infof logs a formatted informational message
func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.output(LevelInfo, l.infoLogger, fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func (l *defaultLogger) Debug(args ...interface{}) {
	l.output(LevelDebug, l.debugLogger, fmt.Sprint(args...))
}

// Debugf logs a formatted debug message
func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.output(LevelDebug, l.debugLogger, fmt.Sprintf(format, args...))
}

// WithFields returns a copy of the logger carrying the merged fields
func (l *defaultLogger) WithFields(fields map[string]interface{}) Logger {
	cp := *l
	cp.fields = mergeFields(l.fields, fields)
	return &cp
}

// jsonLogger writes one JSON object per entry
type jsonLogger struct {
	mu       *sync.Mutex
	out      io.Writer
	minLevel Level
	fields   map[string]interface{}
}

type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewJSONLogger creates a logger emitting JSON lines on stdout
func NewJSONLogger() Logger {
	return newJSONLogger(os.Stdout, LevelDebug)
}

func newJSONLogger(out io.Writer, minLevel Level) *jsonLogger {
	return &jsonLogger{mu: &sync.Mutex{}, out: out, minLevel: minLevel}
}

func (l *jsonLogger) write(level Level, msg string) {
	if level < l.minLevel {
		return
	}
	data, err := sonic.Marshal(jsonEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Fields:    l.fields,
	})
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":"ERROR","message":"log encode failed: %v"}`, err))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}

func (l *jsonLogger) Error(args ...interface{}) { l.write(LevelError, fmt.Sprint(args...)) }
func (l *jsonLogger) Errorf(format string, args ...interface{}) {
	l.write(LevelError, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Warn(args ...interface{}) { l.write(LevelWarn, fmt.Sprint(args...)) }
func (l *jsonLogger) Warnf(format string, args ...interface{}) {
	l.write(LevelWarn, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Info(args ...interface{}) { l.write(LevelInfo, fmt.Sprint(args...)) }
func (l *jsonLogger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, fmt.Sprintf(format, args...))
}
func (l *jsonLogger) Debug(args ...interface{}) { l.write(LevelDebug, fmt.Sprint(args...)) }
func (l *jsonLogger) Debugf(format string, args ...interface{}) {
	l.write(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *jsonLogger) WithFields(fields map[string]interface{}) Logger {
	return &jsonLogger{
		mu:       l.mu,
		out:      l.out,
		minLevel: l.minLevel,
		fields:   mergeFields(l.fields, fields),
	}
}

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// formatFields renders fields as map[k:v ...] with sorted keys
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("map[")
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s:%v", k, fields[k])
	}
	b.WriteByte(']')
	return b.String()
}
