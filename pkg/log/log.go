package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"sync"
)

// Level names printed in front of each line.
const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelDebug = "DEBUG"
)

// Logger is a named logger. Obtain one with ForService.
type Logger struct {
	name string
	std  *stdlog.Logger
}

// state is the package-wide logger configuration.
type state struct {
	mu           sync.RWMutex
	out          io.Writer
	globalDebug  bool
	serviceDebug map[string]bool
	loggers      map[string]*Logger
}

var global = &state{
	out:          os.Stderr,
	serviceDebug: make(map[string]bool),
	loggers:      make(map[string]*Logger),
}

// ForService returns the memoized logger for name. Names should be stable,
// e.g. "search", "storage" or "api".
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}

	global.mu.RLock()
	l, ok := global.loggers[name]
	global.mu.RUnlock()
	if ok {
		return l
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[name]; ok {
		return l
	}
	l = &Logger{
		name: name,
		std:  stdlog.New(global.out, "", stdlog.LstdFlags|stdlog.Lmicroseconds),
	}
	global.loggers[name] = l
	return l
}

// SetGlobalDebug enables or disables debug output for every logger.
func SetGlobalDebug(enabled bool) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.globalDebug = enabled
}

// GlobalDebug reports whether debug output is enabled globally.
func GlobalDebug() bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.globalDebug
}

// EnableDebugFor enables debug output for a single service.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	global.serviceDebug[name] = true
}

// DisableDebugFor removes a per-service debug override.
func DisableDebugFor(name string) {
	global.mu.Lock()
	defer global.mu.Unlock()
	delete(global.serviceDebug, name)
}

// DebugEnabledFor reports whether debug lines for name are printed.
func DebugEnabledFor(name string) bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.globalDebug || global.serviceDebug[name]
}

// SetOutput redirects every logger, existing and future, to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	global.out = w
	for _, l := range global.loggers {
		l.std.SetOutput(w)
	}
}

func (l *Logger) output(level, msg string) {
	l.std.Println(level + " [" + l.name + ">] " + msg)
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) {
	l.output(LevelInfo, fmt.Sprintf(format, args...))
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.output(LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	l.output(LevelError, fmt.Sprintf(format, args...))
}

// Debugf logs only when debug is enabled globally or for this logger.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.output(LevelDebug, fmt.Sprintf(format, args...))
}
