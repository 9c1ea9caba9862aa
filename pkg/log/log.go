// Package log is a small wrapper around the standard library logger used by
// every carefinder component.
//
// Each component asks for a named logger once and keeps it:
//
//	var logger = log.ForComponent("executor")
//	logger.Infof("cache hit for %s", key)
//	logger.Debugf("remote params: %v", params) // only with debug enabled
//
// Lines are prefixed with the component name, "[executor>]", so the output of
// the web server stays grep friendly when several sessions interleave. Debug
// output can be enabled globally (the --debug flag) or for a single component
// (CAREFINDER_DEBUG=syncctl,executor).
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
	LevelDebug = "DEBUG"
)

// Logger is a named logger. Obtain one with ForComponent.
type Logger struct {
	name string
	std  *log.Logger
}

// writerHolder keeps the atomic.Value concrete type stable across SetOutput
// calls with different writer types.
type writerHolder struct {
	w io.Writer
}

var (
	globalDebug    atomic.Bool
	componentDebug sync.Map // map[string]*atomic.Bool
	loggers        sync.Map // map[string]*Logger
	output         atomic.Value
)

func init() {
	output.Store(writerHolder{w: os.Stderr})
	EnableDebugFromEnv(os.Getenv("CAREFINDER_DEBUG"))
}

// ForComponent returns the memoized logger for name.
func ForComponent(name string) *Logger {
	if name == "" {
		name = "carefinder"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	w := output.Load().(writerHolder).w
	l := &Logger{name: name, std: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
	actual, _ := loggers.LoadOrStore(name, l)
	return actual.(*Logger)
}

// SetGlobalDebug toggles debug output for every component.
func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

// EnableDebugFor turns on debug output for a single component.
func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	v, _ := componentDebug.LoadOrStore(name, &atomic.Bool{})
	v.(*atomic.Bool).Store(true)
}

func DisableDebugFor(name string) {
	if v, ok := componentDebug.Load(name); ok {
		v.(*atomic.Bool).Store(false)
	}
}

// EnableDebugFromEnv parses a comma separated component list. "all" or "*"
// enables global debug.
func EnableDebugFromEnv(spec string) {
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case "":
		case "all", "*":
			SetGlobalDebug(true)
		default:
			EnableDebugFor(name)
		}
	}
}

// DebugEnabledFor reports whether debug lines of name are printed.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if v, ok := componentDebug.Load(name); ok {
		return v.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects every existing and future logger to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	output.Store(writerHolder{w: w})
	loggers.Range(func(_, v any) bool {
		v.(*Logger).std.SetOutput(w)
		return true
	})
}

func (l *Logger) emit(level, msg string) {
	l.std.Println(level + " [" + l.name + ">] " + msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(LevelError, fmt.Sprintf(format, args...))
}

// Debugf prints only when debug is enabled globally or for this component.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.emit(LevelDebug, fmt.Sprintf(format, args...))
}
