// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels on top of glog.
//
// Verbosity levels (in increasing order):
//
//	Error < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(2) // Debug
//	logger.Infof("building smile for %s", underlying)
//	logger.Debugf("newton step sigma=%f vega=%f", sigma, vega)
package logger

import (
	"flag"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

var levelNames = [...]string{"ERROR", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if l < Error || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current atomic.Int32

func init() {
	current.Store(int32(Info))
	// glog writes to files by default; this tool is a CLI/service and
	// logs belong on stderr.
	_ = flag.Set("logtostderr", "true")
}

// SetVerbosity sets the global logging verbosity. Values are clamped to
// [Error, Trace]. Typically called once after the config is loaded.
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	current.Store(int32(v))
}

// Verbosity returns the active level.
func Verbosity() Level {
	return Level(current.Load())
}

// Enabled reports whether messages at l are currently emitted.
func Enabled(l Level) bool {
	return Verbosity() >= l
}

// logf checks verbosity and hands the message to glog, skipping this
// package's frames so glog reports the caller's file and line.
func logf(l Level, format string, args ...any) {
	if !Enabled(l) {
		return
	}
	msg := "[" + l.String() + "] " + fmt.Sprintf(format, args...)
	if l == Error {
		glog.ErrorDepth(2, msg)
		return
	}
	glog.InfoDepth(2, msg)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	logf(Error, format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, format, args...)
}

// Flush writes any buffered log entries. Call before exiting.
func Flush() {
	glog.Flush()
}
