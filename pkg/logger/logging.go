// Package logger is a thin facade over bilog used by the benchmark harness.
// The lock hot path never logs.
package logger

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/zbh255/bilog"
)

const (
	stateOpen   int64 = 1 << 10
	stateClosed int64 = 1 << 11
)

// Logger is the logging surface retlock binaries write to.
type Logger interface {
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
	Panic(format string, v ...interface{})
}

// Default receives harness output; swap it or call SetEnabled(false) to
// silence a run.
var Default Logger

type bilogWrapper struct {
	state   int64
	logging bilog.Logger
}

func New(l bilog.Logger) Logger {
	return &bilogWrapper{logging: l, state: stateOpen}
}

func (w *bilogWrapper) enabled() bool {
	return atomic.LoadInt64(&w.state) == stateOpen
}

func (w *bilogWrapper) Debug(format string, v ...interface{}) {
	if !w.enabled() {
		return
	}
	w.logging.Debug(fmt.Sprintf(format, v...))
}

func (w *bilogWrapper) Info(format string, v ...interface{}) {
	if !w.enabled() {
		return
	}
	w.logging.Info(fmt.Sprintf(format, v...))
}

func (w *bilogWrapper) Warn(format string, v ...interface{}) {
	if !w.enabled() {
		return
	}
	w.logging.Trace(fmt.Sprintf(format, v...))
}

func (w *bilogWrapper) Error(format string, v ...interface{}) {
	if !w.enabled() {
		return
	}
	w.logging.ErrorFromString(fmt.Sprintf(format, v...))
}

func (w *bilogWrapper) Panic(format string, v ...interface{}) {
	if !w.enabled() {
		return
	}
	w.logging.PanicFromString(fmt.Sprintf(format, v...))
}

// SetEnabled opens or closes the default logger without tearing it down.
func SetEnabled(ok bool) {
	w, typeOk := Default.(*bilogWrapper)
	if !typeOk {
		return
	}
	if ok {
		atomic.StoreInt64(&w.state, stateOpen)
	} else {
		atomic.StoreInt64(&w.state, stateClosed)
	}
}

func init() {
	Default = New(bilog.NewLogger(
		os.Stdout, bilog.PANIC,
		bilog.WithTimes(),
		bilog.WithCaller(1),
		bilog.WithLowBuffer(0),
		bilog.WithTopBuffer(0),
	))
}
