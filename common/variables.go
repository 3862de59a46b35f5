package common

import (
	"sync/atomic"
)

const (
	Product = `bomforge`
	Version = `v1.0.0`
)

type Verbosity uint32

const (
	Normal Verbosity = iota
	Silently
	Debugging
	Tracing
)

var (
	LogLinenumbers bool
	verbosity      atomic.Uint32
)

func DefineVerbosity(silent, debug, trace bool) {
	level := Normal
	switch {
	case trace:
		level = Tracing
	case debug:
		level = Debugging
	case silent:
		level = Silently
	}
	verbosity.Store(uint32(level))
}

func currentVerbosity() Verbosity {
	return Verbosity(verbosity.Load())
}

func Silent() bool {
	return currentVerbosity() == Silently
}

func DebugFlag() bool {
	return currentVerbosity() >= Debugging
}

func TraceFlag() bool {
	return currentVerbosity() == Tracing
}
