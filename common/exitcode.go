package common

import (
	"fmt"
	"time"
)

// ExitCode travels as a panic value from deep inside a command up to
// ExitProtection in main, which turns it into a process exit status.
type ExitCode struct {
	Code    int
	Message string
}

func (it ExitCode) ShowMessage() {
	if len(it.Message) > 0 {
		Log("%s", it.Message)
	}
}

func (it ExitCode) Error() string {
	return fmt.Sprintf("exit %d: %s", it.Code, it.Message)
}

type Duration time.Duration

func (it Duration) Truncate(granularity time.Duration) Duration {
	return Duration(time.Duration(it).Truncate(granularity))
}

func (it Duration) String() string {
	return fmt.Sprintf("%5.3f", time.Duration(it).Seconds())
}

type stopwatch struct {
	message string
	started time.Time
}

func Stopwatch(form string, details ...interface{}) *stopwatch {
	return &stopwatch{
		message: fmt.Sprintf(form, details...),
		started: time.Now(),
	}
}

func (it *stopwatch) Elapsed() Duration {
	return Duration(time.Since(it.started))
}

func (it *stopwatch) Debug() Duration {
	elapsed := it.Elapsed()
	Debug("%v %v", it.message, elapsed)
	return elapsed
}

func (it *stopwatch) Report() Duration {
	elapsed := it.Elapsed()
	Log("%v %v", it.message, elapsed)
	return elapsed
}
