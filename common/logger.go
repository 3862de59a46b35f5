package common

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	logsource  = make(logwriters)
	logbarrier = sync.WaitGroup{}

	// LogHides lists fragments that suppress a whole log line (secrets, tokens).
	LogHides []string

	errorTarget io.Writer = os.Stderr
	outputMu    sync.RWMutex
)

type logwriter func() (io.Writer, string)
type logwriters chan logwriter

func loggerLoop(writers logwriters) {
	var stamp string
	line := uint64(0)
	for {
		line += 1
		todo, ok := <-writers
		if !ok {
			continue
		}
		out, message := todo()

		if TraceFlag() {
			stamp = time.Now().Format("02.150405.000 ")
		} else if LogLinenumbers {
			stamp = fmt.Sprintf("%3d ", line)
		} else {
			stamp = ""
		}
		fmt.Fprintf(out, "%s%s\n", stamp, message)
		if syncer, ok := out.(interface{ Sync() error }); ok {
			syncer.Sync()
		}
		logbarrier.Done()
	}
}

func init() {
	go loggerLoop(logsource)
}

// RedirectLogs sends all diagnostic output to target and returns the previous
// target. Tests use it to capture what was logged.
func RedirectLogs(target io.Writer) io.Writer {
	WaitLogs()
	outputMu.Lock()
	defer outputMu.Unlock()
	previous := errorTarget
	errorTarget = target
	return previous
}

func diagnostics() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return errorTarget
}

func AcceptableOutput(message string) bool {
	for _, fragment := range LogHides {
		if len(fragment) > 0 && strings.Contains(message, fragment) {
			return false
		}
	}
	return true
}

func printout(out io.Writer, message string) {
	if AcceptableOutput(message) {
		logbarrier.Add(1)
		logsource <- func() (io.Writer, string) {
			return out, message
		}
	}
}

func Fatal(context string, err error) {
	if err != nil {
		printout(diagnostics(), fmt.Sprintf("Fatal [%s]: %v", context, err))
	}
}

func Error(context string, err error) {
	if err != nil {
		Log("Error [%s]: %v", context, err)
	}
}

func Uncritical(context string, err error) {
	if err != nil {
		Log("Warning [%s; not critical]: %v", context, err)
	}
}

// Warning is always shown unless output is silenced. It marks degraded
// results, never failures.
func Warning(format string, details ...interface{}) {
	if !Silent() {
		printout(diagnostics(), fmt.Sprintf("Warning: "+format, details...))
	}
}

func Log(format string, details ...interface{}) {
	if !Silent() {
		prefix := ""
		if DebugFlag() || TraceFlag() {
			prefix = "[N] "
		}
		printout(diagnostics(), fmt.Sprintf(prefix+format, details...))
	}
}

func Debug(format string, details ...interface{}) error {
	if DebugFlag() {
		printout(diagnostics(), fmt.Sprintf("[D] "+format, details...))
	}
	return nil
}

func Trace(format string, details ...interface{}) error {
	if TraceFlag() {
		printout(diagnostics(), fmt.Sprintf("[T] "+format, details...))
	}
	return nil
}

func Stdout(format string, details ...interface{}) {
	message := format
	if len(details) > 0 {
		message = fmt.Sprintf(format, details...)
	}
	if AcceptableOutput(message) {
		fmt.Fprint(os.Stdout, message)
		os.Stdout.Sync()
	}
}

func WaitLogs() {
	runtime.Gosched()
	logbarrier.Wait()
}
