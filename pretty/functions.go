package pretty

import (
	"fmt"

	"github.com/joshyorko/bomforge/common"
)

func Ok() error {
	common.Log("%sOK.%s", Green, Reset)
	return nil
}

func Note(format string, rest ...interface{}) {
	niceform := fmt.Sprintf("%s%sNote: %s%s", Cyan, Bold, format, Reset)
	common.Log(niceform, rest...)
}

func Warning(format string, rest ...interface{}) {
	niceform := fmt.Sprintf("%sWarning: %s%s", Yellow, format, Reset)
	common.Log(niceform, rest...)
}

func Highlight(format string, rest ...interface{}) {
	niceform := fmt.Sprintf("%s%s%s", Magenta, format, Reset)
	common.Log(niceform, rest...)
}

// Exit stops the current command by panicking with a common.ExitCode.
func Exit(code int, format string, rest ...interface{}) {
	message := format
	if len(rest) > 0 {
		message = fmt.Sprintf(format, rest...)
	}
	panic(common.ExitCode{
		Code:    code,
		Message: fmt.Sprintf("%sError: %s%s", Red, message, Reset),
	})
}

func Guard(truth bool, code int, format string, rest ...interface{}) {
	if !truth {
		Exit(code, format, rest...)
	}
}
