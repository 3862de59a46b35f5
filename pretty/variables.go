package pretty

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joshyorko/bomforge/common"
	"github.com/mattn/go-isatty"
)

var (
	Colorless   bool
	Iconic      bool
	Disabled    bool
	Interactive bool
	White       string
	Grey        string
	Red         string
	Green       string
	Yellow      string
	Magenta     string
	Cyan        string
	Reset       string
	Sparkles    string
	Bold        string
	Faint       string
)

func csi(code string) string {
	return fmt.Sprintf("\x1b[%s", code)
}

func localSetup(interactive bool) {
	Iconic = interactive && runtime.GOOS != "windows"
}

func Setup() {
	stdin := isatty.IsTerminal(os.Stdin.Fd())
	stdout := isatty.IsTerminal(os.Stdout.Fd())
	stderr := isatty.IsTerminal(os.Stderr.Fd())

	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "" {
		Colorless = true
	}
	Interactive = stdin && stdout && stderr
	visualOutput := stdout && !Colorless

	localSetup(Interactive)

	common.Trace("Interactive mode enabled: %v; colors enabled: %v; icons enabled: %v", Interactive, visualOutput && !Disabled, Iconic)
	if visualOutput && !Disabled {
		White = csi("97m")
		Grey = csi("90m")
		Red = csi("91m")
		Green = csi("92m")
		Yellow = csi("93m")
		Magenta = csi("95m")
		Cyan = csi("96m")
		Reset = csi("0m")
		Bold = csi("1m")
		Faint = csi("2m")
	}
	if Iconic && !Colorless {
		Sparkles = "✨ "
	}
}
