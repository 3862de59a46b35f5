package main

import (
	"os"

	"github.com/joshyorko/bomforge/cmd"
	"github.com/joshyorko/bomforge/common"
)

func ExitProtection() {
	status := recover()
	if status != nil {
		exit, ok := status.(common.ExitCode)
		if ok {
			exit.ShowMessage()
			common.WaitLogs()
			os.Exit(exit.Code)
		}
		common.WaitLogs()
		panic(status)
	}
	common.WaitLogs()
}

func main() {
	defer ExitProtection()
	cmd.Execute()
}
