//go:build windows

package runner

import "golang.org/x/sys/windows"

func interruptSelf() error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_C_EVENT, 0)
}
