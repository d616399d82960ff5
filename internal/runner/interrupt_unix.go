//go:build !windows

package runner

import "golang.org/x/sys/unix"

// interruptSelf delivers SIGINT to this process. Raw mode swallows the
// terminal's own Ctrl+C, so the toggle reader forwards it.
func interruptSelf() error {
	return unix.Kill(unix.Getpid(), unix.SIGINT)
}
