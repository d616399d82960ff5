//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package runner

func fixOutputProcessing(fd int) {}
