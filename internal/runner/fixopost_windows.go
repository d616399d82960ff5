//go:build windows

package runner

// fixOutputProcessing does nothing on Windows; the console keeps its
// output translation in raw input mode.
func fixOutputProcessing(fd int) {}
