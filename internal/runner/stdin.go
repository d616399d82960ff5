package runner

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

const keyCtrlC = 0x03

// startStdinToggle puts an interactive stdin into raw mode and pauses or
// resumes the scan on Enter or Space. Descriptors already being probed
// finish before workers park. When stdin is not a terminal it returns a
// nil pauser and a no-op cleanup.
func startStdinToggle(quiet bool) (*scanner.Pauser, func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		if !quiet {
			fmt.Fprintf(stderr, "[!] Could not enable raw terminal: %v\n", err)
		}
		return nil, func() {}
	}
	// Raw mode also turns off OPOST; only raw input is wanted.
	fixOutputProcessing(fd)

	restore := func() { _ = term.Restore(fd, oldState) }
	pauser := scanner.NewPauser()

	notify := func(msg string) {
		if !quiet {
			fmt.Fprintf(stderr, "\r\033[K[*] %s\n", msg)
		}
	}
	go watchKeys(os.Stdin, pauser, notify, func() {
		restore()
		_ = interruptSelf()
	})

	return pauser, restore
}

// watchKeys reads single keypresses from r until it fails or Ctrl+C
// arrives, which is handed to interrupt.
func watchKeys(r io.Reader, pauser *scanner.Pauser, notify func(string), interrupt func()) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		switch buf[0] {
		case keyCtrlC:
			interrupt()
			return
		case '\r', '\n', ' ':
			if pauser.Toggle() {
				notify("Scan PAUSED, press Enter or Space to resume")
				continue
			}
			_, total := pauser.Paused()
			notify(fmt.Sprintf("Scan RESUMED (paused %s in total)", total.Round(time.Second)))
		}
	}
}
