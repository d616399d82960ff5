package runner

import (
	"strings"
	"testing"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

func TestWatchKeysTogglesPause(t *testing.T) {
	p := scanner.NewPauser()
	var msgs []string
	interrupted := false

	watchKeys(strings.NewReader("x \r"), p, func(m string) { msgs = append(msgs, m) }, func() { interrupted = true })

	if paused, _ := p.Paused(); paused {
		t.Fatal("expected running after two toggles")
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notices, got %v", msgs)
	}
	if !strings.Contains(msgs[0], "PAUSED") || !strings.Contains(msgs[1], "RESUMED") {
		t.Errorf("unexpected notices %v", msgs)
	}
	if interrupted {
		t.Error("interrupt fired without Ctrl+C")
	}
}

func TestWatchKeysCtrlCStops(t *testing.T) {
	p := scanner.NewPauser()
	interrupted := false

	watchKeys(strings.NewReader("\x03 "), p, func(string) {}, func() { interrupted = true })

	if !interrupted {
		t.Fatal("Ctrl+C did not interrupt")
	}
	if paused, _ := p.Paused(); paused {
		t.Error("keys after Ctrl+C must be ignored")
	}
}
