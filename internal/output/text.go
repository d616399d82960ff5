package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// TextWriter writes colored text output to a writer.
type TextWriter struct {
	w       io.Writer
	closer  io.Closer
	summary io.Writer
	noColor bool
	quiet   bool
}

// NewTextWriter creates a text output writer. If outputFile is empty, stdout
// is used. noColor disables ANSI escape codes. The footer goes to stderr.
func NewTextWriter(outputFile string, noColor, quiet bool) (*TextWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &TextWriter{w: w, closer: closer, summary: os.Stderr, noColor: noColor, quiet: quiet}, nil
}

func (t *TextWriter) paint(color string) (string, string) {
	if t.noColor {
		return "", ""
	}
	return color, colorReset
}

func (t *TextWriter) WriteHeader() error {
	if t.quiet {
		return nil
	}
	dim, reset := t.paint(colorDim)
	_, err := fmt.Fprintf(t.w, "%s%-12s  %-6s  %8s  %5s  %-40s  %s%s\n",
		dim, "Status", "SOCKS", "Elapsed", "Files", "Target", "Sample", reset)
	return err
}

func (t *TextWriter) WriteResult(result *scanner.Result) error {
	row := NewRow(result)
	color, reset := t.paint(colorForStatus(result.Outcome.Status))

	version := row.WorkingVersion
	if version == "" {
		version = "-"
	}
	detail := row.SampleNames
	if !result.Outcome.OK() {
		detail = row.Error
	}

	_, err := fmt.Fprintf(t.w, "%s%-12s%s  %-6s  %7.2fs  %5d  %-40s  %s\n",
		color, row.Status, reset,
		version,
		row.ElapsedSeconds,
		row.FileCount,
		result.Descriptor.Name(),
		detail,
	)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.quiet {
		return nil
	}
	var parts []string
	for _, st := range []scanner.Status{scanner.Success, scanner.DeadProxy, scanner.AuthFailure, scanner.Timeout, scanner.OtherFailure} {
		if n := stats.ByStatus[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st, n))
		}
	}
	_, err := fmt.Fprintf(t.summary,
		"\nCompleted: %d targets | %s | Filtered: %d | Skipped lines: %d | Duplicates: %d | Duration: %s | %.1f targets/s\n",
		stats.Total,
		strings.Join(parts, ", "),
		stats.FilteredCount,
		stats.Dropped,
		stats.Duplicates,
		stats.Duration.Round(time.Millisecond),
		stats.TargetsPerSec,
	)
	return err
}

func (t *TextWriter) Close() error {
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func colorForStatus(s scanner.Status) string {
	switch s {
	case scanner.Success:
		return colorGreen
	case scanner.AuthFailure:
		return colorYellow
	case scanner.Timeout:
		return colorCyan
	case scanner.DeadProxy, scanner.OtherFailure:
		return colorRed
	default:
		return ""
	}
}
