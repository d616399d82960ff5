package output

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// SampleCount is how many entry names a report row carries.
const SampleCount = 5

// Stats holds aggregate scan statistics.
type Stats struct {
	Total         int
	Reported      int
	FilteredCount int
	Dropped       int // unparsable input lines
	Duplicates    int // input lines repeating an earlier descriptor
	ByStatus      map[scanner.Status]int
	Duration      time.Duration
	TargetsPerSec float64
}

// Count records r in the per-status tally.
func (s *Stats) Count(r *scanner.Result) {
	if s.ByStatus == nil {
		s.ByStatus = make(map[scanner.Status]int)
	}
	s.ByStatus[r.Outcome.Status]++
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(result *scanner.Result) error
	WriteFooter(stats Stats) error
	Close() error
}

// Row is the flat report shape shared by every format.
type Row struct {
	Index          int     `json:"index"`
	ProxyHost      string  `json:"proxy_host"`
	ProxyPort      uint16  `json:"proxy_port"`
	TargetHost     string  `json:"target_host"`
	Target         string  `json:"target"`
	Status         string  `json:"status"`
	WorkingVersion string  `json:"working_version,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	FileCount      int     `json:"file_count"`
	SampleNames    string  `json:"sample_names"`
	Error          string  `json:"error,omitempty"`
}

// NewRow flattens r.
func NewRow(r *scanner.Result) Row {
	d := r.Descriptor
	return Row{
		Index:          r.Index,
		ProxyHost:      d.ProxyHost,
		ProxyPort:      d.ProxyPort,
		TargetHost:     d.TargetHost,
		Target:         d.Target(),
		Status:         r.Outcome.Status.String(),
		WorkingVersion: r.Outcome.WorkingVersion.String(),
		ElapsedSeconds: roundSeconds(r.Outcome.Elapsed),
		FileCount:      len(r.Outcome.Listing),
		SampleNames:    strings.Join(r.Outcome.SampleNames(SampleCount), "; "),
		Error:          r.Outcome.Error,
	}
}

func roundSeconds(d time.Duration) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(d.Seconds(), 'f', 3, 64), 64)
	return v
}

// openOutput returns stdout, or the created file and its closer.
func openOutput(outputFile string) (io.Writer, io.Closer, error) {
	if outputFile == "" {
		return os.Stdout, nil, nil
	}
	f, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
