package output

import (
	"encoding/json"
	"io"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

type jsonReport struct {
	Results    []Row          `json:"results"`
	Summary    map[string]int `json:"summary"`
	Skipped    int            `json:"skipped_lines"`
	Duplicates int            `json:"duplicate_lines"`
	Seconds    float64        `json:"duration_seconds"`
}

// JSONWriter writes results as one JSON document.
type JSONWriter struct {
	w      io.Writer
	closer io.Closer
	rows   []Row
}

// NewJSONWriter creates a JSON output writer.
func NewJSONWriter(outputFile string) (*JSONWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{w: w, closer: closer}, nil
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(result *scanner.Result) error {
	j.rows = append(j.rows, NewRow(result))
	return nil
}

func (j *JSONWriter) WriteFooter(stats Stats) error {
	summary := make(map[string]int, len(stats.ByStatus))
	for st, n := range stats.ByStatus {
		summary[st.String()] = n
	}
	rows := j.rows
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		Results: rows,
		Summary: summary,
		Skipped:    stats.Dropped,
		Duplicates: stats.Duplicates,
		Seconds: roundSeconds(stats.Duration),
	})
}

func (j *JSONWriter) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
