package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter creates a CSV output writer.
func NewCSVWriter(outputFile string) (*CSVWriter, error) {
	w, closer, err := openOutput(outputFile)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{w: csv.NewWriter(w), closer: closer}, nil
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{
		"proxy_host", "proxy_port", "target", "status", "working_version",
		"elapsed_seconds", "file_count", "sample_names", "error",
	})
}

func (c *CSVWriter) WriteResult(result *scanner.Result) error {
	row := NewRow(result)
	return c.w.Write([]string{
		row.ProxyHost,
		strconv.Itoa(int(row.ProxyPort)),
		row.Target,
		row.Status,
		row.WorkingVersion,
		strconv.FormatFloat(row.ElapsedSeconds, 'f', 3, 64),
		strconv.Itoa(row.FileCount),
		row.SampleNames,
		row.Error,
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
