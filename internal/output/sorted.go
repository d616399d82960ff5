package output

import (
	"cmp"
	"slices"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer. Ties keep input order.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []*scanner.Result
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) *SortedWriter {
	return &SortedWriter{inner: inner, sortBy: sortBy}
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(result *scanner.Result) error {
	cpy := *result
	w.results = append(w.results, &cpy)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	slices.SortStableFunc(w.results, func(a, b *scanner.Result) int {
		switch w.sortBy {
		case "status":
			return cmp.Compare(a.Outcome.Status, b.Outcome.Status)
		case "target":
			return cmp.Compare(a.Descriptor.Target(), b.Descriptor.Target())
		case "elapsed":
			return cmp.Compare(a.Outcome.Elapsed, b.Outcome.Elapsed)
		default:
			return cmp.Compare(a.Index, b.Index)
		}
	})
	for _, r := range w.results {
		if err := w.inner.WriteResult(r); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}
