package filter

import "github.com/maxvaer/proxyftp/internal/scanner"

// MinFilesFilter hides successful results whose listing has fewer than min
// entries. Failures pass untouched.
type MinFilesFilter struct {
	min int
}

// NewMinFilesFilter creates a filter for listings shorter than min.
func NewMinFilesFilter(min int) *MinFilesFilter {
	return &MinFilesFilter{min: min}
}

func (f *MinFilesFilter) Name() string { return "min-files" }

func (f *MinFilesFilter) ShouldFilter(result *scanner.Result) bool {
	return result.Outcome.OK() && len(result.Outcome.Listing) < f.min
}
