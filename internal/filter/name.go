package filter

import (
	"strings"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

func listingContains(result *scanner.Result, needle string) bool {
	needle = strings.ToLower(needle)
	for _, e := range result.Outcome.Listing {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			return true
		}
	}
	return false
}

// NameMatchFilter only passes results whose listing has an entry name
// containing a given string (case-insensitive).
type NameMatchFilter struct {
	needle string
}

// NewNameMatchFilter creates a filter that requires a matching entry.
func NewNameMatchFilter(needle string) *NameMatchFilter {
	return &NameMatchFilter{needle: needle}
}

func (f *NameMatchFilter) Name() string { return "name-match" }

func (f *NameMatchFilter) ShouldFilter(result *scanner.Result) bool {
	return !listingContains(result, f.needle)
}

// NameExcludeFilter hides results whose listing has a matching entry.
type NameExcludeFilter struct {
	needle string
}

// NewNameExcludeFilter creates a filter that hides listings containing needle.
func NewNameExcludeFilter(needle string) *NameExcludeFilter {
	return &NameExcludeFilter{needle: needle}
}

func (f *NameExcludeFilter) Name() string { return "name-exclude" }

func (f *NameExcludeFilter) ShouldFilter(result *scanner.Result) bool {
	return listingContains(result, f.needle)
}
