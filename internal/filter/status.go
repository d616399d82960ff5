package filter

import (
	"fmt"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// StatusFilter includes or excludes results based on their outcome status.
type StatusFilter struct {
	include map[scanner.Status]struct{}
	exclude map[scanner.Status]struct{}
}

// NewStatusFilter creates a status filter. If include is non-empty, only
// those statuses pass through. If exclude is non-empty, those are filtered.
func NewStatusFilter(include, exclude []scanner.Status) *StatusFilter {
	f := &StatusFilter{
		include: make(map[scanner.Status]struct{}, len(include)),
		exclude: make(map[scanner.Status]struct{}, len(exclude)),
	}
	for _, s := range include {
		f.include[s] = struct{}{}
	}
	for _, s := range exclude {
		f.exclude[s] = struct{}{}
	}
	return f
}

// ParseStatusFilter builds a StatusFilter from status names such as
// "success" or "dead-proxy".
func ParseStatusFilter(include, exclude []string) (*StatusFilter, error) {
	in, err := parseStatuses(include)
	if err != nil {
		return nil, err
	}
	ex, err := parseStatuses(exclude)
	if err != nil {
		return nil, err
	}
	return NewStatusFilter(in, ex), nil
}

func parseStatuses(names []string) ([]scanner.Status, error) {
	out := make([]scanner.Status, 0, len(names))
	for _, n := range names {
		s, err := scanner.ParseStatus(n)
		if err != nil {
			return nil, fmt.Errorf("invalid status filter: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *StatusFilter) Name() string { return "status" }

func (f *StatusFilter) ShouldFilter(result *scanner.Result) bool {
	if len(f.include) > 0 {
		_, ok := f.include[result.Outcome.Status]
		return !ok // filter if NOT in include list
	}
	if len(f.exclude) > 0 {
		_, ok := f.exclude[result.Outcome.Status]
		return ok // filter if in exclude list
	}
	return false
}
