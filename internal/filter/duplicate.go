package filter

import (
	"sync"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// targetKey identifies one FTP server reached with one outcome.
type targetKey struct {
	target string
	status scanner.Status
}

// DuplicateFilter hides repeated results for the same target. Proxy lists
// often route many proxies to one server; after threshold results with the
// same (target, status) the rest are hidden.
type DuplicateFilter struct {
	mu        sync.Mutex
	seen      map[targetKey]int
	threshold int
}

// NewDuplicateFilter returns a filter that allows up to threshold results
// per (target, status) through. A threshold below 1 is treated as 1.
func NewDuplicateFilter(threshold int) *DuplicateFilter {
	if threshold < 1 {
		threshold = 1
	}
	return &DuplicateFilter{
		seen:      make(map[targetKey]int),
		threshold: threshold,
	}
}

func (d *DuplicateFilter) Name() string { return "duplicate" }

func (d *DuplicateFilter) ShouldFilter(result *scanner.Result) bool {
	key := targetKey{
		target: result.Descriptor.Target(),
		status: result.Outcome.Status,
	}

	d.mu.Lock()
	d.seen[key]++
	count := d.seen[key]
	d.mu.Unlock()

	return count > d.threshold
}
