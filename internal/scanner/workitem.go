package scanner

import "github.com/maxvaer/proxyftp/internal/descriptor"

// WorkItem represents a single unit of work for the worker pool.
type WorkItem struct {
	Index      int // position in the scan input
	Descriptor descriptor.Descriptor
}
