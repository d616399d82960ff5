package scanner

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxvaer/proxyftp/internal/descriptor"
	"github.com/maxvaer/proxyftp/internal/tunnel"
)

// Status classifies the outcome of resolving one descriptor.
type Status int

const (
	Success Status = iota + 1
	DeadProxy
	AuthFailure
	Timeout
	OtherFailure
)

var statusNames = map[Status]string{
	Success:      "success",
	DeadProxy:    "dead-proxy",
	AuthFailure:  "auth-failure",
	Timeout:      "timeout",
	OtherFailure: "failure",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus is the inverse of Status.String. It also accepts the
// underscore spelling used in config files ("dead_proxy").
func ParseStatus(s string) (Status, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for st, n := range statusNames {
		if n == name {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Entry is one line of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
	// Size is only meaningful when SizeKnown is set.
	Size      uint64
	SizeKnown bool
	Raw       string
}

// Outcome is the result of probing one descriptor.
type Outcome struct {
	Status Status
	// WorkingVersion is the SOCKS version that succeeded, zero otherwise.
	WorkingVersion tunnel.Version
	Elapsed        time.Duration
	Listing        []Entry
	Error          string
	Path           string
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool {
	return o.Status == Success
}

// SampleNames returns up to n entry names in listing order.
func (o Outcome) SampleNames(n int) []string {
	if n > len(o.Listing) {
		n = len(o.Listing)
	}
	names := make([]string, 0, n)
	for _, e := range o.Listing[:n] {
		names = append(names, e.Name)
	}
	return names
}

// Result pairs a descriptor with its outcome. Index is the descriptor's
// position in the scan input.
type Result struct {
	Index      int
	Descriptor descriptor.Descriptor
	Outcome    Outcome
}
