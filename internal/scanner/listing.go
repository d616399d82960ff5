package scanner

import (
	"strconv"
	"strings"
)

// listFields is the number of whitespace-separated fields in a UNIX-style
// LIST line: mode, links, owner, group, size, month, day, time/year, name.
const listFields = 9

// ParseListLine turns one raw LIST line into an Entry. Lines that do not
// have the UNIX layout become a single opaque entry named after the whole
// line; no line is ever dropped.
func ParseListLine(line string) Entry {
	fields := strings.Fields(line)
	if len(fields) < listFields {
		return Entry{Name: line, Raw: line}
	}

	e := Entry{
		Name:  strings.Join(fields[listFields-1:], " "),
		IsDir: strings.HasPrefix(fields[0], "d"),
		Raw:   line,
	}
	if size, err := strconv.ParseUint(fields[4], 10, 64); err == nil {
		e.Size = size
		e.SizeKnown = true
	}
	return e
}

// ParseListing parses raw LIST lines, keeping server order.
func ParseListing(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		entries = append(entries, ParseListLine(l))
	}
	return entries
}
