package output

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/maxvaer/proxyftp/internal/scanner"
)

// PrintListing renders a directory listing: directories first, then
// files, each group sorted by name. Opaque lines keep their raw text.
func PrintListing(w io.Writer, path string, entries []scanner.Entry, noColor bool) error {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b scanner.Entry) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})

	dirColor, reset := colorCyan, colorReset
	if noColor {
		dirColor, reset = "", ""
	}

	if _, err := fmt.Fprintf(w, "%s (%d entries)\n", path, len(entries)); err != nil {
		return err
	}
	for _, e := range sorted {
		var err error
		switch {
		case e.IsDir:
			_, err = fmt.Fprintf(w, "  %12s  %s%s/%s\n", "<dir>", dirColor, e.Name, reset)
		default:
			_, err = fmt.Fprintf(w, "  %12s  %s\n", sizeLabel(e), e.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func sizeLabel(e scanner.Entry) string {
	if !e.SizeKnown {
		return "?"
	}
	return strconv.FormatUint(e.Size, 10)
}
