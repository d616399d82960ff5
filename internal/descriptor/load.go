package descriptor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadStats counts the lines a load did not turn into descriptors.
type LoadStats struct {
	Skipped    int // unparsable lines
	Duplicates int // repeats of an earlier descriptor
}

// LoadReader parses every line of r. Blank lines and '#' comments are
// ignored, unparsable lines are skipped, and repeated descriptors keep
// their first occurrence. Skips and repeats are counted in LoadStats.
func LoadReader(r io.Reader) ([]Descriptor, LoadStats, error) {
	var (
		result []Descriptor
		stats  LoadStats
		seen   = make(map[string]struct{})
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, ok := Parse(line)
		if !ok {
			stats.Skipped++
			continue
		}
		if _, dup := seen[d.Key()]; dup {
			stats.Duplicates++
			continue
		}
		seen[d.Key()] = struct{}{}
		result = append(result, d)
	}
	if err := sc.Err(); err != nil {
		return result, stats, fmt.Errorf("reading descriptors: %w", err)
	}
	return result, stats, nil
}

// Load reads descriptors from the file at path, or from stdin when path
// is "-".
func Load(path string) ([]Descriptor, LoadStats, error) {
	if path == "-" {
		return LoadReader(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("reading descriptor list %s: %w", path, err)
	}
	defer f.Close()
	return LoadReader(f)
}

// ParseLines is LoadReader over in-memory lines, as given with repeated
// -l flags.
func ParseLines(lines []string) ([]Descriptor, LoadStats) {
	ds, stats, _ := LoadReader(strings.NewReader(strings.Join(lines, "\n")))
	return ds, stats
}
