package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseListLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Entry
	}{
		{
			name: "directory",
			line: "drwxr-xr-x 2 ftp ftp 4096 Jan 01 2024 My Movies",
			want: Entry{Name: "My Movies", IsDir: true, Size: 4096, SizeKnown: true},
		},
		{
			name: "file",
			line: "-rw-r--r-- 1 ftp ftp 1234 Mar 15 10:21 readme.txt",
			want: Entry{Name: "readme.txt", Size: 1234, SizeKnown: true},
		},
		{
			name: "collapsed spaces in name",
			line: "-rw-r--r-- 1 ftp ftp 10 Mar 15 10:21 a   b.txt",
			want: Entry{Name: "a b.txt", Size: 10, SizeKnown: true},
		},
		{
			name: "symlink keeps arrow",
			line: "lrwxrwxrwx 1 ftp ftp 7 Mar 15 10:21 latest -> v1.2.3",
			want: Entry{Name: "latest -> v1.2.3", Size: 7, SizeKnown: true},
		},
		{
			name: "unparsable size",
			line: "-rw-r--r-- 1 ftp ftp ? Mar 15 10:21 odd.bin",
			want: Entry{Name: "odd.bin"},
		},
		{
			name: "short line is opaque",
			line: "total 8",
			want: Entry{Name: "total 8"},
		},
		{
			name: "dos style is opaque",
			line: "01-01-24  10:00AM       <DIR>          pub",
			want: Entry{Name: "01-01-24  10:00AM       <DIR>          pub"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.Raw = tt.line
			assert.Equal(t, tt.want, ParseListLine(tt.line))
		})
	}
}

func TestParseListingKeepsOrder(t *testing.T) {
	lines := []string{
		"-rw-r--r-- 1 ftp ftp 1 Jan 01 2024 zeta",
		"drwxr-xr-x 2 ftp ftp 4096 Jan 01 2024 alpha",
		"garbage",
	}
	entries := ParseListing(lines)
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "zeta", entries[0].Name)
		assert.Equal(t, "alpha", entries[1].Name)
		assert.Equal(t, "garbage", entries[2].Name)
	}
}

func TestOutcomeSampleNames(t *testing.T) {
	o := Outcome{Listing: ParseListing([]string{"a", "b", "c"})}
	assert.Equal(t, []string{"a", "b"}, o.SampleNames(2))
	assert.Equal(t, []string{"a", "b", "c"}, o.SampleNames(5))
	assert.Empty(t, Outcome{}.SampleNames(5))
}
