package files

import (
	"strings"
	"testing"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 * 1 << 20, "3.0 MB"},
		{5 * 1 << 30, "5.0 GB"},
	}
	for _, tc := range tests {
		if got := humanSize(tc.in); got != tc.want {
			t.Errorf("humanSize(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{Path: "/docs/b.pdf"},
		{Path: "/docs/photos", IsDir: true},
		{Path: "/docs/a.txt"},
		{Path: "/docs/archive", IsDir: true},
	}
	sortEntries(entries)

	wantOrder := []string{"/docs/archive", "/docs/photos", "/docs/a.txt", "/docs/b.pdf"}
	for i, want := range wantOrder {
		if entries[i].Path != want {
			t.Errorf("entries[%d] = %q, want %q (dirs first, then alphabetical)", i, entries[i].Path, want)
		}
	}
}

func TestFormatEntries(t *testing.T) {
	got := FormatEntries([]Entry{
		{Path: "/docs/photos/", IsDir: true},
		{Path: "/docs/factura.pdf", Size: 2048},
	})
	if !strings.Contains(got, "/docs/photos/\n") {
		t.Errorf("directory misformatted:\n%s", got)
	}
	if !strings.Contains(got, "/docs/factura.pdf (2.0 KB)") {
		t.Errorf("file misformatted:\n%s", got)
	}
}
