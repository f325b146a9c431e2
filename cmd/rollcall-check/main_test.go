package main

import (
	"os"
	"path/filepath"
	"testing"

	"rollcall/internal/services/checks/domain"
)

func TestReport_WritesConfirmedNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		nums []string
		want string
	}{
		{"some", []string{"+15551230001", "+15551230002"}, "+15551230001\n+15551230002\n"},
		{"none", nil, ""},
	}
	for _, tc := range cases {
		out := filepath.Join(t.TempDir(), "registered.txt")
		if err := report(domain.Snapshot{}, tc.nums, out); err != nil {
			t.Fatalf("%s: report: %v", tc.name, err)
		}
		b, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("%s: read: %v", tc.name, err)
		}
		if string(b) != tc.want {
			t.Fatalf("%s: file = %q, want %q", tc.name, b, tc.want)
		}
	}
}
