package worklist

import (
	"slices"
	"testing"
)

func TestSet_ClaimUnclaim(t *testing.T) {
	t.Parallel()

	s := NewSet(4)
	s.Claim("a", "b")
	if !s.Has("a") || !s.Has("b") || s.Len() != 2 {
		t.Fatalf("claim failed: %v", s)
	}
	s.Unclaim("a")
	if s.Has("a") || s.Len() != 1 {
		t.Fatalf("unclaim failed: %v", s)
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	in := []string{"+7 999 111 22 33", "79991112233", "", "abc", "2025550100", "+15550001111"}
	registered := map[string]bool{"+15550001111": true}
	got := Prepare(in, func(s string) bool { return registered[s] })
	want := []string{"+79991112233", "+12025550100"}
	if !slices.Equal(got, want) {
		t.Fatalf("Prepare = %v, want %v", got, want)
	}
	if got := Prepare([]string{"1", "1"}, nil); len(got) != 1 {
		t.Fatalf("nil exclude: %v", got)
	}
}

func collect(items []string, processed Set, size int) [][]string {
	var out [][]string
	for c := range Chunks(items, processed, size) {
		out = append(out, c)
	}
	return out
}

func TestChunks(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d", "e"}
	cases := []struct {
		name      string
		processed []string
		size      int
		want      [][]string
	}{
		{"even", nil, 2, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}},
		{"skips processed", []string{"b"}, 2, [][]string{{"a"}, {"c", "d"}, {"e"}}},
		{"drops empty chunk", []string{"c", "d"}, 2, [][]string{{"a", "b"}, {"e"}}},
		{"all processed", items, 2, nil},
		{"default size", nil, 0, [][]string{items}},
	}
	for _, tc := range cases {
		s := NewSet(0)
		s.Claim(tc.processed...)
		got := collect(items, s, tc.size)
		if !slices.EqualFunc(got, tc.want, slices.Equal) {
			t.Fatalf("%s: chunks = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestChunks_FilterAtYieldTime(t *testing.T) {
	t.Parallel()

	items := []string{"a", "b", "c", "d"}
	s := NewSet(0)
	var got [][]string
	for c := range Chunks(items, s, 2) {
		got = append(got, c)
		s.Claim("c")
	}
	if !slices.EqualFunc(got, [][]string{{"a", "b"}, {"d"}}, slices.Equal) {
		t.Fatalf("chunks = %v", got)
	}
}

func TestChunks_EarlyBreak(t *testing.T) {
	t.Parallel()

	n := 0
	for range Chunks([]string{"a", "b", "c"}, NewSet(0), 1) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("iterations = %d", n)
	}
}
