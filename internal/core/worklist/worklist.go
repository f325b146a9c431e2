// Package worklist prepares and partitions the items a run probes
package worklist

import (
	"iter"

	"rollcall/internal/core/phone"
)

// DefaultChunkSize is the partition size when none is configured
const DefaultChunkSize = 5000

// Set is the processed overlay of a run. It is owned by one goroutine
type Set map[string]struct{}

// NewSet returns an empty set sized for n items
func NewSet(n int) Set { return make(Set, n) }

// Claim marks items processed
func (s Set) Claim(items ...string) {
	for _, it := range items {
		s[it] = struct{}{}
	}
}

// Unclaim returns items to the unprocessed pool
func (s Set) Unclaim(items ...string) {
	for _, it := range items {
		delete(s, it)
	}
}

// Has reports whether item is processed
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Len is the number of processed items
func (s Set) Len() int { return len(s) }

// Prepare normalizes and dedupes items, keeping first occurrences, and drops
// blanks and anything exclude reports as already known. exclude may be nil
func Prepare(items []string, exclude func(string) bool) []string {
	norm := make([]string, 0, len(items))
	for _, it := range items {
		if n := phone.Normalize(it); n != "" {
			norm = append(norm, n)
		}
	}
	out := phone.Dedupe(norm)
	if exclude == nil {
		return out
	}
	kept := out[:0]
	for _, it := range out {
		if !exclude(it) {
			kept = append(kept, it)
		}
	}
	return kept
}

// Chunks walks items from the start and yields slices of at most size items that
// are not in processed at yield time. Empty chunks are never yielded
func Chunks(items []string, processed Set, size int) iter.Seq[[]string] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return func(yield func([]string) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			chunk := make([]string, 0, end-start)
			for _, it := range items[start:end] {
				if !processed.Has(it) {
					chunk = append(chunk, it)
				}
			}
			if len(chunk) == 0 {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
