// Package phone normalizes phone numbers to a +digits form and parses number lists
//
// Rules, applied to the ASCII digits left after NFKC and width folding
//
//	more than 10 digits  "+" + digits
//	exactly 10 digits    "+1" + digits (north american local form)
//	fewer than 10        "+" + digits
//	no digits            "" (callers discard it)
package phone

import (
	"strings"
	"sync"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var foldPool = sync.Pool{
	New: func() any { return transform.Chain(norm.NFKC, width.Fold) },
}

// Digits returns the ASCII digits of s after folding fullwidth and compatibility forms
func Digits(s string) string {
	if s == "" {
		return ""
	}
	tr := foldPool.Get().(transform.Transformer)
	folded, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for i := 0; i < len(folded); i++ {
		if c := folded[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Normalize returns the canonical +digits form of s, or "" when s has no digits.
// Normalize is idempotent
func Normalize(s string) string {
	d := Digits(s)
	switch {
	case d == "":
		return ""
	case len(d) == 10:
		return "+1" + d
	default:
		return "+" + d
	}
}

// Dedupe drops repeats, keeping first occurrences in order
func Dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
