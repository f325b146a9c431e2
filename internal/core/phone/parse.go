package phone

import (
	"bufio"
	"io"
	"strings"
)

// Import is the result of parsing a number list
type Import struct {
	Numbers    []string `json:"numbers"`
	Total      int      `json:"total"`
	Invalid    int      `json:"invalid"`
	Duplicates int      `json:"duplicates"`
	Excluded   int      `json:"excluded"`
}

// ParseList reads whitespace separated numbers, any number per line, normalizes them,
// drops duplicates and anything exclude reports as known. exclude may be nil
func ParseList(r io.Reader, exclude func(string) bool) (Import, error) {
	var out Import
	seen := map[string]struct{}{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		for field := range strings.FieldsSeq(sc.Text()) {
			out.Total++
			n := Normalize(field)
			if n == "" {
				out.Invalid++
				continue
			}
			if _, dup := seen[n]; dup {
				out.Duplicates++
				continue
			}
			seen[n] = struct{}{}
			if exclude != nil && exclude(n) {
				out.Excluded++
				continue
			}
			out.Numbers = append(out.Numbers, n)
		}
	}
	return out, sc.Err()
}

// ParseText is ParseList over an in-memory string
func ParseText(s string, exclude func(string) bool) Import {
	out, _ := ParseList(strings.NewReader(s), exclude)
	return out
}
