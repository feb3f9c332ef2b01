package lambda

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// maxLineSize bounds a single line of term text.
const maxLineSize = 4 << 20

// ReadTerms yields one term per line of r. Blank lines and lines that do not
// parse are skipped, as is anything after a read error. The sequence consumes
// r, so iterating it a second time yields nothing new; call ReadTerms again
// on a fresh reader instead.
func ReadTerms(r io.Reader) iter.Seq[*Term] {
	return func(yield func(*Term) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			t, err := Parse(line)
			if err != nil {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// ParseAll parses every entry of lines, silently dropping the malformed ones.
func ParseAll(lines []string) []*Term {
	out := make([]*Term, 0, len(lines))
	for _, line := range lines {
		t, err := Parse(line)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
