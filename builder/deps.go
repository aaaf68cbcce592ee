package builder

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Deps is a Make rule as emitted by "sdcc -MM": one output and the inputs it
// was built from.
type Deps struct {
	Output string
	Inputs []string
}

// ParseDeps parses a dependency file. Rules may be continued with a trailing
// backslash, and spaces, '#' and '$' in paths are escaped the way Make
// expects. Inputs of multiple rules are merged under the first output.
func ParseDeps(filename string, r io.Reader) (*Deps, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	src := strings.ReplaceAll(string(b), "\r\n", "\n")
	src = strings.ReplaceAll(src, "\\\n", " ")

	ret := &Deps{}
	for lineNo, line := range strings.Split(src, "\n") {
		if trimmed := strings.TrimSpace(line); len(trimmed) == 0 || strings.HasPrefix(trimmed, "#") {
			continue
		}

		words := splitMakeWords(line)
		colon := -1
		for i, w := range words {
			if w.colon {
				colon = i
				break
			}
		}
		if colon < 0 {
			return nil, fmt.Errorf("%w: %s:%d: missing ':'", ErrInvalidDeps, filename, lineNo+1)
		}
		if colon == 0 {
			return nil, fmt.Errorf("%w: %s:%d: missing output", ErrInvalidDeps, filename, lineNo+1)
		}

		if len(ret.Output) == 0 {
			ret.Output = words[0].text
		}
		for _, w := range words[colon+1:] {
			if w.colon {
				continue
			}
			ret.Inputs = append(ret.Inputs, w.text)
		}
	}

	if len(ret.Output) == 0 {
		return nil, fmt.Errorf("%w: %s: no rule", ErrInvalidDeps, filename)
	}
	return ret, nil
}

type makeWord struct {
	text string
	// colon marks the rule separator.
	colon bool
}

func splitMakeWords(line string) []makeWord {
	var (
		words []makeWord
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, makeWord{text: cur.String()})
			cur.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
		case c == '$' && i+1 < len(line) && line[i+1] == '$':
			i++
			cur.WriteByte('$')
		case c == ' ' || c == '\t':
			flush()
		case c == ':' && (i+1 == len(line) || line[i+1] == ' ' || line[i+1] == '\t'):
			// A colon followed by a blank separates the rule. Others, such as
			// drive letters, belong to the path.
			flush()
			words = append(words, makeWord{colon: true})
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return words
}

// Print renders d as a Make rule that ParseDeps reads back unchanged, one
// input per continued line.
func (d *Deps) Print() []byte {
	var b bytes.Buffer
	b.WriteString(makeEscape(d.Output))
	b.WriteByte(':')
	for _, input := range d.Inputs {
		b.WriteString(" \\\n\t")
		b.WriteString(makeEscape(input))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

func makeEscape(path string) string {
	var sb strings.Builder
	for _, r := range path {
		switch r {
		case '$':
			sb.WriteString("$$")
		case ' ', '\t', '#', ':', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
