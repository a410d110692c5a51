package file

import "strings"

// Source holds the expression text an AST was parsed from. It is only used
// to render snippets into error messages.
type Source struct {
	raw string
}

func NewSource(contents string) Source {
	return Source{raw: contents}
}

func (s Source) String() string {
	return s.raw
}

func (s Source) IsZero() bool {
	return s.raw == ""
}

// Snippet returns the source line covering loc together with a caret line
// pointing at the offending range.
func (s Source) Snippet(loc Location) string {
	if s.raw == "" {
		return ""
	}
	runes := []rune(s.raw)
	from := loc.From
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	lineStart := from
	for lineStart > 0 && runes[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := from
	for lineEnd < len(runes) && runes[lineEnd] != '\n' {
		lineEnd++
	}
	line := string(runes[lineStart:lineEnd])
	width := loc.To - loc.From
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", from-lineStart))
	b.WriteString(strings.Repeat("^", width))
	return b.String()
}
