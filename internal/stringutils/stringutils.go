package stringutils

import "strings"

// IndentLines returns lines joined by newlines, each line prefixed with
// indent.
func IndentLines(lines []string, indent string) string {
	if len(lines) == 0 {
		return ""
	}

	return indent + strings.Join(lines, "\n"+indent)
}
