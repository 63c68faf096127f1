package fileparser

import (
	"strings"
)

// MutateFile drops blank lines and strips one trailing delimiter per line.
// Lines are rejoined with CRLF.
func MutateFile(content []byte, delimiter string) []byte {
	lines := splitLines(string(content))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if delimiter != "" {
			line = strings.TrimSuffix(line, delimiter)
		}
		out = append(out, line)
	}
	return []byte(strings.Join(out, "\r\n"))
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
