package strings

import (
	"fmt"
	"strings"
)

// DefaultListMaxLen is the default width of joined lists, such as service
// tags, in table output.
const DefaultListMaxLen = 32

// MinTruncateLen is the minimum maxLen value for Truncate.
// Values smaller than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate shortens s to at most maxLen runes on a single line, ending in
// "..." when something was cut. Runs of whitespace become single spaces.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}

// JoinTruncated joins items with sep, keeping whole items only. When items
// had to be dropped the result ends in "+N" with the number left out, and
// the whole result still fits in maxLen runes. A single item that does not
// fit is cut with Truncate.
func JoinTruncated(items []string, sep string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	full := strings.Join(items, sep)
	if len([]rune(full)) <= maxLen {
		return full
	}

	for keep := len(items) - 1; keep > 0; keep-- {
		candidate := strings.Join(items[:keep], sep) + sep + fmt.Sprintf("+%d", len(items)-keep)
		if len([]rune(candidate)) <= maxLen {
			return candidate
		}
	}
	return Truncate(items[0], maxLen)
}
