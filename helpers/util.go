package helpers

import (
	"regexp"
	"strconv"
	"strings"
)

// Digit groups may be separated by regular or non-breaking spaces ("1 234")
var digitRunRe = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}]*`)

// FirstNumber parses the first run of digits in text, ignoring thousands separators
func FirstNumber(text string) (int, bool) {
	run := digitRunRe.FindString(text)
	if run == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, run)

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SecondToLastField returns the second-to-last whitespace-delimited token of text
func SecondToLastField(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", false
	}
	return fields[len(fields)-2], true
}

// BeforeComma returns the text before the first comma, trimmed
func BeforeComma(text string) string {
	head, _, _ := strings.Cut(text, ",")
	return strings.TrimSpace(head)
}
