package sanitizer

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	initOnce     sync.Once
)

func initPolicies() {
	initOnce.Do(func() {
		// StrictPolicy strips every element and drops script and style bodies.
		strictPolicy = bluemonday.StrictPolicy()
	})
}

var (
	blockBreak = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|table|blockquote|pre)\s*>`)
	headBlock  = regexp.MustCompile(`(?is)<head[\s>].*?</head\s*>`)
	spaceRun   = regexp.MustCompile(`[ \t\f\v]+`)
	blankRun   = regexp.MustCompile(`\n{3,}`)
)

// PlainText converts an HTML document to readable plain text.
// Block-level closing tags become line breaks and entities are decoded.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	initPolicies()

	s = headBlock.ReplaceAllString(s, "")
	s = blockBreak.ReplaceAllString(s, "\n")
	s = strictPolicy.Sanitize(s)
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
