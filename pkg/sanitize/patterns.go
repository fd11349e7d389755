package sanitize

import (
	"net/url"
	"regexp"
	"strings"
)

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`'`),
	regexp.MustCompile(`--`),
	regexp.MustCompile(`;`),
	regexp.MustCompile(`/\*|\*/`),
	regexp.MustCompile(`(?i)\bunion\b(\s+all)?\s+select\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+['"]?(\w+)['"]?\s*(=|<>|!=|like)\s*['"]?\w+`),
	regexp.MustCompile(`(?i)\b(drop|truncate|alter|create)\s+(table|database|schema|index|view|user)\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
	regexp.MustCompile(`(?i)\b(exec|execute)\b(\s|\()|\bxp_\w+`),
	regexp.MustCompile(`(?i)\b(sleep|benchmark|pg_sleep)\s*\(|\bwaitfor\s+delay\b`),
}

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`(?i)\b(javascript|vbscript|livescript)\s*:`),
	regexp.MustCompile(`(?i)\bdata\s*:\s*text/html`),
	regexp.MustCompile(`(?i)<\s*(iframe|object|embed|svg|img|style|link|meta|base|form)\b`),
	regexp.MustCompile(`(?i)expression\s*\(`),
}

var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(^|[\\/])\.\.([\\/]|$)`),
	regexp.MustCompile(`(?i)%2e%2e|%252e|\.\.%2f|\.\.%5c|%c0%ae`),
}

var windowsDrive = regexp.MustCompile(`^[A-Za-z]:[\\/]`)

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func isAbsolutePath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, `\`) || windowsDrive.MatchString(s)
}

// decodePercent undoes up to two rounds of percent-encoding so double-encoded
// traversal sequences are seen.
func decodePercent(s string) string {
	for range 2 {
		d, err := url.PathUnescape(s)
		if err != nil || d == s {
			break
		}
		s = d
	}
	return s
}
