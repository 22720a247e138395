package agent

import (
	"regexp"
	"strings"
)

var markdownRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.*?)__`), "$1"},
	{regexp.MustCompile(`\*(.*?)\*`), "$1"},
	{regexp.MustCompile(`_(.*?)_`), "$1"},
	{regexp.MustCompile("`([^`\n]*)`"), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`\[([^\]\n]+)\]\([^)\n]*\)`), "$1"},
	{regexp.MustCompile(`(?m)^>[ \t]?`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`), "• "},
	{regexp.MustCompile(`(?m)^[ \t]*[-*_]{3,}[ \t]*$`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// CleanMarkdown reduces markdown to plain text suitable for chat delivery.
// Emphasis, headings, code fences, inline code, links and quotes are
// stripped, list bullets become "• " and horizontal rules are removed.
//
// The rules are applied until the text stops changing, so
// CleanMarkdown(CleanMarkdown(s)) == CleanMarkdown(s).
func CleanMarkdown(s string) string {
	cur := s
	for {
		next := cleanOnce(cur)
		if next == cur {
			return next
		}
		cur = next
	}
}

// Every rule either deletes characters or trades a markdown bullet for "• "
// of equal rune length, so repeated passes converge.
func cleanOnce(s string) string {
	s = strings.ReplaceAll(s, "```", "")
	for _, r := range markdownRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return strings.TrimSpace(s)
}
