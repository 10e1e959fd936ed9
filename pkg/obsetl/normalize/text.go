package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	leadingBulletPattern = regexp.MustCompile(`^\s*[-•*+]\s+`)
	inlineBulletPattern  = regexp.MustCompile(`\s*[-•*+]\s+`)
	whitespacePattern    = regexp.MustCompile(`\s+`)
	lineBreakReplacer    = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// shorthand expansions, longest token first so "w/o" is not read as "w/".
var shorthands = []struct {
	token string
	full  string
}{
	{token: "w/o", full: "without"},
	{token: "w/", full: "with"},
}

// Text cleans an observation note into a single capitalized line.
func Text(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "—", "-")
	for _, sh := range shorthands {
		text = expandStandalone(text, sh.token, sh.full)
	}
	text = lineBreakReplacer.Replace(text)
	text = leadingBulletPattern.ReplaceAllString(text, "")
	text = inlineBulletPattern.ReplaceAllString(text, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = capitalizeFirst(strings.TrimSpace(text))

	return strings.TrimSpace(text)
}

// expandStandalone replaces token with full wherever token is not glued to a
// word character on either side.
func expandStandalone(s, token, full string) string {
	if !strings.Contains(s, token) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for {
		j := strings.Index(s[i:], token)
		if j < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + j
		end := start + len(token)
		b.WriteString(s[i:start])
		if wordBoundaryBefore(s, start) && wordBoundaryAfter(s, end) {
			b.WriteString(full)
		} else {
			b.WriteString(token)
		}
		i = end
	}
	return b.String()
}

func wordBoundaryBefore(s string, at int) bool {
	if at == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:at])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, at int) bool {
	if at >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[at:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// capitalizeFirst upper-cases the first rune and leaves the rest untouched.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
