package resolve

import (
	"regexp"
	"strings"
	"sync"
)

// maxPatternLen bounds the size of an extension pattern compiled to a regexp.
const maxPatternLen = 1024

var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

// ExtensionMatches reports whether the extension name exten is matched by
// pattern. Names starting with '_' are patterns: X is any digit, Z is 1-9,
// N is 2-9, [..] is a character set and '.' or '!' match the rest.
func ExtensionMatches(exten, pattern string) bool {
	if exten == pattern {
		return true
	}
	if !strings.HasPrefix(pattern, "_") {
		return false
	}
	re := compilePattern(pattern)
	if re == nil {
		return false
	}
	return re.MatchString(exten)
}

func compilePattern(pattern string) *regexp.Regexp {
	if len(pattern) > maxPatternLen {
		return nil
	}
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(patternToRegexp(pattern))
	if err != nil {
		re = nil
	}
	patternCache[pattern] = re
	return re
}

// patternToRegexp converts "_NXX." into "^_?[2-9N][0-9X][0-9X].*$". The
// optional leading underscore lets a pattern match itself.
func patternToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("^_?")
	for i := 1; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case 'X', 'x':
			b.WriteString("[0-9" + string(ch) + "]")
		case 'Z', 'z':
			b.WriteString("[1-9" + string(ch) + "]")
		case 'N', 'n':
			b.WriteString("[2-9" + string(ch) + "]")
		case '[':
			end := strings.IndexByte(pattern[i:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(pattern[i : i+end+1])
			i += end
		case '.', '!':
			b.WriteString(".*")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// MatchToPattern returns a literal extension matched by the switch-arm
// pattern p: digit classes become '9' and character sets their first member.
func MatchToPattern(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		ch := p[i]
		switch ch {
		case 'x', 'n', 'z', 'X', 'N', 'Z':
			b.WriteByte('9')
		case '[':
			end := strings.IndexByte(p[i:], ']')
			if end < 0 {
				b.WriteString(p[i:])
				return b.String()
			}
			if end > 1 {
				b.WriteByte(p[i+1])
			}
			i += end
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
