package varsfile

import (
	"bufio"
	"fmt"
	"strings"
	"unicode"

	"github.com/turtacn/certgate/internal/domain/models"
)

const directiveKeyword = "set_var"

// Parse reads vars content into a CAConfig. Missing, empty or unparsable values
// keep their defaults; comments and unknown directives are ignored.
// The first occurrence of a directive wins, matching how the file is usually edited.
func Parse(content string) models.CAConfig {
	cfg := models.DefaultCAConfig()
	seen := make(map[string]bool, len(schema))

	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keyword, rest := nextToken(line)
		if !strings.EqualFold(keyword, directiveKeyword) {
			continue
		}
		name, rest := nextToken(rest)
		e, ok := byDirective[strings.ToUpper(name)]
		if !ok || seen[e.directive] {
			continue
		}
		value, ok := parseValue(rest)
		if !ok {
			continue
		}
		if e.set(&cfg, value) {
			seen[e.directive] = true
		}
	}
	return cfg
}

// Encode renders cfg as vars content, one directive per schema entry.
func Encode(cfg models.CAConfig) string {
	var b strings.Builder
	b.WriteString("# Managed by certgate. Manual edits are overwritten on the next update.\n")
	for _, e := range schema {
		value := e.get(&cfg)
		if e.kind == kindString {
			value = `"` + escape(value) + `"`
		}
		fmt.Fprintf(&b, "%s %-24s%s\n", directiveKeyword, e.directive, value)
	}
	return b.String()
}

// escape prepares s for a double-quoted shell string. Newlines are dropped so
// one value can never start a new directive.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n', '\r':
			continue
		case '\\', '"', '$', '`':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nextToken(s string) (token, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx:]
}

// parseValue accepts "double quoted" (with backslash escapes), 'single quoted' or bare values.
func parseValue(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	switch s[0] {
	case '"':
		var b strings.Builder
		escaped := false
		for _, r := range s[1:] {
			switch {
			case escaped:
				b.WriteRune(r)
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				return b.String(), true
			default:
				b.WriteRune(r)
			}
		}
		return "", false
	case '\'':
		end := strings.IndexByte(s[1:], '\'')
		if end < 0 {
			return "", false
		}
		return s[1 : end+1], true
	default:
		token, _ := nextToken(s)
		if i := strings.IndexByte(token, '#'); i >= 0 {
			token = token[:i]
		}
		return token, token != ""
	}
}
