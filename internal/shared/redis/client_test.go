package redis

import "testing"

// globMatch mirrors Redis MATCH semantics for the subset used here:
// "*" any run, "?" any single character, "\" quotes the next character.
func globMatch(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatch(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		return s != "" && globMatch(pattern[1:], s[1:])
	case '\\':
		if len(pattern) < 2 {
			return false
		}
		return s != "" && s[0] == pattern[1] && globMatch(pattern[2:], s[1:])
	default:
		return s != "" && s[0] == pattern[0] && globMatch(pattern[1:], s[1:])
	}
}

func TestEscapeMatch(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"api:/api/v1/claims?", `api:/api/v1/claims\?`},
		{"a*b", `a\*b`},
		{"a[0]", `a\[0\]`},
		{`a\b`, `a\\b`},
	}

	for _, tt := range tests {
		if got := escapeMatch(tt.in); got != tt.want {
			t.Errorf("escapeMatch(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// The cache layer relies on the trailing "?" of list prefixes to keep them
// disjoint from detail keys. Under glob semantics an unescaped "?" matches
// any character, "/" included, which would make a list-prefix deletion take
// out detail entries too.
func TestEscapeMatchKeepsListPrefixLiteral(t *testing.T) {
	listPrefix := "api:/api/v1/claims?"
	listKey := "api:/api/v1/claims?limit=10"
	detailKey := "api:/api/v1/claims/other-id?"

	raw := listPrefix + "*"
	if !globMatch(raw, detailKey) {
		t.Fatal("unescaped pattern no longer matches the detail key; test premise broken")
	}

	escaped := escapeMatch(listPrefix) + "*"
	if !globMatch(escaped, listKey) {
		t.Errorf("pattern %q does not match list key %q", escaped, listKey)
	}
	if globMatch(escaped, detailKey) {
		t.Errorf("pattern %q matches unrelated detail key %q", escaped, detailKey)
	}
}
