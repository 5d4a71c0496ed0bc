package safety

import (
	"strings"
	"unicode"
)

// normalizeName rewrites a model name for matching: lower-cased, with
// CamelCase boundaries, delimiter characters (- _ .) and letter/digit
// transitions all converted to single spaces. "NudePortraitV2" becomes
// "nude portrait v 2".
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)

	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '-' || r == '_' || r == '.' || unicode.IsSpace(r):
			b.WriteByte(' ')
		case i > 0 && boundary(runes[i-1], r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// boundary reports whether a token boundary falls between prev and cur.
func boundary(prev, cur rune) bool {
	switch {
	case unicode.IsLower(prev) && unicode.IsUpper(cur):
		return true
	case unicode.IsLetter(prev) && unicode.IsDigit(cur):
		return true
	case unicode.IsDigit(prev) && unicode.IsLetter(cur):
		return true
	default:
		return false
	}
}

// tokens splits a normalized name into its words.
func tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

// containsTerm reports whether term occurs in the token list on word
// boundaries. Multi-word terms match as a consecutive token run, and
// their no-space variant matches as a single token, so "not safe for
// work" also catches "notsafeforwork". Raw substring matching is never
// used; "sex" inside "essex" does not match.
func containsTerm(toks []string, term string) bool {
	want := tokens(normalizeName(term))
	if len(want) == 0 {
		return false
	}

	if len(want) == 1 {
		for _, t := range toks {
			if t == want[0] {
				return true
			}
		}
		return false
	}

	// Consecutive run.
	for i := 0; i+len(want) <= len(toks); i++ {
		match := true
		for j, w := range want {
			if toks[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	// No-space variant as a single token.
	joined := strings.Join(want, "")
	for _, t := range toks {
		if t == joined {
			return true
		}
	}
	return false
}
