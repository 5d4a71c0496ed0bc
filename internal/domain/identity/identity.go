// Package identity derives the matching key used to decide whether two
// catalog records represent the same logical model.
//
// All merge paths (sync, import, validation results) MUST derive keys
// through this package so deduplication stays consistent everywhere.
package identity

import (
	"strings"

	"github.com/corralhq/corral/internal/domain/model"
)

// Key returns the identity key for a model.
//
// Preference order:
//  1. normalized name + provider when both are present
//  2. url or repo when name or provider is missing
//  3. source + normalized name as last resort
//
// Records sharing a key are the same logical model regardless of which
// catalog they came from.
func Key(m model.Model) string {
	name := normalize(m.Name)
	provider := normalize(m.Provider)

	if name != "" && provider != "" {
		return name + "::" + provider
	}
	if u := normalizeURL(m.URL); u != "" {
		return "url::" + u
	}
	if r := normalizeURL(m.Repo); r != "" {
		return "repo::" + r
	}
	return normalize(m.Source) + "::" + name
}

// normalize casefolds and collapses whitespace and common delimiters so
// "Stable-Diffusion XL" and "stable_diffusion  xl" key identically.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch r {
		case '-', '_', '.', ' ', '\t':
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// normalizeURL strips scheme, trailing slashes and casefolds the host so
// trivially different URL spellings match.
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	u = strings.TrimRight(u, "/")
	return strings.ToLower(u)
}
