// Package safety scores canonical records for disallowed content.
//
// Classification is a pure, deterministic rule cascade: identical
// inputs always produce identical verdicts and no rule performs I/O.
// The cascade order is significant; see rules.go.
package safety

import (
	"strings"

	"github.com/corralhq/corral/internal/domain/model"
)

// Verdict is the classifier's decision plus its evidence.
type Verdict struct {
	IsNSFW       bool     `json:"isNSFW"`
	Confidence   float64  `json:"confidence"`
	Reasons      []string `json:"reasons,omitempty"`
	FlaggedTerms []string `json:"flaggedTerms,omitempty"`
}

// Classifier evaluates records against the configured term lists.
type Classifier struct {
	explicitNameTerms   []string
	safetyToolTerms     []string
	trustedProviders    []string
	generalFamilyTerms  []string
	highRiskSources     []string
	descriptionKeywords []string
	explicitTags        []string
}

// NewClassifier creates a classifier with the default term lists.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		explicitNameTerms:   explicitNameTerms,
		safetyToolTerms:     safetyToolTerms,
		trustedProviders:    trustedProviders,
		generalFamilyTerms:  generalFamilyTerms,
		highRiskSources:     highRiskSources,
		descriptionKeywords: descriptionKeywords,
		explicitTags:        explicitTags,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Classify evaluates one record. customKeywords extend the explicit
// name terms and (when long enough) the exact-match tag terms.
func (c *Classifier) Classify(m model.Model, customKeywords []string) Verdict {
	in := ruleInput{
		nameTokens:     tokens(normalizeName(m.Name)),
		provider:       strings.ToLower(strings.TrimSpace(m.Provider)),
		source:         m.Source,
		description:    m.Description,
		tags:           m.Tags,
		customKeywords: customKeywords,
	}

	for _, r := range c.cascade() {
		if verdict, decided := r.eval(in); decided {
			return verdict
		}
	}

	// The terminal rule always decides; this is unreachable.
	return Verdict{}
}

// RescanResult summarizes a store-wide retroactive scan.
type RescanResult struct {
	Flagged int
	Cleared int
}

// Rescan re-evaluates every record in place, tagging newly unsafe ones
// and clearing previously misclassified ones. No other state on the
// records is touched, so favorites and flagged image URLs survive.
func (c *Classifier) Rescan(models []model.Model, customKeywords []string) RescanResult {
	var res RescanResult
	for i := range models {
		verdict := c.Classify(models[i], customKeywords)
		switch {
		case verdict.IsNSFW && !models[i].IsNSFWFlagged:
			models[i].IsNSFWFlagged = true
			res.Flagged++
		case !verdict.IsNSFW && models[i].IsNSFWFlagged:
			models[i].IsNSFWFlagged = false
			res.Cleared++
		}
	}
	return res
}
