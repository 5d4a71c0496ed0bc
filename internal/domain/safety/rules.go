package safety

import (
	"fmt"
	"strings"
)

// ruleInput carries the precomputed views of a record that rules match
// against. Rules are pure: they read the input and nothing else.
type ruleInput struct {
	nameTokens     []string
	provider       string
	source         string
	description    string
	tags           []string
	customKeywords []string
}

// rule is one step of the cascade. decided=false passes control to the
// next rule; the final rule always decides.
type rule struct {
	name string
	eval func(in ruleInput) (verdict Verdict, decided bool)
}

// cascade returns the ordered rule list. First match wins.
func (c *Classifier) cascade() []rule {
	return []rule{
		{name: "safety-tool-exemption", eval: c.evalSafetyToolExemption},
		{name: "explicit-name", eval: c.evalExplicitName},
		{name: "trusted-provider", eval: c.evalTrustedProvider},
		{name: "general-family", eval: c.evalGeneralFamily},
		{name: "weighted-score", eval: c.evalWeightedScore},
	}
}

// evalSafetyToolExemption clears models that are themselves detection
// tooling: "nsfw" co-occurring with a tool word in the name.
func (c *Classifier) evalSafetyToolExemption(in ruleInput) (Verdict, bool) {
	if !containsTerm(in.nameTokens, "nsfw") {
		return Verdict{}, false
	}
	for _, tool := range c.safetyToolTerms {
		if containsTerm(in.nameTokens, tool) {
			return Verdict{
				IsNSFW:     false,
				Confidence: 1.0,
				Reasons:    []string{"name identifies a safety/detection tool (" + tool + ")"},
			}, true
		}
	}
	return Verdict{}, false
}

// evalExplicitName flags on any explicit term in the normalized name.
// Explicit-name evidence always dominates: the hit is conclusive.
func (c *Classifier) evalExplicitName(in ruleInput) (Verdict, bool) {
	terms := c.explicitNameTerms
	if len(in.customKeywords) > 0 {
		terms = append(append([]string(nil), terms...), in.customKeywords...)
	}
	for _, term := range terms {
		if containsTerm(in.nameTokens, term) {
			return Verdict{
				IsNSFW:       true,
				Confidence:   1.0,
				Reasons:      []string{"explicit term in model name"},
				FlaggedTerms: []string{term},
			}, true
		}
	}
	return Verdict{}, false
}

// evalTrustedProvider clears records from allowlisted organizations.
func (c *Classifier) evalTrustedProvider(in ruleInput) (Verdict, bool) {
	if in.provider == "" {
		return Verdict{}, false
	}
	for _, org := range c.trustedProviders {
		if in.provider == org {
			return Verdict{
				IsNSFW:     false,
				Confidence: 1.0,
				Reasons:    []string{"trusted organization: " + org},
			}, true
		}
	}
	return Verdict{}, false
}

// evalGeneralFamily clears names matching known general-purpose model
// families (base LLMs, general generators, utility models).
func (c *Classifier) evalGeneralFamily(in ruleInput) (Verdict, bool) {
	for _, family := range c.generalFamilyTerms {
		if containsTerm(in.nameTokens, family) {
			return Verdict{
				IsNSFW:     false,
				Confidence: 1.0,
				Reasons:    []string{"general-purpose model family: " + family},
			}, true
		}
	}
	return Verdict{}, false
}

// evalWeightedScore accumulates description and tag evidence. It is the
// terminal rule and always decides.
func (c *Classifier) evalWeightedScore(in ruleInput) (Verdict, bool) {
	var (
		score   float64
		reasons []string
		flagged []string
	)

	// Description keywords are only consulted for high-risk origins so
	// mainstream catalogs do not pay the false-positive cost.
	if c.isHighRisk(in.source) || c.isHighRisk(in.provider) {
		desc := strings.ToLower(in.description)
		for _, kw := range c.descriptionKeywords {
			if strings.Contains(desc, kw) {
				score += descriptionKeywordWeight
				flagged = append(flagged, kw)
				reasons = append(reasons, fmt.Sprintf("description keyword %q", kw))
			}
		}
	}

	// Tags must match exactly after normalization; short terms are
	// excluded entirely to avoid incidental collisions.
	tagTerms := c.explicitTags
	if len(in.customKeywords) > 0 {
		tagTerms = append(append([]string(nil), tagTerms...), in.customKeywords...)
	}
	for _, tag := range in.tags {
		normalizedTag := normalizeName(tag)
		for _, term := range tagTerms {
			if len(term) < minTagTermLength {
				continue
			}
			if normalizedTag == normalizeName(term) {
				score += explicitTagWeight
				flagged = append(flagged, tag)
				reasons = append(reasons, fmt.Sprintf("explicit tag %q", tag))
			}
		}
	}

	verdict := Verdict{
		IsNSFW:       score >= nsfwScoreThreshold,
		Confidence:   min(score, 1.0),
		Reasons:      reasons,
		FlaggedTerms: flagged,
	}
	if !verdict.IsNSFW && len(reasons) == 0 {
		verdict.Reasons = []string{"no unsafe evidence"}
	}
	return verdict, true
}

func (c *Classifier) isHighRisk(origin string) bool {
	origin = strings.ToLower(strings.TrimSpace(origin))
	for _, s := range c.highRiskSources {
		if origin == s {
			return true
		}
	}
	return false
}
