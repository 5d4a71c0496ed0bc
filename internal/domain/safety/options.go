package safety

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithExplicitNameTerms replaces the explicit-name term list.
func WithExplicitNameTerms(terms []string) Option {
	return func(c *Classifier) {
		if len(terms) > 0 {
			c.explicitNameTerms = terms
		}
	}
}

// WithTrustedProviders replaces the trusted-organization allowlist.
func WithTrustedProviders(orgs []string) Option {
	return func(c *Classifier) {
		if len(orgs) > 0 {
			c.trustedProviders = orgs
		}
	}
}

// WithHighRiskSources replaces the high-risk origin list that gates
// description scanning.
func WithHighRiskSources(sources []string) Option {
	return func(c *Classifier) {
		if len(sources) > 0 {
			c.highRiskSources = sources
		}
	}
}

// WithExplicitTags replaces the exact-match tag term list.
func WithExplicitTags(tags []string) Option {
	return func(c *Classifier) {
		if len(tags) > 0 {
			c.explicitTags = tags
		}
	}
}
