// Package merge reconciles canonical catalog records into a single set.
package merge

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAuthoritativeIncoming makes non-empty incoming fields take
// precedence over existing values. Used for user-initiated edits and
// validation results, which are allowed to correct stored data.
// Incoming empty fields still never clear existing values.
func WithAuthoritativeIncoming() Option {
	return func(e *Engine) {
		e.authoritative = true
	}
}
