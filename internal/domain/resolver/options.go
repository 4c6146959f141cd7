package resolver

import "strings"

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithEcosystemName adds the product's own ecosystem name to the generic
// word list, so a project called "Acme Billing" does not score on "acme".
func WithEcosystemName(name string) Option {
	return func(r *Resolver) {
		for _, w := range splitWords(strings.ToLower(name)) {
			r.generic[w] = struct{}{}
		}
	}
}

// WithGenericWords adds words that score only the generic name-word points.
func WithGenericWords(words ...string) Option {
	return func(r *Resolver) {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				r.generic[w] = struct{}{}
			}
		}
	}
}
