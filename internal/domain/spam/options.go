package spam

import "strings"

// Option configures a Filter.
type Option func(*Filter)

// WithKeywords replaces the keyword list. Matching is case-insensitive.
func WithKeywords(keywords []string) Option {
	return func(f *Filter) {
		f.keywords = f.keywords[:0]
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				f.keywords = append(f.keywords, k)
			}
		}
	}
}

// WithForbiddenLabels replaces the forbidden label set.
func WithForbiddenLabels(labels []string) Option {
	return func(f *Filter) {
		f.labels = make(map[string]struct{}, len(labels))
		for _, l := range labels {
			if l = strings.TrimSpace(l); l != "" {
				f.labels[l] = struct{}{}
			}
		}
	}
}
