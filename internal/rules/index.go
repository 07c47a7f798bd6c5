package rules

import "github.com/canonica-labs/admission/internal/drivers"

// MatchDriverRules reports whether any driver-scoped ignore rule matches the
// active tags. Class and method rules are evaluated alike; the first matching
// rule in declaration order is returned for explanation.
func MatchDriverRules(rules []Rule, active drivers.TagSet) (Rule, bool) {
	for _, r := range rules {
		if r.Kind != KindDriverIgnore {
			continue
		}
		if r.Drivers.Matches(active) {
			return r, true
		}
	}
	return Rule{}, false
}

// MarkedSkip reports whether any unconditional skip marker is present.
func MarkedSkip(rules []Rule) (Rule, bool) {
	for _, r := range rules {
		if r.Kind == KindSkip {
			return r, true
		}
	}
	return Rule{}, false
}
