package segment

import "campaignd/internal/domain"

// maxDepth bounds recursion over UI-authored trees. Anything deeper is
// almost certainly corrupt; past the cap the matcher fails closed.
const maxDepth = 32

// Matches evaluates a condition-group tree to a single membership decision.
// An empty group (no conditions, no subgroups) matches everything, which is
// the identity that makes an empty filter mean "all customers".
func Matches(c domain.Customer, g domain.ConditionGroup) bool {
	return matches(c, g, 0)
}

func matches(c domain.Customer, g domain.ConditionGroup, depth int) bool {
	if depth > maxDepth {
		return false
	}
	if len(g.Conditions) == 0 && len(g.Groups) == 0 {
		return true
	}

	if g.Combinator == domain.CombinatorOr {
		for _, cond := range g.Conditions {
			if Evaluate(c, cond) {
				return true
			}
		}
		for _, sub := range g.Groups {
			if matches(c, sub, depth+1) {
				return true
			}
		}
		return false
	}

	// AND is the default for unknown combinators; validation rejects them
	// upstream, and narrowing is the safe reading for anything that slipped by.
	for _, cond := range g.Conditions {
		if !Evaluate(c, cond) {
			return false
		}
	}
	for _, sub := range g.Groups {
		if !matches(c, sub, depth+1) {
			return false
		}
	}
	return true
}
