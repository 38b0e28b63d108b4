package audience

import (
	"campaignd/internal/domain"
	"campaignd/internal/segment"
)

// Resolve returns the customers satisfying every selected segment: targeting
// two segments reaches only their intersection. A catch-all segment imposes
// no constraint. Enumeration order follows the input customer slice, so one
// run processes recipients in a stable order.
func Resolve(customers []domain.Customer, segments []domain.Segment) []domain.Customer {
	if len(segments) == 0 {
		return customers
	}
	matched := make([]domain.Customer, 0, len(customers))
	for _, c := range customers {
		if matchesAll(c, segments) {
			matched = append(matched, c)
		}
	}
	return matched
}

func matchesAll(c domain.Customer, segments []domain.Segment) bool {
	for _, s := range segments {
		if s.IsCatchAll() {
			continue
		}
		if !safeMatches(c, s.Filter) {
			return false
		}
	}
	return true
}

// safeMatches isolates a faulty segment: if its tree panics (e.g. a condition
// referencing a mistyped field slipped past validation), that segment is
// treated as non-matching for this customer instead of aborting the whole
// resolution.
func safeMatches(c domain.Customer, g domain.ConditionGroup) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return segment.Matches(c, g)
}
