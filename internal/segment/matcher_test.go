package segment

import (
	"testing"

	"campaignd/internal/domain"
)

func spentOver(n float64) domain.Condition {
	return domain.Condition{Field: "total_spent", Type: domain.FieldNumber, Operator: domain.OpGreaterThan, Value: n}
}

func cityIs(name string) domain.Condition {
	return domain.Condition{Field: "city", Type: domain.FieldText, Operator: domain.OpEquals, Value: name}
}

func TestMatchesEmptyGroupMatchesEveryone(t *testing.T) {
	customers := []domain.Customer{
		customer(map[string]any{"email": "a@example.com"}),
		customer(nil),
		{ID: "cust_2"},
	}
	for _, c := range customers {
		if !Matches(c, domain.ConditionGroup{}) {
			t.Errorf("empty group must match customer %q", c.ID)
		}
	}
}

func TestMatchesAnd(t *testing.T) {
	g := domain.ConditionGroup{
		Combinator: domain.CombinatorAnd,
		Conditions: []domain.Condition{spentOver(500), cityIs("London")},
	}

	if !Matches(customer(map[string]any{"total_spent": float64(600), "city": "London"}), g) {
		t.Error("both conditions hold, expected match")
	}
	if Matches(customer(map[string]any{"total_spent": float64(600), "city": "Paris"}), g) {
		t.Error("one condition fails, expected no match")
	}
}

func TestMatchesOr(t *testing.T) {
	g := domain.ConditionGroup{
		Combinator: domain.CombinatorOr,
		Conditions: []domain.Condition{spentOver(500), cityIs("London")},
	}

	if !Matches(customer(map[string]any{"total_spent": float64(100), "city": "London"}), g) {
		t.Error("second condition holds, expected match")
	}
	if Matches(customer(map[string]any{"total_spent": float64(100), "city": "Paris"}), g) {
		t.Error("neither condition holds, expected no match")
	}
}

func TestMatchesNestedGroups(t *testing.T) {
	// spent > 500 AND (city = London OR city = Paris)
	g := domain.ConditionGroup{
		Combinator: domain.CombinatorAnd,
		Conditions: []domain.Condition{spentOver(500)},
		Groups: []domain.ConditionGroup{
			{
				Combinator: domain.CombinatorOr,
				Conditions: []domain.Condition{cityIs("London"), cityIs("Paris")},
			},
		},
	}

	if !Matches(customer(map[string]any{"total_spent": float64(900), "city": "Paris"}), g) {
		t.Error("expected match for high spender in Paris")
	}
	if Matches(customer(map[string]any{"total_spent": float64(900), "city": "Berlin"}), g) {
		t.Error("expected no match outside the city list")
	}
	if Matches(customer(map[string]any{"total_spent": float64(100), "city": "London"}), g) {
		t.Error("expected no match for low spender")
	}
}

func TestMatchesUnknownCombinatorNarrows(t *testing.T) {
	g := domain.ConditionGroup{
		Combinator: "XOR",
		Conditions: []domain.Condition{spentOver(500), cityIs("London")},
	}
	if Matches(customer(map[string]any{"total_spent": float64(600), "city": "Paris"}), g) {
		t.Error("unknown combinator must behave as AND")
	}
	if !Matches(customer(map[string]any{"total_spent": float64(600), "city": "London"}), g) {
		t.Error("unknown combinator must behave as AND, both hold here")
	}
}

func TestMatchesDepthCapFailsClosed(t *testing.T) {
	// A chain of single-child groups deeper than the cap, with a condition
	// at the bottom that would match. The cap must exclude, not recurse.
	leaf := domain.ConditionGroup{
		Combinator: domain.CombinatorAnd,
		Conditions: []domain.Condition{cityIs("London")},
	}
	g := leaf
	for i := 0; i < maxDepth+2; i++ {
		g = domain.ConditionGroup{Combinator: domain.CombinatorAnd, Groups: []domain.ConditionGroup{g}}
	}

	if Matches(customer(map[string]any{"city": "London"}), g) {
		t.Fatal("tree past the depth cap must not match")
	}
}

// The canonical walkthrough: "High Value Customers" = total_spent > 500
// over a book of customers who spent 200, 600 and 900.
func TestMatchesHighValueScenario(t *testing.T) {
	g := domain.ConditionGroup{
		Combinator: domain.CombinatorAnd,
		Conditions: []domain.Condition{spentOver(500)},
	}
	book := []domain.Customer{
		{ID: "cust_a", Fields: map[string]any{"total_spent": float64(200)}},
		{ID: "cust_b", Fields: map[string]any{"total_spent": float64(600)}},
		{ID: "cust_c", Fields: map[string]any{"total_spent": float64(900)}},
	}

	var matched []string
	for _, c := range book {
		if Matches(c, g) {
			matched = append(matched, c.ID)
		}
	}
	if len(matched) != 2 || matched[0] != "cust_b" || matched[1] != "cust_c" {
		t.Fatalf("matched = %v, want [cust_b cust_c]", matched)
	}
}
