package domain

import (
	"errors"
	"fmt"
)

// operatorsByType is the load-time contract for condition trees: segments
// arrive as loosely-typed JSON from the UI, so operators are checked against
// the declared field type here rather than trusted at evaluation time.
var operatorsByType = map[FieldType]map[Operator]bool{
	FieldText: {
		OpEquals: true, OpNotEquals: true, OpContains: true, OpNotContains: true,
		OpStartsWith: true, OpEndsWith: true, OpIsSet: true, OpIsNotSet: true,
	},
	FieldNumber: {
		OpEquals: true, OpNotEquals: true, OpGreaterThan: true, OpLessThan: true,
		OpBetween: true, OpIsSet: true, OpIsNotSet: true,
	},
	FieldDate: {
		OpEquals: true, OpGreaterThan: true, OpLessThan: true, OpBetween: true,
		OpIsSet: true, OpIsNotSet: true,
	},
	FieldArray: {
		OpContains: true, OpNotContains: true, OpInList: true,
		OpIsSet: true, OpIsNotSet: true,
	},
	FieldBoolean: {
		OpEquals: true, OpNotEquals: true, OpIsSet: true, OpIsNotSet: true,
	},
}

var (
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrUnknownOperator  = errors.New("operator not valid for field type")
	ErrMissingValue     = errors.New("operator requires a value")
	ErrMissingValueTo   = errors.New("between requires value and valueTo")
	ErrBadCombinator    = errors.New("combinator must be AND or OR")
)

func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("condition: %w: empty field path", ErrMissingValue)
	}
	ops, ok := operatorsByType[c.Type]
	if !ok {
		return fmt.Errorf("condition %q: %w: %q", c.Field, ErrUnknownFieldType, c.Type)
	}
	if !ops[c.Operator] {
		return fmt.Errorf("condition %q: %w: %q on %q", c.Field, ErrUnknownOperator, c.Operator, c.Type)
	}
	switch c.Operator {
	case OpIsSet, OpIsNotSet:
		// value is ignored
	case OpBetween:
		if c.Value == nil || c.ValueTo == nil {
			return fmt.Errorf("condition %q: %w", c.Field, ErrMissingValueTo)
		}
	default:
		if c.Value == nil {
			return fmt.Errorf("condition %q: %w: %q", c.Field, ErrMissingValue, c.Operator)
		}
	}
	return nil
}

// Validate checks the whole tree. An empty group is valid (it matches
// everything); what gets rejected is malformed leaves and combinators.
func (g ConditionGroup) Validate() error {
	if g.Combinator != CombinatorAnd && g.Combinator != CombinatorOr {
		// Tolerate the empty-group identity without a combinator.
		if len(g.Conditions) == 0 && len(g.Groups) == 0 {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrBadCombinator, g.Combinator)
	}
	for _, c := range g.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, sub := range g.Groups {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}
