package domain

import (
	"errors"
	"testing"
)

func TestConditionValidate(t *testing.T) {
	cases := []struct {
		name    string
		cond    Condition
		wantErr error
	}{
		{"text equals ok", Condition{Field: "city", Type: FieldText, Operator: OpEquals, Value: "London"}, nil},
		{"is_set without value ok", Condition{Field: "email", Type: FieldText, Operator: OpIsSet}, nil},
		{"between ok", Condition{Field: "total_spent", Type: FieldNumber, Operator: OpBetween, Value: float64(1), ValueTo: float64(2)}, nil},
		{"between missing valueTo", Condition{Field: "total_spent", Type: FieldNumber, Operator: OpBetween, Value: float64(1)}, ErrMissingValueTo},
		{"missing value", Condition{Field: "city", Type: FieldText, Operator: OpEquals}, ErrMissingValue},
		{"empty field", Condition{Type: FieldText, Operator: OpEquals, Value: "x"}, ErrMissingValue},
		{"unknown type", Condition{Field: "x", Type: "geo", Operator: OpEquals, Value: "y"}, ErrUnknownFieldType},
		{"operator wrong for type", Condition{Field: "total_spent", Type: FieldNumber, Operator: OpContains, Value: float64(1)}, ErrUnknownOperator},
		{"starts_with on array rejected", Condition{Field: "tags", Type: FieldArray, Operator: OpStartsWith, Value: "v"}, ErrUnknownOperator},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cond.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestConditionGroupValidate(t *testing.T) {
	valid := ConditionGroup{
		Combinator: CombinatorAnd,
		Conditions: []Condition{{Field: "city", Type: FieldText, Operator: OpEquals, Value: "London"}},
		Groups: []ConditionGroup{
			{Combinator: CombinatorOr, Conditions: []Condition{{Field: "email", Type: FieldText, Operator: OpIsSet}}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid tree rejected: %v", err)
	}

	if err := (ConditionGroup{}).Validate(); err != nil {
		t.Fatalf("empty group rejected: %v", err)
	}

	bad := ConditionGroup{
		Combinator: "NAND",
		Conditions: []Condition{{Field: "city", Type: FieldText, Operator: OpEquals, Value: "London"}},
	}
	if err := bad.Validate(); !errors.Is(err, ErrBadCombinator) {
		t.Fatalf("Validate() = %v, want ErrBadCombinator", err)
	}

	nestedBad := ConditionGroup{
		Combinator: CombinatorAnd,
		Groups: []ConditionGroup{
			{Combinator: CombinatorOr, Conditions: []Condition{{Field: "x", Type: "geo", Operator: OpEquals, Value: "y"}}},
		},
	}
	if err := nestedBad.Validate(); !errors.Is(err, ErrUnknownFieldType) {
		t.Fatalf("Validate() = %v, want ErrUnknownFieldType from nested leaf", err)
	}
}

func TestScheduleSendRequestValidate(t *testing.T) {
	ok := ScheduleSendRequest{CampaignID: "cmp_1", IdempotencyKey: "key-1"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	missing := ScheduleSendRequest{CampaignID: "cmp_1"}
	if err := missing.Validate(); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("Validate() = %v, want ErrMissingFields", err)
	}
}
