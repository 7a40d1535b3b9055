package types

import (
	"fmt"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
)

// CommonFilter is one admin list condition on a column. Field names are the
// json names of the model, which are also its column names.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Columns is the set of fields a listing may filter and sort on.
type Columns map[string]bool

func NewColumns(names ...string) Columns {
	out := make(Columns, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Validate rejects unknown fields and operators and checks the value count.
func (f *CommonFilter) Validate(allowed Columns) error {
	if f == nil {
		return fmt.Errorf("empty filter")
	}
	if !allowed[f.Field] {
		return fmt.Errorf("field %q cannot be filtered", f.Field)
	}
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq,
		CommonFilterOperatorLt, CommonFilterOperatorLte,
		CommonFilterOperatorGt, CommonFilterOperatorGte:
		if len(f.Values) != 1 {
			return fmt.Errorf("%s on %s takes one value", f.Operator, f.Field)
		}
	case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
		if len(f.Values) != 2 {
			return fmt.Errorf("%s on %s takes two values", f.Operator, f.Field)
		}
	case CommonFilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("in on %s needs at least one value", f.Field)
		}
	default:
		return fmt.Errorf("unknown operator %q", f.Operator)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}

	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	}
}
