// Package expression evaluates workflow conditions and value expressions
// against a record snapshot and an execution's accumulated variables.
package expression

// Operator identifies a comparison operator in a condition term.
type Operator string

const (
	OpEquals     Operator = "eq"
	OpNotEquals  Operator = "ne"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpGreater    Operator = "gt"
	OpGreaterEq  Operator = "gte"
	OpLess       Operator = "lt"
	OpLessEq     Operator = "lte"
	OpIn         Operator = "in"
	OpIsNull     Operator = "is_null"
	OpIsNotNull  Operator = "is_not_null"
)

// Conjunction joins a condition term with the result accumulated so far.
type Conjunction string

const (
	ConjAnd Conjunction = "and"
	ConjOr  Conjunction = "or"
)

// Comparison is a single field comparison. Field is a dotted path into the
// record snapshot; a "vars." prefix reads the execution's variables instead.
type Comparison struct {
	Field string   `json:"field" validate:"required"`
	Op    Operator `json:"op"    validate:"required"`
	Value any      `json:"value,omitempty"`
}

// Term is one link in an AND/OR chain. Conj is empty on the first term.
type Term struct {
	Conj Conjunction `json:"conj,omitempty"`
	Cmp  Comparison  `json:"cmp"`
}

// Condition is a flat AND/OR chain of comparisons, evaluated left to right
// with short-circuiting.
type Condition struct {
	Terms []Term `json:"terms" validate:"required,min=1,dive"`
}
