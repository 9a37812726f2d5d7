package expression

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
)

const varsPrefix = "vars."

// Evaluator evaluates conditions and value expressions. It is safe for
// concurrent use; compiled expr programs are cached and reused.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// EvaluateBool evaluates an AND/OR chain of comparisons left to right with
// short-circuiting. An empty condition evaluates to true.
func (e *Evaluator) EvaluateBool(cond Condition, record, vars map[string]any) (bool, error) {
	if len(cond.Terms) == 0 {
		return true, nil
	}

	result, err := e.evaluateComparison(cond.Terms[0].Cmp, record, vars)
	if err != nil {
		return false, err
	}

	for _, term := range cond.Terms[1:] {
		switch term.Conj {
		case ConjAnd:
			if !result {
				continue
			}
		case ConjOr:
			if result {
				continue
			}
		default:
			return false, &EvalError{Field: term.Cmp.Field, Msg: fmt.Sprintf("unknown conjunction %q", term.Conj)}
		}

		result, err = e.evaluateComparison(term.Cmp, record, vars)
		if err != nil {
			return false, err
		}
	}

	return result, nil
}

func (e *Evaluator) evaluateComparison(cmp Comparison, record, vars map[string]any) (bool, error) {
	left := ResolvePath(cmp.Field, record, vars)

	switch cmp.Op {
	case OpIsNull:
		return left == nil, nil
	case OpIsNotNull:
		return left != nil, nil
	case OpEquals:
		return LooseEquals(left, cmp.Value), nil
	case OpNotEquals:
		return !LooseEquals(left, cmp.Value), nil
	case OpContains, OpStartsWith, OpEndsWith:
		return compareStrings(cmp, left)
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return compareOrdered(cmp, left)
	case OpIn:
		return compareMembership(cmp, left)
	default:
		return false, newEvalError(cmp, left, fmt.Sprintf("unknown operator %q", cmp.Op))
	}
}

// ResolvePath resolves a dotted path against the record snapshot, or against
// the variables map when the path carries a "vars." prefix. A missing segment
// resolves to nil.
func ResolvePath(path string, record, vars map[string]any) any {
	source := record
	if strings.HasPrefix(path, varsPrefix) {
		source = vars
		path = strings.TrimPrefix(path, varsPrefix)
	}

	var current any = source

	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current, ok = node[segment]
		if !ok {
			return nil
		}
	}

	return current
}

// LooseEquals compares two values, coercing both sides to float64 when both
// are numeric. Uncoercible type mismatches compare unequal rather than
// erroring; equality has a sensible answer for any pair of values.
func LooseEquals(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)

	if lok && rok {
		return lf == rf
	}

	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func compareStrings(cmp Comparison, left any) (bool, error) {
	ls, err := toString(left)
	if err != nil {
		return false, newEvalError(cmp, left, err.Error())
	}

	rs, err := toString(cmp.Value)
	if err != nil {
		return false, newEvalError(cmp, left, err.Error())
	}

	switch cmp.Op {
	case OpContains:
		return strings.Contains(ls, rs), nil
	case OpStartsWith:
		return strings.HasPrefix(ls, rs), nil
	default:
		return strings.HasSuffix(ls, rs), nil
	}
}

// compareOrdered handles gt/gte/lt/lte. Both operands are coerced to the
// same type, numbers first and dates second. A mismatch that cannot be
// coerced is an evaluation error, not false.
func compareOrdered(cmp Comparison, left any) (bool, error) {
	if lf, ok := toFloat(left); ok {
		rf, ok := toFloat(cmp.Value)
		if !ok {
			return false, newEvalError(cmp, left, "right operand is not numeric")
		}

		return orderedResult(cmp.Op, compareFloats(lf, rf)), nil
	}

	if lt, ok := toTime(left); ok {
		rt, ok := toTime(cmp.Value)
		if !ok {
			return false, newEvalError(cmp, left, "right operand is not a date")
		}

		return orderedResult(cmp.Op, lt.Compare(rt)), nil
	}

	return false, newEvalError(cmp, left, "left operand is neither numeric nor a date")
}

func compareFloats(l, r float64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func orderedResult(op Operator, cmp int) bool {
	switch op {
	case OpGreater:
		return cmp > 0
	case OpGreaterEq:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func compareMembership(cmp Comparison, left any) (bool, error) {
	set, ok := cmp.Value.([]any)
	if !ok {
		return false, newEvalError(cmp, left, "membership operand must be a list")
	}

	for _, candidate := range set {
		if LooseEquals(left, candidate) {
			return true, nil
		}
	}

	return false, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}

		if parsed, err := time.Parse("2006-01-02", t); err == nil {
			return parsed, true
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", fmt.Errorf("operand is null")
	case string:
		return s, nil
	case bool, int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", s), nil
	default:
		return "", fmt.Errorf("operand of type %T is not a string", v)
	}
}
