package expression

import "fmt"

// EvalError describes a condition or value expression that could not be
// evaluated. Branch steps surface it as a failed step rather than treating
// the condition as false, so misconfigured workflows fail loudly.
type EvalError struct {
	Field string
	Op    Operator
	Left  any
	Right any
	Msg   string
}

func (e *EvalError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("cannot evaluate %q %s %v against %v: %s", e.Field, e.Op, e.Right, e.Left, e.Msg)
	}

	return fmt.Sprintf("cannot evaluate %q: %s", e.Field, e.Msg)
}

func newEvalError(cmp Comparison, left any, msg string) *EvalError {
	return &EvalError{
		Field: cmp.Field,
		Op:    cmp.Op,
		Left:  left,
		Right: cmp.Value,
		Msg:   msg,
	}
}
