package expression

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Value is a tagged value expression used where a step produces a value,
// e.g. the right-hand side of an update_field step. Exactly one of the
// fields should be set; Expr wins over Ref, which wins over Literal.
type Value struct {
	Literal any    `json:"literal,omitempty"`
	Ref     string `json:"ref,omitempty"`
	Expr    string `json:"expr,omitempty"`
}

// EvaluateValue resolves a value expression against the record snapshot and
// variables. Expr expressions see the environment {record, vars}.
func (e *Evaluator) EvaluateValue(v Value, record, vars map[string]any) (any, error) {
	if v.Expr != "" {
		return e.evalExpr(v.Expr, map[string]any{
			"record": record,
			"vars":   vars,
		})
	}

	if v.Ref != "" {
		return ResolvePath(v.Ref, record, vars), nil
	}

	return v.Literal, nil
}

func (e *Evaluator) evalExpr(expression string, env map[string]any) (any, error) {
	program, err := e.getOrCompile(expression)
	if err != nil {
		return nil, &EvalError{Field: expression, Msg: err.Error()}
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, &EvalError{Field: expression, Msg: err.Error()}
	}

	return out, nil
}

func (e *Evaluator) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()

		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	e.cache[expression] = program

	return program, nil
}
