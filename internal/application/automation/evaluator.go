package automation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/opencrm/backend/internal/domain/shared"
)

// maxCachedPrograms bounds the compiled expression cache; it is reset when full
const maxCachedPrograms = 1024

// ExpressionEvaluator compiles and runs boolean rule expressions with expr-lang.
// Compiled programs are cached by source text.
type ExpressionEvaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
	now      func() time.Time
}

// NewExpressionEvaluator creates an evaluator with an empty program cache
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{
		programs: make(map[string]*vm.Program),
		now:      time.Now,
	}
}

// Validate compiles the expression and reports syntax errors as INVALID_EXPRESSION
func (e *ExpressionEvaluator) Validate(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	_, err := e.program(expression)
	return err
}

// Evaluate runs the expression against env. An empty expression is true.
func (e *ExpressionEvaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, errors.New("expression did not return a boolean")
	}
	return result, nil
}

func (e *ExpressionEvaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if p, ok := e.programs[expression]; ok {
		e.mu.RUnlock()
		return p, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.programs[expression]; ok {
		return p, nil
	}

	p, err := expr.Compile(expression, append(e.functions(), expr.AsBool())...)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_EXPRESSION", err.Error())
	}
	if len(e.programs) >= maxCachedPrograms {
		e.programs = make(map[string]*vm.Program)
	}
	e.programs[expression] = p
	return p, nil
}

// functions are the helpers available to every expression
func (e *ExpressionEvaluator) functions() []expr.Option {
	return []expr.Option{
		expr.Function("daysSince", func(params ...any) (any, error) {
			t, err := timeArg("daysSince", params)
			if err != nil {
				return nil, err
			}
			return int(e.now().Sub(t).Hours() / 24), nil
		}),
		expr.Function("daysUntil", func(params ...any) (any, error) {
			t, err := timeArg("daysUntil", params)
			if err != nil {
				return nil, err
			}
			return int(t.Sub(e.now()).Hours() / 24), nil
		}),
	}
}

func timeArg(name string, params []any) (time.Time, error) {
	if len(params) != 1 {
		return time.Time{}, fmt.Errorf("%s requires 1 argument", name)
	}
	switch v := params[0].(type) {
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %v is not a date", name, params[0])
}
