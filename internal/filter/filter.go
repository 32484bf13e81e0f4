// Package filter evaluates per-source row predicates written in CEL.
//
// A predicate sees the current record as the variable `row`, a
// map(string, string) keyed by column name:
//
//	row.status == "succeeded"
//	row.currency in ["usd", "eur"] && row.amount != "0"
//	has(row.refunded) && row.refunded == "false"
//
// Accessing a column that the record does not have is an evaluation error;
// guard optional columns with has().
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// Filter is a compiled row predicate. A nil *Filter matches every row.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr. An empty expression yields a nil
// Filter.
func Compile(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}

	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("compile %q: expression must return bool, not %s", expr, out)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program for %q: %w", expr, err)
	}

	return &Filter{expr: expr, program: program}, nil
}

// Match reports whether row satisfies the predicate.
func (f *Filter) Match(row map[string]string) (bool, error) {
	if f == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(map[string]any{"row": row})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", f.expr, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q: got %v, want bool", f.expr, out.Type())
	}

	return matched, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}
