// Package formula compiles and evaluates formula-field expressions.
// Expressions are CEL programs over the sibling fields of a row, exposed
// as the map variable `row` (e.g. `row["price"] * row["qty"]`).
package formula

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/SophieEDesign/marketinghub/internal/models"
)

var ErrEmptyExpression = errors.New("formula expression is empty")

type Formula struct {
	program cel.Program
}

// Compile validates and compiles an expression against a table's fields.
// References to unknown or computed sibling fields are rejected at
// compile time so a bad formula surfaces when the field is saved, not on
// every row read.
func Compile(expression string, fields []models.Field) (*Formula, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}

	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("row", decls.NewMapType(decls.String, decls.Dyn)),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build formula env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid formula: %w", issues.Err())
	}

	available := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Type.IsComputed() {
			continue
		}
		available[f.Name] = struct{}{}
	}
	if err := checkFieldRefs(ast.Expr(), available); err != nil {
		return nil, err
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build formula program: %w", err)
	}
	return &Formula{program: program}, nil
}

// Eval computes the formula over one row's stored values.
func (f *Formula) Eval(row map[string]any) (any, error) {
	if f == nil {
		return nil, nil
	}
	out, _, err := f.program.Eval(map[string]any{"row": row})
	if err != nil {
		return nil, fmt.Errorf("evaluate formula: %w", err)
	}
	return out.Value(), nil
}

// checkFieldRefs walks the checked AST and verifies every constant index
// into `row` names a stored field.
func checkFieldRefs(expr *exprpb.Expr, available map[string]struct{}) error {
	if expr == nil {
		return nil
	}

	if call := expr.GetCallExpr(); call != nil {
		if call.Function == "_[_]" && len(call.Args) == 2 {
			if id := call.Args[0].GetIdentExpr(); id != nil && id.Name == "row" {
				if c := call.Args[1].GetConstExpr(); c != nil {
					if s, ok := c.ConstantKind.(*exprpb.Constant_StringValue); ok {
						if _, exists := available[s.StringValue]; !exists {
							return fmt.Errorf("formula references unknown field %q", s.StringValue)
						}
					}
				}
			}
		}
		if call.Target != nil {
			if err := checkFieldRefs(call.Target, available); err != nil {
				return err
			}
		}
		for _, arg := range call.Args {
			if err := checkFieldRefs(arg, available); err != nil {
				return err
			}
		}
		return nil
	}

	if sel := expr.GetSelectExpr(); sel != nil {
		// row.price style selection.
		if id := sel.Operand.GetIdentExpr(); id != nil && id.Name == "row" {
			if _, exists := available[sel.Field]; !exists {
				return fmt.Errorf("formula references unknown field %q", sel.Field)
			}
			return nil
		}
		return checkFieldRefs(sel.Operand, available)
	}

	if list := expr.GetListExpr(); list != nil {
		for _, elem := range list.Elements {
			if err := checkFieldRefs(elem, available); err != nil {
				return err
			}
		}
		return nil
	}

	if m := expr.GetStructExpr(); m != nil {
		for _, entry := range m.Entries {
			if err := checkFieldRefs(entry.GetMapKey(), available); err != nil {
				return err
			}
			if err := checkFieldRefs(entry.GetValue(), available); err != nil {
				return err
			}
		}
		return nil
	}

	if comp := expr.GetComprehensionExpr(); comp != nil {
		for _, sub := range []*exprpb.Expr{comp.IterRange, comp.AccuInit, comp.LoopCondition, comp.LoopStep, comp.Result} {
			if err := checkFieldRefs(sub, available); err != nil {
				return err
			}
		}
		return nil
	}

	return nil
}
