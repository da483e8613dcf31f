package v1

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/ast"
	"github.com/pkg/errors"

	"github.com/aishwaryashinde26/Neo-stat-ai-engineer/store"
)

// reservationFilter holds the field constraints a list filter expressed.
type reservationFilter struct {
	Status      string
	ServiceType string
	Resource    string
}

// parseReservationFilter parses a CEL expression into field constraints.
// Supported forms: `status == 'confirmed'`, `service == 'demo'`,
// `resource == 'default'`, and conjunctions of those with `&&`.
func parseReservationFilter(filterStr string) (*reservationFilter, error) {
	filter := &reservationFilter{}
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return filter, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("service", cel.StringType),
		cel.Variable("resource", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	celAST, issues := env.Compile(filterStr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid filter expression: %s", filterStr)
	}

	if err := collectFilterConstraints(celAST.NativeRep().Expr(), filter); err != nil {
		return nil, err
	}
	return filter, nil
}

// collectFilterConstraints walks the AST, accepting `_&&_` conjunctions of
// `field == 'literal'` comparisons.
func collectFilterConstraints(expr ast.Expr, filter *reservationFilter) error {
	if expr == nil {
		return errors.New("empty expression")
	}
	if expr.Kind() != ast.CallKind {
		return errors.New("filter must be a comparison expression (e.g., status == 'confirmed')")
	}

	call := expr.AsCall()
	switch call.FunctionName() {
	case "_&&_":
		for _, arg := range call.Args() {
			if err := collectFilterConstraints(arg, filter); err != nil {
				return err
			}
		}
		return nil
	case "_==_":
		args := call.Args()
		if len(args) != 2 {
			return errors.New("invalid comparison expression")
		}
		if field, value, ok := extractComparison(args[0], args[1]); ok {
			return applyFilterConstraint(filter, field, value)
		}
		if field, value, ok := extractComparison(args[1], args[0]); ok {
			return applyFilterConstraint(filter, field, value)
		}
		return errors.New("filter must compare a field with a string constant")
	default:
		return errors.Errorf("unsupported operator: %s (only '==' and '&&' are supported)", call.FunctionName())
	}
}

func extractComparison(left, right ast.Expr) (string, string, bool) {
	if left.Kind() != ast.IdentKind || right.Kind() != ast.LiteralKind {
		return "", "", false
	}
	value, ok := right.AsLiteral().Value().(string)
	if !ok || value == "" {
		return "", "", false
	}
	return left.AsIdent(), value, true
}

func applyFilterConstraint(filter *reservationFilter, field, value string) error {
	switch field {
	case "status":
		switch store.ReservationStatus(value) {
		case store.ReservationPending, store.ReservationConfirmed, store.ReservationCancelled:
			filter.Status = value
		default:
			return errors.Errorf("unknown status: %s", value)
		}
	case "service":
		filter.ServiceType = value
	case "resource":
		filter.Resource = value
	default:
		return errors.Errorf("unsupported filter field: %s", field)
	}
	return nil
}
