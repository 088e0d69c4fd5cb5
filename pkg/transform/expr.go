package transform

import (
	"encoding/json"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// DataVar is the only variable an expression may refer to.
const DataVar = "data"

// functions is the pure function table available to expressions.
var functions = map[string]function.Function{
	"abs":        stdlib.AbsoluteFunc,
	"ceil":       stdlib.CeilFunc,
	"coalesce":   stdlib.CoalesceFunc,
	"concat":     stdlib.ConcatFunc,
	"contains":   stdlib.ContainsFunc,
	"distinct":   stdlib.DistinctFunc,
	"element":    stdlib.ElementFunc,
	"flatten":    stdlib.FlattenFunc,
	"floor":      stdlib.FloorFunc,
	"format":     stdlib.FormatFunc,
	"join":       stdlib.JoinFunc,
	"jsondecode": stdlib.JSONDecodeFunc,
	"jsonencode": stdlib.JSONEncodeFunc,
	"keys":       stdlib.KeysFunc,
	"length":     stdlib.LengthFunc,
	"lookup":     stdlib.LookupFunc,
	"lower":      stdlib.LowerFunc,
	"max":        stdlib.MaxFunc,
	"merge":      stdlib.MergeFunc,
	"min":        stdlib.MinFunc,
	"range":      stdlib.RangeFunc,
	"replace":    stdlib.ReplaceFunc,
	"reverse":    stdlib.ReverseListFunc,
	"slice":      stdlib.SliceFunc,
	"sort":       stdlib.SortFunc,
	"split":      stdlib.SplitFunc,
	"strlen":     stdlib.StrlenFunc,
	"substr":     stdlib.SubstrFunc,
	"tonumber":   stdlib.MakeToFunc(cty.Number),
	"tostring":   stdlib.MakeToFunc(cty.String),
	"trimspace":  stdlib.TrimSpaceFunc,
	"upper":      stdlib.UpperFunc,
	"values":     stdlib.ValuesFunc,
}

// Functions returns the sorted names of the functions expressions may call.
func Functions() []string {
	return slices.Sorted(maps.Keys(functions))
}

// Validation is the outcome of [Validate].
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Validate parses expr without evaluating it. Besides syntax errors it
// rejects variables other than data and calls to unknown functions.
func Validate(expr string) Validation {
	if _, err := parse(expr); err != nil {
		return Validation{Error: perrors.UserMessage(err)}
	}
	return Validation{Valid: true}
}

// Evaluate runs expr with data bound to the variable "data" and returns the
// result as plain Go values (maps, slices, string, bool, int or float64).
func Evaluate(data any, expr string) (any, error) {
	e, err := parse(expr)
	if err != nil {
		return nil, err
	}
	in, err := toCty(data)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "convert data")
	}
	ctx := &hcl.EvalContext{
		Variables: map[string]cty.Value{DataVar: in},
		Functions: functions,
	}
	out, diags := e.Value(ctx)
	if diags.HasErrors() {
		return nil, perrors.New(perrors.ErrCodeInvalidExpression, "%s", diagMessage(diags))
	}
	return fromCty(out)
}

func parse(expr string) (hclsyntax.Expression, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidExpression, "expression is empty")
	}
	e, diags := hclsyntax.ParseExpression([]byte(expr), "transform", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, perrors.New(perrors.ErrCodeInvalidExpression, "%s", diagMessage(diags))
	}

	for _, tr := range e.Variables() {
		if name := tr.RootName(); name != DataVar {
			return nil, perrors.New(perrors.ErrCodeInvalidExpression, "unknown variable %q, only %q is available", name, DataVar)
		}
	}

	var unknown []string
	hclsyntax.VisitAll(e, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			if _, known := functions[call.Name]; !known {
				unknown = append(unknown, call.Name)
			}
		}
		return nil
	})
	if len(unknown) > 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidExpression, "unknown function %q", unknown[0])
	}
	return e, nil
}

func diagMessage(diags hcl.Diagnostics) string {
	var parts []string
	for _, d := range diags {
		if d.Severity != hcl.DiagError {
			continue
		}
		msg := d.Summary
		if d.Detail != "" {
			msg += ": " + d.Detail
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// toCty converts plain Go data to a cty value by way of its JSON form, so
// maps become objects and slices become tuples.
func toCty(v any) (cty.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return cty.NilVal, err
	}
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	return ctyjson.Unmarshal(raw, ty)
}

// fromCty converts a cty value back to plain Go data. Integral numbers that
// fit in an int come back as int. Infinities have no JSON form and are
// rejected.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInf() {
			return nil, fmt.Errorf("result %s is not a finite number", bf.String())
		}
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact && int64(int(i)) == i {
				return int(i), nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			nv, err := fromCty(el)
			if err != nil {
				return nil, err
			}
			out = append(out, nv)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, el := it.Element()
			nv, err := fromCty(el)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", k.AsString(), err)
			}
			out[k.AsString()] = nv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", ty.FriendlyName())
	}
}
