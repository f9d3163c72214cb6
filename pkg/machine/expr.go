package machine

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Expressions compiles CEL guards and assignments over two variables:
// "context" (the machine context) and "event" (the flattened triggering event).
type Expressions struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewExpressions creates an expression compiler.
func NewExpressions() (*Expressions, error) {
	env, err := cel.NewEnv(
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Expressions{env: env, cache: make(map[string]cel.Program)}, nil
}

func (x *Expressions) program(expression string) (cel.Program, error) {
	x.mu.RLock()
	prg, hit := x.cache[expression]
	x.mu.RUnlock()
	if hit {
		return prg, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if prg, hit = x.cache[expression]; hit {
		return prg, nil
	}
	ast, issues := x.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error in %q: %w", expression, issues.Err())
	}
	prg, err := x.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error in %q: %w", expression, err)
	}
	x.cache[expression] = prg
	return prg, nil
}

func (x *Expressions) eval(prg cel.Program, ctx map[string]any, ev domain.Event) (ref.Val, error) {
	out, _, err := prg.Eval(map[string]any{
		"context": normalizeNumbers(ctx),
		"event":   normalizeNumbers(ev.AsMap()),
	})
	return out, err
}

// Guard compiles a boolean expression. Evaluation errors and non-boolean
// results count as a failed guard.
func (x *Expressions) Guard(expression string) (Guard, error) {
	prg, err := x.program(expression)
	if err != nil {
		return Guard{}, err
	}
	return Guard{
		Type: expression,
		Check: func(ctx map[string]any, ev domain.Event) bool {
			out, err := x.eval(prg, ctx, ev)
			if err != nil {
				return false
			}
			b, ok := out.Value().(bool)
			return ok && b
		},
	}, nil
}

// Assign compiles one expression per context key. Every expression sees the
// context as it was before the action ran.
func (x *Expressions) Assign(assignments map[string]string) (Action, error) {
	keys := make([]string, 0, len(assignments))
	for k := range assignments {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	programs := make(map[string]cel.Program, len(keys))
	for _, k := range keys {
		prg, err := x.program(assignments[k])
		if err != nil {
			return nil, fmt.Errorf("assign %s: %w", k, err)
		}
		programs[k] = prg
	}

	return func(ctx map[string]any, ev domain.Event) map[string]any {
		update := make(map[string]any, len(keys))
		for _, k := range keys {
			out, err := x.eval(programs[k], ctx, ev)
			if err != nil {
				continue
			}
			update[k] = native(out)
		}
		return update
	}, nil
}

// normalizeNumbers turns whole float64 values (as decoded from JSON) into
// int64 so they mix with integer literals in CEL arithmetic.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeNumbers(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeNumbers(e)
		}
		return out
	default:
		return v
	}
}

// native converts a CEL value into plain Go values (int, float64, string,
// bool, []any, map[string]any).
func native(v ref.Val) any {
	switch val := v.(type) {
	case types.Int:
		return int(val)
	case types.Uint:
		return int(val)
	case types.Double:
		return float64(val)
	case types.String:
		return string(val)
	case types.Bool:
		return bool(val)
	case types.Null:
		return nil
	case traits.Lister:
		size, _ := val.Size().(types.Int)
		out := make([]any, int(size))
		for i := range out {
			out[i] = native(val.Get(types.Int(i)))
		}
		return out
	case traits.Mapper:
		out := make(map[string]any)
		it := val.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			out[fmt.Sprint(native(k))] = native(val.Get(k))
		}
		return out
	default:
		return v.Value()
	}
}
