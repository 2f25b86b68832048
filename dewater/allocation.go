package dewater

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats"
)

// Allocator divides a total pumping rate among wells. Implementations
// return one non-negative flow per well.
type Allocator interface {
	Allocate(totalQ float64, wells []Well) ([]float64, error)
}

// EqualShare gives every well totalQ / wellCount
type EqualShare struct{}

// Allocate implements Allocator
func (EqualShare) Allocate(totalQ float64, wells []Well) ([]float64, error) {
	if len(wells) == 0 {
		return nil, ValidationErrors{invalid("wells", "at least one well is required")}
	}
	q := totalQ / float64(len(wells))
	flows := make([]float64, len(wells))
	for i := range flows {
		flows[i] = q
	}
	return flows, nil
}

// ExpressionAllocator weights wells with a CEL expression evaluated once
// per well. Available variables: index, wellCount (int) and x, y, totalQ
// (double). Weights are normalised so that the flows sum to totalQ.
type ExpressionAllocator struct {
	expression string
	program    cel.Program
}

// allocProgramCacheSize bounds the compiled programs kept between requests.
// Expressions arrive in request bodies, so the set is open-ended.
const allocProgramCacheSize = 256

var (
	allocEnvOnce sync.Once
	allocEnv     *cel.Env
	allocEnvErr  error

	allocPrograms = mustProgramCache(allocProgramCacheSize)
)

func mustProgramCache(size int) *lru.Cache[string, cel.Program] {
	c, err := lru.New[string, cel.Program](size)
	if err != nil {
		panic(err)
	}
	return c
}

func allocationEnv() (*cel.Env, error) {
	allocEnvOnce.Do(func() {
		allocEnv, allocEnvErr = cel.NewEnv(
			cel.Variable("index", cel.IntType),
			cel.Variable("wellCount", cel.IntType),
			cel.Variable("x", cel.DoubleType),
			cel.Variable("y", cel.DoubleType),
			cel.Variable("totalQ", cel.DoubleType),
		)
	})
	return allocEnv, allocEnvErr
}

// NewExpressionAllocator compiles expression. Recently used programs are
// shared between allocators with the same expression text.
func NewExpressionAllocator(expression string) (*ExpressionAllocator, error) {
	if prog, ok := allocPrograms.Get(expression); ok {
		return &ExpressionAllocator{expression: expression, program: prog}, nil
	}

	env, err := allocationEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, ValidationErrors{invalid("allocationExpression", "compile error: %v", issues.Err())}
	}

	prog, err := env.Program(ast, cel.CostLimit(100000))
	if err != nil {
		return nil, ValidationErrors{invalid("allocationExpression", "program creation error: %v", err)}
	}

	allocPrograms.Add(expression, prog)

	return &ExpressionAllocator{expression: expression, program: prog}, nil
}

// Expression returns the source text
func (a *ExpressionAllocator) Expression() string {
	return a.expression
}

// Allocate implements Allocator
func (a *ExpressionAllocator) Allocate(totalQ float64, wells []Well) ([]float64, error) {
	if len(wells) == 0 {
		return nil, ValidationErrors{invalid("wells", "at least one well is required")}
	}

	weights := make([]float64, len(wells))
	for i, w := range wells {
		out, _, err := a.program.Eval(map[string]any{
			"index":     int64(i),
			"wellCount": int64(len(wells)),
			"x":         w.X,
			"y":         w.Y,
			"totalQ":    totalQ,
		})
		if err != nil {
			return nil, ValidationErrors{invalid("allocationExpression", "well %d: %v", i, err)}
		}

		var weight float64
		switch v := out.Value().(type) {
		case float64:
			weight = v
		case int64:
			weight = float64(v)
		case uint64:
			weight = float64(v)
		default:
			return nil, ValidationErrors{invalid("allocationExpression",
				"well %d: expression must yield a number, got %T", i, v)}
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return nil, ValidationErrors{invalid("allocationExpression",
				"well %d: weight must be finite and >= 0, got %v", i, weight)}
		}
		weights[i] = weight
	}

	sum := floats.Sum(weights)
	if sum == 0 {
		return nil, ValidationErrors{invalid("allocationExpression", "all well weights are zero")}
	}

	floats.Scale(totalQ/sum, weights)
	return weights, nil
}

// AllocatorFor returns the allocator named by a request: equal share when
// expression is empty.
func AllocatorFor(expression string) (Allocator, error) {
	if expression == "" {
		return EqualShare{}, nil
	}
	return NewExpressionAllocator(expression)
}
