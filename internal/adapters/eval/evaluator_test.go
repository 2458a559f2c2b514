package eval

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/glade/internal/adapters/graph"
	"github.com/eleven-am/glade/internal/domain"
)

func identity(ctx context.Context, call domain.Call) (interface{}, error) {
	return call.Args[0], nil
}

func TestEvaluateApplication(t *testing.T) {
	registry := graph.NewRegistry()
	registry.Register("add", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return call.Args[0].(float64) + call.Args[1].(float64), nil
	})

	value, err := New(registry, nil).Evaluate(context.Background(), graph.Defer("add", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, float64(3), value)
}

func TestEvaluateLiteralNode(t *testing.T) {
	registry := graph.NewRegistry()

	value, err := New(registry, nil).Evaluate(context.Background(), graph.Literal(42))
	require.NoError(t, err)
	assert.Equal(t, float64(42), value)
}

func TestEvaluateNestedGraph(t *testing.T) {
	registry := graph.NewRegistry()
	registry.Register("identity", identity)

	root := graph.Defer("identity", graph.Defer("identity", 42))
	value, err := New(registry, nil).Evaluate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, float64(42), value)
}

func TestMemoizationSharedSubgraph(t *testing.T) {
	// Two distinct paths to the same node invoke its operation exactly
	// once within one memo table.
	var calls atomic.Int64
	registry := graph.NewRegistry()
	registry.Register("f", func(ctx context.Context, call domain.Call) (interface{}, error) {
		calls.Add(1)
		return call.Args[0], nil
	})
	registry.Register("g", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return []interface{}{call.Args[0], call.Args[1]}, nil
	})

	a := graph.Defer("f", 1)
	b := graph.Defer("g", a, a)

	_, err := New(registry, nil).Evaluate(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMemoizationDiamond(t *testing.T) {
	// Independently built but structurally equal nodes collapse too,
	// at arbitrary depth.
	var calls atomic.Int64
	registry := graph.NewRegistry()
	registry.Register("base", func(ctx context.Context, call domain.Call) (interface{}, error) {
		calls.Add(1)
		return float64(10), nil
	})
	registry.Register("wrap", identity)
	registry.Register("join", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return call.Args[0].(float64) + call.Args[1].(float64), nil
	})

	left := graph.Defer("wrap", graph.Defer("base"))
	right := graph.Defer("wrap", graph.Defer("base"))
	root := graph.Defer("join", left, right)

	value, err := New(registry, nil).Evaluate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, float64(20), value)
	assert.Equal(t, int64(1), calls.Load())
}

func TestProjectionMemoizesToOneEvaluation(t *testing.T) {
	var calls atomic.Int64
	registry := graph.NewRegistry()
	registry.Register("produce", func(ctx context.Context, call domain.Call) (interface{}, error) {
		calls.Add(1)
		return map[string]interface{}{"field": "value"}, nil
	})
	registry.Register("pair", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return []interface{}{call.Args[0], call.Args[1]}, nil
	})

	first := graph.Attr(graph.Defer("produce"), "field")
	second := graph.Attr(graph.Defer("produce"), "field")
	root := graph.Defer("pair", first, second)

	value, err := New(registry, nil).Evaluate(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"value", "value"}, value)
	assert.Equal(t, int64(1), calls.Load())
}

func TestProjectionAccessors(t *testing.T) {
	type payload struct {
		Args []interface{}
	}

	registry := graph.NewRegistry()
	registry.Register("list", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return []interface{}{float64(42), float64(43)}, nil
	})
	registry.Register("object", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return map[string]interface{}{"name": "glade"}, nil
	})
	registry.Register("struct", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return &payload{Args: []interface{}{float64(42)}}, nil
	})

	tests := []struct {
		name string
		node *domain.TaskNode
		want interface{}
	}{
		{"index into slice", graph.Index(graph.Defer("list"), 0), float64(42)},
		{"attribute on map", graph.Attr(graph.Defer("object"), "name"), "glade"},
		{"attribute on struct", graph.Attr(graph.Defer("struct"), "Args"), []interface{}{float64(42)}},
		{"index after attribute", graph.Index(graph.Attr(graph.Defer("struct"), "Args"), 0), float64(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := New(registry, nil).Evaluate(context.Background(), tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, value)
		})
	}
}

func TestProjectionErrors(t *testing.T) {
	registry := graph.NewRegistry()
	registry.Register("list", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return []interface{}{float64(1)}, nil
	})
	registry.Register("object", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return map[string]interface{}{}, nil
	})

	_, err := New(registry, nil).Evaluate(context.Background(), graph.Index(graph.Defer("list"), 5))
	assert.ErrorContains(t, err, "out of range")

	_, err = New(registry, nil).Evaluate(context.Background(), graph.Attr(graph.Defer("object"), "missing"))
	assert.ErrorContains(t, err, "no attribute")
}

func TestEvaluationErrorPropagatesUnmodified(t *testing.T) {
	boom := errors.New("boom")
	registry := graph.NewRegistry()
	registry.Register("explode", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return nil, boom
	})
	registry.Register("identity", identity)

	_, err := New(registry, nil).Evaluate(context.Background(), graph.Defer("identity", graph.Defer("explode")))
	assert.ErrorIs(t, err, boom)
}

func TestUnregisteredOperation(t *testing.T) {
	_, err := New(graph.NewRegistry(), nil).Evaluate(context.Background(), graph.Defer("nope"))
	assert.True(t, domain.IsOpNotRegistered(err))
}

func TestSessionReachesOperations(t *testing.T) {
	registry := graph.NewRegistry()
	registry.Register("from-session", func(ctx context.Context, call domain.Call) (interface{}, error) {
		return call.Session["answer"], nil
	})

	value, err := New(registry, map[string]interface{}{"answer": 42}).
		Evaluate(context.Background(), graph.Defer("from-session"))
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestBuildErrorSurfacesAtEvaluation(t *testing.T) {
	registry := graph.NewRegistry()
	node := graph.Defer("f", make(chan int))

	_, err := New(registry, nil).Evaluate(context.Background(), node)
	assert.Error(t, err)
}
