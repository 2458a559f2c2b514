package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/glade/internal/domain"
)

func TestDeferBuildsApplicationNode(t *testing.T) {
	node := Defer("add", 1, 2)

	require.NotNil(t, node)
	assert.Equal(t, domain.KindApplication, node.Kind)
	assert.Equal(t, "add", node.Op)
	assert.False(t, node.IsLiteral)
	assert.Len(t, node.Args, 2)
	assert.NotEmpty(t, node.ID)
	assert.NoError(t, node.BuildErr())
}

func TestDeferWrapsNonCallableAsLiteral(t *testing.T) {
	node := Defer(42)

	assert.Equal(t, domain.KindApplication, node.Kind)
	assert.True(t, node.IsLiteral)
	assert.JSONEq(t, "42", string(node.Literal))
	assert.NoError(t, node.BuildErr())
}

func TestDeferRejectsBareFunctions(t *testing.T) {
	fn := func(ctx context.Context, call domain.Call) (interface{}, error) { return nil, nil }
	node := Defer(fn)

	require.Error(t, node.BuildErr())
	assert.Contains(t, node.BuildErr().Error(), "register")
}

func TestStructuralIdentity(t *testing.T) {
	tests := []struct {
		name  string
		a     *domain.TaskNode
		b     *domain.TaskNode
		equal bool
	}{
		{
			name:  "same op and args",
			a:     Defer("f", 1, "x"),
			b:     Defer("f", 1, "x"),
			equal: true,
		},
		{
			name:  "different args",
			a:     Defer("f", 1),
			b:     Defer("f", 2),
			equal: false,
		},
		{
			name:  "different op",
			a:     Defer("f", 1),
			b:     Defer("g", 1),
			equal: false,
		},
		{
			name:  "kwargs order does not matter",
			a:     DeferKw("f", nil, map[string]interface{}{"a": 1, "b": 2}),
			b:     DeferKw("f", nil, map[string]interface{}{"b": 2, "a": 1}),
			equal: true,
		},
		{
			name:  "literal node vs op node",
			a:     Defer(42),
			b:     Defer("42"),
			equal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, domain.Equal(tt.a, tt.b))
			assert.Equal(t, tt.equal, tt.a.ID == tt.b.ID)
		})
	}
}

func TestProjectionEquality(t *testing.T) {
	// Identical accesses built independently from structurally equal
	// parents must share one identity, so they memoize to one slot.
	first := Attr(Defer("f", 1), "field")
	second := Attr(Defer("f", 1), "field")

	assert.True(t, domain.Equal(first, second))
	assert.Equal(t, first.ID, second.ID)

	assert.NotEqual(t, Attr(Defer("f", 1), "other").ID, first.ID)
	assert.NotEqual(t, Index(Defer("f", 1), 0).ID, Index(Defer("f", 1), 1).ID)
	assert.Equal(t, Index(Defer("f", 1), 0).ID, Index(Defer("f", 1), 0).ID)
}

func TestProjectionChainsCollapse(t *testing.T) {
	a := Index(Attr(Defer("f"), "items"), 2)
	b := Index(Attr(Defer("f"), "items"), 2)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, domain.KindProjection, a.Kind)
}

func TestNestedNodesAsArguments(t *testing.T) {
	inner := Defer("inner", 1)
	outer := Defer("outer", inner, 2)

	require.Len(t, outer.Args, 2)
	assert.NotNil(t, outer.Args[0].Node)
	assert.True(t, domain.Equal(inner, outer.Args[0].Node))
	assert.Nil(t, outer.Args[1].Node)

	same := Defer("outer", Defer("inner", 1), 2)
	assert.True(t, domain.Equal(outer, same))
}

func TestBuildErrorPropagatesThroughProjections(t *testing.T) {
	bad := Defer("f", make(chan int))
	require.Error(t, bad.BuildErr())

	projected := Attr(bad, "field")
	assert.Error(t, projected.BuildErr())
}
