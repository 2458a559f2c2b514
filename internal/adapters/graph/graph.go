// Package graph builds deferred computation graphs. Building never
// executes user code; nodes carry a deterministic structural identity
// so that shared subgraphs evaluate once.
package graph

import (
	"fmt"
	"reflect"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

// Defer wraps an operation for later execution. op is either the name
// of a registered operation (a string) or a plain value, in which case
// the node evaluates to that value unchanged and args are ignored.
// Passing a function directly is a build error: operations must be
// registered by name so a record can reference them from another
// process.
func Defer(op interface{}, args ...interface{}) *domain.TaskNode {
	return DeferKw(op, args, nil)
}

// DeferKw is Defer with keyword arguments.
func DeferKw(op interface{}, args []interface{}, kwargs map[string]interface{}) *domain.TaskNode {
	var buildErr error

	values := make([]domain.Value, 0, len(args))
	for i, arg := range args {
		value, err := toValue(arg)
		if err != nil && buildErr == nil {
			buildErr = fmt.Errorf("argument %d: %w", i, err)
		}
		values = append(values, value)
	}

	var kwValues map[string]domain.Value
	if len(kwargs) > 0 {
		kwValues = make(map[string]domain.Value, len(kwargs))
		for name, arg := range kwargs {
			value, err := toValue(arg)
			if err != nil && buildErr == nil {
				buildErr = fmt.Errorf("keyword %s: %w", name, err)
			}
			kwValues[name] = value
		}
	}

	var node *domain.TaskNode
	switch v := op.(type) {
	case string:
		node = domain.NewApplication(v, nil, false, values, kwValues)
	default:
		if isInvocable(op) {
			node = domain.NewApplication("", nil, false, values, kwValues)
			node.SetBuildErr(fmt.Errorf("operation %T is a function; register it by name instead", op))
			break
		}
		literal, err := xjson.Marshal(op)
		if err != nil && buildErr == nil {
			buildErr = fmt.Errorf("literal operation: %w", err)
		}
		node = domain.NewApplication("", literal, true, values, kwValues)
	}

	if buildErr != nil {
		node.SetBuildErr(buildErr)
	}
	return node
}

// Literal wraps an already-computed value as a node, so non-callable
// data threads through a graph uniformly.
func Literal(value interface{}) *domain.TaskNode {
	return DeferKw(value, nil, nil)
}

// Attr defers an attribute access on node's eventual value. Identical
// accesses on structurally identical parents share one identity, even
// when constructed independently.
func Attr(node *domain.TaskNode, name string) *domain.TaskNode {
	return domain.NewProjection(node, domain.Accessor{
		Kind: domain.AccessAttribute,
		Name: name,
	})
}

// Index defers an index or key access on node's eventual value.
func Index(node *domain.TaskNode, key interface{}) *domain.TaskNode {
	return domain.NewProjection(node, domain.Accessor{
		Kind: domain.AccessIndex,
		Key:  key,
	})
}

func toValue(arg interface{}) (domain.Value, error) {
	if node, ok := arg.(*domain.TaskNode); ok {
		if err := node.BuildErr(); err != nil {
			return domain.Value{Node: node}, err
		}
		return domain.Value{Node: node}, nil
	}

	literal, err := xjson.Marshal(arg)
	if err != nil {
		return domain.Value{}, err
	}
	return domain.Value{Literal: literal}, nil
}

func isInvocable(v interface{}) bool {
	if v == nil {
		return false
	}
	return reflect.TypeOf(v).Kind() == reflect.Func
}
