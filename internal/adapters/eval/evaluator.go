// Package eval computes the value of a task graph inside one worker
// process. Every node is evaluated at most once per Evaluator through
// a memo table keyed by structural identity; the evaluator performs no
// error recovery, failures propagate to the worker boundary unchanged.
package eval

import (
	"context"
	"fmt"
	"reflect"

	"github.com/eleven-am/glade/internal/domain"
	"github.com/eleven-am/glade/internal/xjson"
)

// Resolver looks up registered operations by name.
type Resolver interface {
	Lookup(name string) (domain.OpFunc, error)
}

type Evaluator struct {
	resolver Resolver
	session  map[string]interface{}
	memo     map[string]interface{}
}

// New builds an Evaluator with a fresh memo table. session may be nil.
func New(resolver Resolver, session map[string]interface{}) *Evaluator {
	return &Evaluator{
		resolver: resolver,
		session:  session,
		memo:     make(map[string]interface{}),
	}
}

// Evaluate walks node's dependencies in dependency order and returns
// its value. Shared subgraphs are computed once for the lifetime of
// the Evaluator, however deep or diamond-shaped the graph is.
func (e *Evaluator) Evaluate(ctx context.Context, node *domain.TaskNode) (interface{}, error) {
	if node == nil {
		return nil, nil
	}
	if err := node.BuildErr(); err != nil {
		return nil, err
	}

	if value, ok := e.memo[node.ID]; ok {
		return value, nil
	}

	var (
		value interface{}
		err   error
	)
	switch node.Kind {
	case domain.KindProjection:
		value, err = e.evaluateProjection(ctx, node)
	case domain.KindApplication:
		value, err = e.evaluateApplication(ctx, node)
	default:
		err = fmt.Errorf("unknown node kind %q", node.Kind)
	}
	if err != nil {
		return nil, err
	}

	e.memo[node.ID] = value
	return value, nil
}

func (e *Evaluator) evaluateProjection(ctx context.Context, node *domain.TaskNode) (interface{}, error) {
	parent, err := e.Evaluate(ctx, node.Parent)
	if err != nil {
		return nil, err
	}
	return applyAccessor(parent, *node.Accessor)
}

func (e *Evaluator) evaluateApplication(ctx context.Context, node *domain.TaskNode) (interface{}, error) {
	if node.IsLiteral {
		var value interface{}
		if len(node.Literal) > 0 {
			if err := xjson.Unmarshal(node.Literal, &value); err != nil {
				return nil, err
			}
		}
		return value, nil
	}

	args := make([]interface{}, 0, len(node.Args))
	for _, arg := range node.Args {
		value, err := e.evaluateValue(ctx, arg)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}

	var kwargs map[string]interface{}
	if len(node.Kwargs) > 0 {
		kwargs = make(map[string]interface{}, len(node.Kwargs))
		for name, arg := range node.Kwargs {
			value, err := e.evaluateValue(ctx, arg)
			if err != nil {
				return nil, err
			}
			kwargs[name] = value
		}
	}

	fn, err := e.resolver.Lookup(node.Op)
	if err != nil {
		return nil, err
	}

	return fn(ctx, domain.Call{
		Args:    args,
		Kwargs:  kwargs,
		Session: e.session,
	})
}

func (e *Evaluator) evaluateValue(ctx context.Context, value domain.Value) (interface{}, error) {
	if value.Node != nil {
		return e.Evaluate(ctx, value.Node)
	}
	var out interface{}
	if len(value.Literal) > 0 {
		if err := xjson.Unmarshal(value.Literal, &out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// applyAccessor resolves an attribute or index access on a concrete
// value. Decoded JSON shapes (map[string]interface{}, []interface{})
// are handled directly; anything else goes through reflection so that
// operations running in-process can return native structs and slices.
func applyAccessor(value interface{}, acc domain.Accessor) (interface{}, error) {
	switch acc.Kind {
	case domain.AccessAttribute:
		return accessAttribute(value, acc.Name)
	case domain.AccessIndex:
		return accessIndex(value, acc.Key)
	default:
		return nil, fmt.Errorf("unknown accessor kind %q", acc.Kind)
	}
}

func accessAttribute(value interface{}, name string) (interface{}, error) {
	if m, ok := value.(map[string]interface{}); ok {
		if v, ok := m[name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("value has no attribute %q", name)
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot access attribute %q on nil", name)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot access attribute %q on %T", name, value)
	}

	field := rv.FieldByName(name)
	if !field.IsValid() || !field.CanInterface() {
		return nil, fmt.Errorf("value of type %T has no attribute %q", value, name)
	}
	return field.Interface(), nil
}

func accessIndex(value interface{}, key interface{}) (interface{}, error) {
	if items, ok := value.([]interface{}); ok {
		idx, err := toIndex(key)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(items) {
			return nil, fmt.Errorf("index %d out of range (len %d)", idx, len(items))
		}
		return items[idx], nil
	}
	if m, ok := value.(map[string]interface{}); ok {
		name, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("cannot index map with key %v (%T)", key, key)
		}
		if v, ok := m[name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("value has no key %q", name)
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot index nil value")
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		idx, err := toIndex(key)
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= rv.Len() {
			return nil, fmt.Errorf("index %d out of range (len %d)", idx, rv.Len())
		}
		return rv.Index(idx).Interface(), nil
	case reflect.Map:
		kv := reflect.ValueOf(key)
		if !kv.IsValid() || !kv.Type().AssignableTo(rv.Type().Key()) {
			return nil, fmt.Errorf("cannot index %T with key %v (%T)", value, key, key)
		}
		item := rv.MapIndex(kv)
		if !item.IsValid() {
			return nil, fmt.Errorf("value has no key %v", key)
		}
		return item.Interface(), nil
	default:
		return nil, fmt.Errorf("cannot index value of type %T", value)
	}
}

// toIndex normalizes the numeric shapes a key can take after a JSON
// round trip.
func toIndex(key interface{}) (int, error) {
	switch k := key.(type) {
	case int:
		return k, nil
	case int64:
		return int(k), nil
	case float64:
		return int(k), nil
	default:
		return 0, fmt.Errorf("index key %v (%T) is not an integer", key, key)
	}
}
