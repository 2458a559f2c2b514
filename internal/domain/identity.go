package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/eleven-am/glade/internal/xjson"
)

// Structural identities are sha256 over length-prefixed canonical
// fields. Two application nodes with the same operation, the same
// argument identities in order, and the same kwargs agree on their ID;
// a projection's ID depends only on its parent's ID and the accessor,
// so equal accessor chains from equal roots collapse to one identity.

func applicationID(op string, literal xjson.RawMessage, isLiteral bool, args []Value, kwargs map[string]Value) string {
	h := newIdentityHasher()
	h.field([]byte("application"))
	if isLiteral {
		h.field([]byte("literal"))
		h.field(literal)
	} else {
		h.field([]byte("op"))
		h.field([]byte(op))
	}

	h.field([]byte{byte(len(args))})
	for _, arg := range args {
		h.field([]byte(valueIdentity(arg)))
	}

	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	h.field([]byte{byte(len(names))})
	for _, name := range names {
		h.field([]byte(name))
		h.field([]byte(valueIdentity(kwargs[name])))
	}

	return h.sum()
}

func projectionID(parentID string, acc Accessor) string {
	h := newIdentityHasher()
	h.field([]byte("projection"))
	h.field([]byte(parentID))
	h.field([]byte(acc.Kind))
	if acc.Kind == AccessAttribute {
		h.field([]byte(acc.Name))
	} else {
		h.field([]byte(fmt.Sprintf("%v", acc.Key)))
	}
	return h.sum()
}

func valueIdentity(v Value) string {
	if v.Node != nil {
		return "node:" + v.Node.ID
	}
	return "literal:" + string(v.Literal)
}

// NewApplication builds an application node with its structural
// identity computed. Literal arguments must already be canonical JSON.
func NewApplication(op string, literal xjson.RawMessage, isLiteral bool, args []Value, kwargs map[string]Value) *TaskNode {
	return &TaskNode{
		Kind:      KindApplication,
		ID:        applicationID(op, literal, isLiteral, args, kwargs),
		Op:        op,
		Literal:   literal,
		IsLiteral: isLiteral,
		Args:      args,
		Kwargs:    kwargs,
	}
}

// NewProjection builds a projection node over parent.
func NewProjection(parent *TaskNode, acc Accessor) *TaskNode {
	node := &TaskNode{
		Kind:     KindProjection,
		ID:       projectionID(parent.ID, acc),
		Parent:   parent,
		Accessor: &acc,
	}
	node.buildErr = parent.buildErr
	return node
}

type identityHasher struct {
	w hash.Hash
}

func newIdentityHasher() *identityHasher {
	return &identityHasher{w: sha256.New()}
}

// field writes data length-prefixed so adjacent fields cannot alias.
func (h *identityHasher) field(data []byte) {
	length := uint64(len(data))
	h.w.Write([]byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	})
	h.w.Write(data)
}

func (h *identityHasher) sum() string {
	return hex.EncodeToString(h.w.Sum(nil))
}
