package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPendingRef_NotBound tests that a freshly constructed pending ref
// reports its identifier and is not bound.
func TestPendingRef_NotBound(t *testing.T) {
	id := Identifier{Creator: "alice", OpNumber: 1}
	r := PendingRef(id)

	assert.False(t, r.IsBound())
	assert.Equal(t, id, r.Identifier())
}

// TestBoundRef_IsBound tests that a ref constructed already-bound reports
// the operation it wraps.
func TestBoundRef_IsBound(t *testing.T) {
	op := NewDelete(Identifier{Creator: "alice", OpNumber: 2}, PendingRef(Identifier{Creator: "bob", OpNumber: 1}))
	r := BoundRef(op)

	assert.True(t, r.IsBound())
	assert.Same(t, op, r.Operation())
}

// TestRef_Resolve_BindsPending tests that Resolve binds a pending ref.
func TestRef_Resolve_BindsPending(t *testing.T) {
	id := Identifier{Creator: "alice", OpNumber: 1}
	r := PendingRef(id)

	op := NewDelete(Identifier{Creator: "bob", OpNumber: 1}, PendingRef(id))
	resolved := r.Resolve(op)

	assert.True(t, resolved.IsBound())
	assert.Same(t, op, resolved.Operation())
}

// TestRef_Resolve_NoopWhenAlreadyBound tests that Resolve never rebinds an
// already-bound ref, preserving the original resolved operation.
func TestRef_Resolve_NoopWhenAlreadyBound(t *testing.T) {
	first := NewDelete(Identifier{Creator: "a", OpNumber: 1}, PendingRef(Identifier{Creator: "x", OpNumber: 1}))
	second := NewDelete(Identifier{Creator: "a", OpNumber: 2}, PendingRef(Identifier{Creator: "x", OpNumber: 1}))

	r := BoundRef(first)
	resolved := r.Resolve(second)

	assert.Same(t, first, resolved.Operation(), "already-bound ref must not be overwritten")
}
