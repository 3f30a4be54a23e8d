package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(creator string, n uint64) Identifier {
	return Identifier{Creator: PeerID(creator), OpNumber: n}
}

// TestInsert_PendingFields_AllUnresolved tests that a freshly constructed
// Insert reports all three reference fields as pending.
func TestInsert_PendingFields_AllUnresolved(t *testing.T) {
	ins := NewInsert(id("alice", 1), PendingRef(HeadIdentifier), PendingRef(HeadIdentifier), PendingRef(TailIdentifier))

	pending := ins.PendingFields()
	require.Len(t, pending, 3, "origin, prev, and next are each tracked independently")
	assert.Equal(t, HeadIdentifier, pending["origin"])
	assert.Equal(t, HeadIdentifier, pending["prev"])
	assert.Equal(t, TailIdentifier, pending["next"])
}

// TestInsert_ResolveField_ClearsPending tests that resolving a field
// removes it from PendingFields.
func TestInsert_ResolveField_ClearsPending(t *testing.T) {
	ins := NewInsert(id("alice", 1), PendingRef(HeadIdentifier), PendingRef(HeadIdentifier), PendingRef(TailIdentifier))
	head := NewDelimiter(HeadIdentifier, nil, nil)

	ins.ResolveField("origin", head)
	ins.ResolveField("prev", head)

	pending := ins.PendingFields()
	assert.Len(t, pending, 1)
	assert.Equal(t, TailIdentifier, pending["next"])
	assert.True(t, ins.Origin.IsBound())
	assert.Same(t, head, ins.Origin.Operation())
}

// TestInsert_ResolveField_UnknownFieldIsNoop tests that resolving a
// field name that doesn't exist on Insert has no effect.
func TestInsert_ResolveField_UnknownFieldIsNoop(t *testing.T) {
	ins := NewInsert(id("alice", 1), PendingRef(HeadIdentifier), PendingRef(HeadIdentifier), PendingRef(TailIdentifier))
	ins.ResolveField("deletes", NewDelimiter(HeadIdentifier, nil, nil))

	assert.Len(t, ins.PendingFields(), 3)
}

// TestDelete_PendingFields tests Delete's single reference field.
func TestDelete_PendingFields(t *testing.T) {
	target := id("alice", 1)
	del := NewDelete(id("bob", 1), PendingRef(target))

	pending := del.PendingFields()
	require.Len(t, pending, 1)
	assert.Equal(t, target, pending["deletes"])

	ins := NewInsert(target, PendingRef(HeadIdentifier), PendingRef(HeadIdentifier), PendingRef(TailIdentifier))
	del.ResolveField("deletes", ins)
	assert.Empty(t, del.PendingFields())
}

// TestDelimiter_PendingFields_NilSideNeverPending tests that a structurally
// absent side (HEAD's PrevCL, TAIL's NextCL) is never reported as pending.
func TestDelimiter_PendingFields_NilSideNeverPending(t *testing.T) {
	next := PendingRef(TailIdentifier)
	head := NewDelimiter(HeadIdentifier, nil, &next)

	pending := head.PendingFields()
	require.Len(t, pending, 1)
	assert.Equal(t, TailIdentifier, pending["next"])
}

// TestDelimiter_ResolveField_NilSideIsNoop tests resolving a field that is
// structurally absent (nil pointer) does nothing and does not panic.
func TestDelimiter_ResolveField_NilSideIsNoop(t *testing.T) {
	head := NewDelimiter(HeadIdentifier, nil, nil)
	assert.NotPanics(t, func() {
		head.ResolveField("prev", NewDelimiter(TailIdentifier, nil, nil))
	})
	assert.Nil(t, head.PrevCL)
}

// TestInsert_Tombstoned tests the visibility invariant: an insert becomes
// tombstoned once at least one Delete targets it, and stays tombstoned on
// further deletes.
func TestInsert_Tombstoned(t *testing.T) {
	ins := NewInsert(id("alice", 1), PendingRef(HeadIdentifier), PendingRef(HeadIdentifier), PendingRef(TailIdentifier))
	assert.False(t, ins.Tombstoned())

	del1 := NewDelete(id("bob", 1), BoundRef(ins))
	ins.DeletedBy = append(ins.DeletedBy, del1)
	assert.True(t, ins.Tombstoned())

	del2 := NewDelete(id("carol", 1), BoundRef(ins))
	ins.DeletedBy = append(ins.DeletedBy, del2)
	assert.True(t, ins.Tombstoned())
	assert.Len(t, ins.DeletedBy, 2)
}

// TestMeta_CallEvent_BubblesToParent tests that an event invokes the
// operation's own listeners, then the parent's, in that order.
func TestMeta_CallEvent_BubblesToParent(t *testing.T) {
	parent := NewDelete(id("alice", 1), PendingRef(HeadIdentifier))
	child := NewDelete(id("alice", 2), PendingRef(HeadIdentifier))
	child.SetParent(parent)

	var order []string
	child.On("fired", func(args ...any) { order = append(order, "child") })
	parent.On("fired", func(args ...any) { order = append(order, "parent") })

	child.CallEvent("fired")

	assert.Equal(t, []string{"child", "parent"}, order)
}

// TestMeta_MarkExecuted_Idempotent tests that Executed/MarkExecuted behave
// as a one-way latch.
func TestMeta_MarkExecuted_Idempotent(t *testing.T) {
	del := NewDelete(id("alice", 1), PendingRef(HeadIdentifier))
	assert.False(t, del.Executed())

	del.MarkExecuted()
	del.MarkExecuted()
	assert.True(t, del.Executed())
}
