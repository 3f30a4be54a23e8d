package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
)

// TestScenario1_SequentialInsert is spec §8 scenario 1: a single peer
// issues x, y, z one after another, each originating from the previous.
// The CL reads HEAD x y z TAIL, and each insert's origin is literally its
// predecessor.
func TestScenario1_SequentialInsert(t *testing.T) {
	h := New("A")
	defer h.Close()

	head := h.Peer("A").Engine.Head().Identity()

	x, err := h.InsertAfter("A", head, "x")
	require.NoError(t, err)
	y, err := h.InsertAfter("A", x.Identity(), "y")
	require.NoError(t, err)
	z, err := h.InsertAfter("A", y.Identity(), "z")
	require.NoError(t, err)

	assert.Equal(t, []string{"x", "y", "z"}, h.VisibleContent("A"))
	assert.Equal(t, head, x.Origin.Operation().Identity())
	assert.Equal(t, x.Identity(), y.Origin.Operation().Identity())
	assert.Equal(t, y.Identity(), z.Origin.Operation().Identity())
}

// TestScenario2_ConcurrentInsertSameOrigin_LesserCreatorFirst is spec §8
// scenario 2: two peers concurrently insert with the same origin (HEAD);
// the lesser creator sorts first regardless of delivery order. Both
// inserts are built on their own replica before either is broadcast, so
// neither peer has observed the other's op at construction time — true
// concurrency, not a causal chain.
func TestScenario2_ConcurrentInsertSameOrigin_LesserCreatorFirst(t *testing.T) {
	h := New("alice", "bob") // "alice" < "bob" lexicographically
	defer h.Close()

	head := h.Peer("alice").Engine.Head().Identity()

	a, err := h.BuildInsertAfter("alice", head, "a")
	require.NoError(t, err)
	b, err := h.BuildInsertAfter("bob", head, "b")
	require.NoError(t, err)
	require.NoError(t, h.Broadcast("alice", a))
	require.NoError(t, h.Broadcast("bob", b))

	want := []string{"a", "b"}
	assert.Equal(t, want, h.VisibleContent("alice"))
	assert.Equal(t, want, h.VisibleContent("bob"), "both replicas must converge on the same order")
}

// TestScenario3_ConcurrentInsertSameOrigin_SwappedCreatorOrder is spec §8
// scenario 3: the same setup as scenario 2 with the creator relationship
// reversed — the peer with the lesser creator id still sorts first, which
// now puts "b" ahead of "a".
func TestScenario3_ConcurrentInsertSameOrigin_SwappedCreatorOrder(t *testing.T) {
	h := New("amy", "zed") // "amy" < "zed"
	defer h.Close()

	head := h.Peer("amy").Engine.Head().Identity()

	a, err := h.BuildInsertAfter("zed", head, "a")
	require.NoError(t, err)
	b, err := h.BuildInsertAfter("amy", head, "b")
	require.NoError(t, err)
	require.NoError(t, h.Broadcast("zed", a))
	require.NoError(t, h.Broadcast("amy", b))

	want := []string{"b", "a"}
	assert.Equal(t, want, h.VisibleContent("amy"))
	assert.Equal(t, want, h.VisibleContent("zed"))
}

// TestScenario4_InterleavedOrigins is spec §8 scenario 4: A inserts a1
// between HEAD/TAIL; B concurrently inserts b1 with a greater creator
// (neither has observed the other's op yet); once both converge, A
// extends its own subtree with a2 (origin a1) and B extends its own with
// b2 (origin b1) — each sequential, since a2/b2 causally depend on the
// already-converged a1/b1. A's entire subtree precedes B's regardless of
// delivery order, because a2's origin (a1) precedes b1.
func TestScenario4_InterleavedOrigins(t *testing.T) {
	h := New("alice", "bob") // alice.creator < bob.creator
	defer h.Close()

	head := h.Peer("alice").Engine.Head().Identity()

	a1, err := h.BuildInsertAfter("alice", head, "a1")
	require.NoError(t, err)
	b1, err := h.BuildInsertAfter("bob", head, "b1")
	require.NoError(t, err)
	require.NoError(t, h.Broadcast("alice", a1))
	require.NoError(t, h.Broadcast("bob", b1))

	a2, err := h.InsertAfter("alice", a1.Identity(), "a2")
	require.NoError(t, err)
	b2, err := h.InsertAfter("bob", b1.Identity(), "b2")
	require.NoError(t, err)

	want := []string{"a1", "a2", "b1", "b2"}
	assert.Equal(t, want, h.VisibleContent("alice"))
	assert.Equal(t, want, h.VisibleContent("bob"))
}

// TestScenario5_DeleteThenReDeliver is spec §8 scenario 5: A inserts x;
// B deletes x; a third replica C receives the delete before the insert.
// C must defer the delete, integrate x once it arrives, then apply the
// already-pending delete, ending up tombstoned exactly like A and B.
func TestScenario5_DeleteThenReDeliver(t *testing.T) {
	h := New("A", "B")
	defer h.Close()

	head := h.Peer("A").Engine.Head().Identity()
	x, err := h.InsertAfter("A", head, "x")
	require.NoError(t, err)
	xRaw, err := codec.EncodeBytes(x)
	require.NoError(t, err)

	del, err := h.DeleteOp("B", x.Identity())
	require.NoError(t, err)
	delRaw, err := codec.EncodeBytes(del)
	require.NoError(t, err)

	// C never subscribes to the harness bus: its delivery order is
	// driven by hand so the delete genuinely arrives first.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := engine.New(engine.WithPeerID("C"))
	go c.Run(ctx)

	err = c.Receive(delRaw)
	require.ErrorIs(t, err, engine.ErrDeferred, "delete must defer: its target isn't registered on C yet")
	cDel, ok := c.History().Get(del.Identity())
	require.True(t, ok, "deferred delete is still registered on C")
	assert.False(t, cDel.Executed())

	require.NoError(t, c.Receive(xRaw))

	assert.Empty(t, c.VisibleSequence(), "x must be tombstoned on C once the deferred delete resolves")
	assert.Empty(t, h.VisibleContent("A"))
	assert.Empty(t, h.VisibleContent("B"))
}

// TestScenario6_OutOfOrderOriginNotAdjacent is spec §8 scenario 6: A
// inserts x (origin HEAD) and B concurrently inserts y (origin HEAD,
// B's creator less than A's, so y sorts left of x) — built before either
// is broadcast, so both genuinely race on the same [HEAD,TAIL) bracket.
// Once converged, A inserts z with origin x. Delivered to C in the order
// z, y, x: C must defer z until x arrives, landing on HEAD y x z TAIL.
func TestScenario6_OutOfOrderOriginNotAdjacent(t *testing.T) {
	h := New("amy", "zed") // amy.creator < zed.creator, so amy's insert wins the shared-origin tie
	defer h.Close()

	head := h.Peer("zed").Engine.Head().Identity()

	// Each message is encoded as issued, the way Broadcast sends it:
	// encoding reads current CL neighbors, so re-encoding x or y after
	// later splices would carry neighbors that did not exist at issuance.
	x, err := h.BuildInsertAfter("zed", head, "x")
	require.NoError(t, err)
	xRaw, err := codec.EncodeBytes(x)
	require.NoError(t, err)
	y, err := h.BuildInsertAfter("amy", head, "y")
	require.NoError(t, err)
	yRaw, err := codec.EncodeBytes(y)
	require.NoError(t, err)
	require.NoError(t, h.Broadcast("zed", x))
	require.NoError(t, h.Broadcast("amy", y))

	z, err := h.InsertAfter("zed", x.Identity(), "z")
	require.NoError(t, err)

	zRaw, err := codec.EncodeBytes(z)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := engine.New(engine.WithPeerID("C"))
	go c.Run(ctx)

	err = c.Receive(zRaw)
	require.ErrorIs(t, err, engine.ErrDeferred, "z must defer: its origin x isn't registered on C yet")

	require.NoError(t, c.Receive(yRaw))
	require.NoError(t, c.Receive(xRaw))

	assert.Equal(t, []string{"y", "x", "z"}, visibleContentOf(c))
}

// visibleContentOf reads a standalone engine's visible sequence as
// ImmutableObject payload strings, mirroring Harness.VisibleContent for
// the scenarios (5, 6) that drive a replica outside any Harness.
func visibleContentOf(e *engine.Engine) []string {
	var out []string
	for _, op := range e.VisibleSequence() {
		if obj, ok := op.(*ir.ImmutableObject); ok {
			out = append(out, ContentString(obj))
		}
	}
	return out
}
