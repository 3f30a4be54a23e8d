package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/engine"
	"github.com/roach88/repcore/internal/ir"
	"github.com/roach88/repcore/internal/transport"
)

// Peer is one replica in a scenario: its engine plus the identity the
// harness addresses it by.
type Peer struct {
	Name   ir.PeerID
	Engine *engine.Engine
}

// Harness wires a fixed set of named replicas together over a single
// internal/transport.Bus, exactly the way internal/cli's connect command
// does for the "connect" demo — every Peer's engine runs its own
// single-writer loop (spec §5) on a background goroutine, subscribed to
// the shared bus under its name.
type Harness struct {
	ctx    context.Context
	cancel context.CancelFunc
	bus    *transport.Bus
	peers  map[string]*Peer
	order  []string
}

// New starts one engine per name, all sharing one bus. Engine logging is
// discarded (scenarios assert on CL state, not log output).
func New(names ...string) *Harness {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Harness{
		ctx:    ctx,
		cancel: cancel,
		bus:    transport.NewBus(),
		peers:  make(map[string]*Peer, len(names)),
		order:  append([]string(nil), names...),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, name := range names {
		e := engine.New(engine.WithPeerID(ir.PeerID(name)), engine.WithLogger(logger))
		go e.Run(ctx)
		h.peers[name] = &Peer{Name: ir.PeerID(name), Engine: e}
		h.bus.Subscribe(name, e)
	}
	return h
}

// Close stops every peer's Run loop. Scenarios running as subtests should
// defer this.
func (h *Harness) Close() {
	h.cancel()
}

// Peer returns the named replica, panicking if it was never registered —
// a scenario referencing an unknown peer name is a test-authoring bug,
// not a runtime condition to handle gracefully.
func (h *Harness) Peer(name string) *Peer {
	p, ok := h.peers[name]
	if !ok {
		panic(fmt.Sprintf("harness: no such peer %q", name))
	}
	return p
}

// Peers returns every replica in registration order.
func (h *Harness) Peers() []*Peer {
	out := make([]*Peer, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.peers[name])
	}
	return out
}

// Issue submits op on peerName's own engine, then publishes its encoded
// form on the shared bus so every other peer observes it too. The bus is
// a single fully-connected hub (spec §1's external transport stands in
// for here) — one Publish already reaches every other subscriber, so
// only locally issued operations are ever pushed onto it; a peer never
// needs to re-publish something it received from elsewhere.
//
// Submit's own deferred/fatal-vs-nil distinction (spec §4.2) is returned
// unchanged: a deferred local issuance is a test-authoring bug (an insert
// referencing a neighbor its own engine hasn't registered yet cannot
// happen under normal local construction), but the harness does not paper
// over it.
func (h *Harness) Issue(peerName string, op ir.Operation) error {
	p := h.Peer(peerName)
	if err := p.Engine.Submit(op); err != nil {
		return err
	}
	raw, err := codec.EncodeBytes(op)
	if err != nil {
		return fmt.Errorf("harness: encode issued op: %w", err)
	}
	h.bus.Publish(peerName, raw)
	return nil
}

// Deliver submits raw directly to peerName's engine without going through
// the bus, simulating a transport that handed this replica one specific
// message out of order — the mechanism spec §8's deferred-delivery
// scenarios (5 and 6) exercise directly.
func (h *Harness) Deliver(peerName string, raw []byte) error {
	return h.Peer(peerName).Engine.Receive(raw)
}

// InsertAfter builds and issues an ImmutableObject on peerName's engine,
// with origin set to the operation identified by afterID (which must
// already be registered on peerName's own engine — true for anything
// peerName itself created or has already received). prevCL is seeded to
// origin itself and nextCL to origin's current next neighbor, the
// sender's own search bracket that the integration algorithm
// (internal/engine/integration.go) walks from.
func (h *Harness) InsertAfter(peerName string, afterID ir.Identifier, content string) (*ir.ImmutableObject, error) {
	obj, err := h.BuildInsertAfter(peerName, afterID, content)
	if err != nil {
		return nil, err
	}
	if err := h.Broadcast(peerName, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// BuildInsertAfter constructs an ImmutableObject after afterID and submits
// it on peerName's own engine, but does not publish it on the bus. Use it
// together with Broadcast to construct two peers' concurrent inserts
// before either observes the other's — InsertAfter's combined
// build-then-broadcast would let the second call see the first peer's op
// already delivered, collapsing genuine concurrency into a causal chain.
func (h *Harness) BuildInsertAfter(peerName string, afterID ir.Identifier, content string) (*ir.ImmutableObject, error) {
	p := h.Peer(peerName)
	origin, ok := p.Engine.History().Get(afterID)
	if !ok {
		return nil, fmt.Errorf("harness: peer %q has no local operation %s to insert after", peerName, afterID)
	}
	next := clNeighbor(origin, true)
	if next == nil {
		return nil, fmt.Errorf("harness: operation %s has no next neighbor on peer %q", afterID, peerName)
	}

	// Content is transport-opaque (spec §3.3, §4.6) but still travels
	// inside the wire envelope's JSON body, so it must itself be valid
	// JSON; a bare string is marshaled to a JSON string literal here and
	// unmarshaled back in VisibleContent.
	encodedContent, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("harness: marshal insert content: %w", err)
	}

	obj := ir.NewImmutableObject(
		p.Engine.NextIdentifier(),
		ir.BoundRef(origin),
		ir.BoundRef(origin),
		ir.BoundRef(next),
		encodedContent,
	)
	if err := p.Engine.Submit(obj); err != nil {
		return nil, fmt.Errorf("harness: submit insert on peer %q: %w", peerName, err)
	}
	return obj, nil
}

// Broadcast encodes op and publishes it on the bus as peerName, delivering
// it to every other subscribed peer.
func (h *Harness) Broadcast(peerName string, op ir.Operation) error {
	raw, err := codec.EncodeBytes(op)
	if err != nil {
		return fmt.Errorf("harness: encode %s for broadcast: %w", op.Identity(), err)
	}
	h.bus.Publish(peerName, raw)
	return nil
}

// DeleteOp builds and issues a Delete targeting targetID on peerName's
// engine.
func (h *Harness) DeleteOp(peerName string, targetID ir.Identifier) (*ir.Delete, error) {
	p := h.Peer(peerName)
	target, ok := p.Engine.History().Get(targetID)
	if !ok {
		return nil, fmt.Errorf("harness: peer %q has no local operation %s to delete", peerName, targetID)
	}
	del := ir.NewDelete(p.Engine.NextIdentifier(), ir.BoundRef(target))
	if err := h.Issue(peerName, del); err != nil {
		return nil, err
	}
	return del, nil
}

// clNeighbor reads the current next (or previous, if next is false) CL
// link off op, across every variant that participates in the complete
// list. It is only ever called with operations already executed on the
// local engine they were read from, so the returned Ref is always bound.
func clNeighbor(op ir.Operation, next bool) ir.Operation {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		if next {
			return v.NextCL.Operation()
		}
		return v.PrevCL.Operation()
	case *ir.Insert:
		if next {
			return v.NextCL.Operation()
		}
		return v.PrevCL.Operation()
	case *ir.Delimiter:
		r := v.PrevCL
		if next {
			r = v.NextCL
		}
		if r == nil {
			return nil
		}
		return r.Operation()
	default:
		return nil
	}
}

// ContentString renders an ImmutableObject's opaque content as plain
// text, reversing the json.Marshal(string) wrapping InsertAfter applies
// (content is transport-opaque per spec §3.3/§4.6, but must itself be
// valid JSON since it rides inside the wire envelope).
func ContentString(obj *ir.ImmutableObject) string {
	var s string
	if err := json.Unmarshal(obj.Content, &s); err != nil {
		return string(obj.Content)
	}
	return s
}

// VisibleContent returns the VisibleSequence of peerName's engine
// rendered as a slice of ImmutableObject payload strings, in CL order —
// the human-readable form spec §8's scenarios describe ("HEAD a b TAIL").
func (h *Harness) VisibleContent(peerName string) []string {
	var out []string
	for _, op := range h.Peer(peerName).Engine.VisibleSequence() {
		if obj, ok := op.(*ir.ImmutableObject); ok {
			out = append(out, ContentString(obj))
		}
	}
	return out
}

// VisibleIdentities returns the VisibleSequence of peerName's engine as
// identity strings, for scenarios comparing structure rather than
// content.
func (h *Harness) VisibleIdentities(peerName string) []string {
	var out []string
	for _, op := range h.Peer(peerName).Engine.VisibleSequence() {
		out = append(out, op.Identity().String())
	}
	return out
}
