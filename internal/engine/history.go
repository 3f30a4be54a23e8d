package engine

import (
	"sync"

	"github.com/roach88/repcore/internal/ir"
)

// HistoryBuffer is the engine's permanent Identifier -> Operation store
// (spec §3.6). Operations are created, registered, executed, and never
// destroyed; registering the same identifier twice keeps the first
// registration.
//
// It also tracks a reverse index from a not-yet-registered identifier to
// the operations blocked on it, so the engine can retry exactly the
// operations that became runnable when a new one is registered, rather
// than rescanning everything pending (spec §5).
type HistoryBuffer struct {
	mu      sync.Mutex
	ops     map[ir.Identifier]ir.Operation
	waiters map[ir.Identifier][]ir.Operation
}

// NewHistoryBuffer constructs an empty buffer.
func NewHistoryBuffer() *HistoryBuffer {
	return &HistoryBuffer{
		ops:     make(map[ir.Identifier]ir.Operation),
		waiters: make(map[ir.Identifier][]ir.Operation),
	}
}

// Get looks up an operation by identity. Presence in the buffer, not
// execution, is what makes a reference resolvable (spec §4.1).
func (h *HistoryBuffer) Get(id ir.Identifier) (ir.Operation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	op, ok := h.ops[id]
	return op, ok
}

// Put registers op, unless an operation with the same identity is already
// registered. It returns the canonical stored operation for op's identity
// (either op itself, once inserted, or the pre-existing one), the
// operations that were waiting on that identity becoming registered, and
// whether op was newly inserted.
//
// The canonical-operation return matters for re-delivery: the transport
// may deliver the same wire operation more than once (spec §1/§6), and
// each delivery decodes to a fresh object sharing the original's
// identity. Callers must execute the stored operation, not the fresh
// duplicate, so that re-delivery can never apply a variant's integration
// effect (e.g. appending to a Delete target's DeletedBy) a second time.
func (h *HistoryBuffer) Put(op ir.Operation) (stored ir.Operation, woken []ir.Operation, inserted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := op.Identity()
	if existing, exists := h.ops[id]; exists {
		return existing, nil, false
	}
	h.ops[id] = op

	woken = h.waiters[id]
	delete(h.waiters, id)
	return op, woken, true
}

// WaitOn records that op is blocked on id not yet being registered. It is
// idempotent for a given (id, op) pair.
func (h *HistoryBuffer) WaitOn(id ir.Identifier, op ir.Operation) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, existing := range h.waiters[id] {
		if existing.Identity().Equal(op.Identity()) {
			return
		}
	}
	h.waiters[id] = append(h.waiters[id], op)
}

// Len reports how many operations are registered, for diagnostics.
func (h *HistoryBuffer) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ops)
}
