// Package engine implements the single-writer execution core: reference
// resolution, the insert integration algorithm, delimiter bootstrap, and
// the event queue that serializes delivery into the CRDT history buffer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/ir"
)

// Clock abstracts wall-clock time so tests can inject a deterministic
// source (internal/testutil.DeterministicClock).
type Clock func() time.Time

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the engine's time source.
func WithClock(clock Clock) EngineOption {
	return func(e *Engine) { e.clock = clock }
}

// WithPeerID sets the local peer identity used to mint new identifiers.
func WithPeerID(peer ir.PeerID) EngineOption {
	return func(e *Engine) { e.peer = peer }
}

// WithIdentifierFloor seeds the identifier counter above startAt, for
// resuming a persisted peer (internal/store) above every identifier it
// has previously issued.
func WithIdentifierFloor(startAt uint64) EngineOption {
	return func(e *Engine) { e.identifierFloor = startAt }
}

// WithDeferralWarnThreshold sets how many times an operation may be
// deferred and re-registered before the engine logs a warning about it.
func WithDeferralWarnThreshold(n int) EngineOption {
	return func(e *Engine) { e.deferralWarnThreshold = n }
}

// inboundItem carries one operation through the single-writer queue along
// with a channel to report back the lifecycle outcome.
type inboundItem struct {
	op   ir.Operation
	done chan error
}

// Engine is the single-writer execution core described in spec §5: one
// history buffer, one identifier service, and one logical executor. All
// core mutation happens through Submit/Receive, which enqueue onto inbox
// and are drained exclusively by Run, so concurrent callers never
// interleave mutation of the CL.
type Engine struct {
	logger *slog.Logger
	clock  Clock
	peer   ir.PeerID

	identifierFloor uint64
	identifiers     *IdentifierService

	history   *HistoryBuffer
	listeners []ExecuteListener

	deferralWarnThreshold int
	deferCounts           map[ir.Identifier]int

	inbox chan inboundItem
}

// New constructs an Engine, applies opts, and bootstraps the HEAD/TAIL
// delimiters (spec §6). Bootstrap runs synchronously on the calling
// goroutine before Run is ever started, so it needs no serialization.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:                slog.Default(),
		clock:                 time.Now,
		history:               NewHistoryBuffer(),
		deferralWarnThreshold: 3,
		deferCounts:           make(map[ir.Identifier]int),
		inbox:                 make(chan inboundItem, 256),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.identifiers = NewIdentifierService(e.peer, e.identifierFloor)
	e.bootstrap()
	return e
}

func (e *Engine) bootstrap() {
	tailRef := ir.PendingRef(ir.TailIdentifier)
	head := ir.NewDelimiter(ir.HeadIdentifier, nil, &tailRef)

	headRef := ir.PendingRef(ir.HeadIdentifier)
	tail := ir.NewDelimiter(ir.TailIdentifier, &headRef, nil)

	e.history.Put(head)
	e.history.Put(tail)

	if err := e.Execute(head); err != nil {
		panic(fmt.Sprintf("engine: bootstrap HEAD failed: %v", err))
	}
	if err := e.Execute(tail); err != nil {
		panic(fmt.Sprintf("engine: bootstrap TAIL failed: %v", err))
	}

	e.logger.Info("engine bootstrapped", "peer", e.peer)
}

// Head returns the HEAD sentinel delimiter.
func (e *Engine) Head() ir.Operation {
	op, _ := e.history.Get(ir.HeadIdentifier)
	return op
}

// Tail returns the TAIL sentinel delimiter.
func (e *Engine) Tail() ir.Operation {
	op, _ := e.history.Get(ir.TailIdentifier)
	return op
}

// NextIdentifier mints the next identifier for a locally issued
// operation (spec §6).
func (e *Engine) NextIdentifier() ir.Identifier {
	return e.identifiers.NextIdentifier()
}

// History exposes the underlying buffer. internal/cli's replay and
// inspect commands register operations through it directly
// (executeAndWake), and internal/harness looks operations up in it.
func (e *Engine) History() *HistoryBuffer {
	return e.history
}

// Run drains the inbox until ctx is cancelled. It must run on its own
// goroutine; Submit and Receive block until Run has processed their
// item, so callers on other goroutines observe a consistent, serialized
// view of the CL.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-e.inbox:
			item.done <- e.submitLocal(item.op)
		}
	}
}

// Submit enqueues op for registration and execution on the single
// writer, blocking until it has been processed. The returned error is nil
// on success, ErrDeferred if op is still waiting on a reference, or a
// fatal *EngineError.
func (e *Engine) Submit(op ir.Operation) error {
	done := make(chan error, 1)
	e.inbox <- inboundItem{op: op, done: done}
	return <-done
}

// Receive decodes a wire-format operation and submits it (spec §6).
// Decode failures are logged and the message dropped rather than
// propagated as a fatal error (spec §7's DecodeError policy).
func (e *Engine) Receive(raw []byte) error {
	op, err := codec.Decode(raw)
	if err != nil {
		e.logger.Error("dropping malformed operation", "error", err)
		return err
	}
	return e.Submit(op)
}

// submitLocal performs the actual registration + lifecycle + cascade; it
// must only ever be called from the Run goroutine.
//
// It always executes the canonical stored operation returned by Put, not
// op itself: when op is a re-delivery of an already-registered identity,
// op is a freshly decoded object and executing it would re-apply that
// variant's integration effect a second time (spec §8's idempotent-
// execution property). Re-running Execute against the canonical object is
// always safe, since Execute itself is a no-op once that object's
// Executed() is true.
func (e *Engine) submitLocal(op ir.Operation) error {
	stored, woken, _ := e.history.Put(op)
	err := e.Execute(stored)

	if err != nil && IsFatal(err) {
		e.logger.Error("fatal error executing operation", "op", stored.Identity(), "error", err)
	}

	for _, w := range woken {
		if werr := e.Execute(w); werr != nil && IsFatal(werr) {
			e.logger.Error("fatal error waking dependent operation", "op", w.Identity(), "error", werr)
		}
	}

	return err
}
