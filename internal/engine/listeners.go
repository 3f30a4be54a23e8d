package engine

import (
	"github.com/roach88/repcore/internal/codec"
	"github.com/roach88/repcore/internal/ir"
)

// ExecuteListener receives the encoded form of every operation
// immediately after it completes execution, local or remote (spec §6).
// Transports subscribe here and own wire-level deduplication.
type ExecuteListener func(enc *ir.EncodedOp)

// OnExecute registers fn as an execution listener, scoped to this engine
// instance (spec §9 flags a process-wide listener set as a design smell —
// this keeps it instance-scoped). Listeners run in registration order,
// synchronously with the operation that triggered them (spec §4.2 step
// 5).
func (e *Engine) OnExecute(fn ExecuteListener) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) fireExecuted(op ir.Operation) {
	enc, err := codec.Encode(op)
	if err != nil {
		e.logger.Error("failed to encode just-executed operation", "op", op.Identity(), "error", err)
		return
	}

	op.CallEvent("execute", enc)
	for _, fn := range e.listeners {
		fn(enc)
	}
}
