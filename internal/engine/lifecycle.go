package engine

import (
	"fmt"

	"github.com/roach88/repcore/internal/ir"
)

// Execute drives the execution lifecycle for op (spec §4.2): resolve
// references against the history buffer, perform variant-specific
// integration, mark executed, and fire execution listeners. Re-execution
// of an already-executed operation is a no-op success (spec §3.2).
//
// Execute returns ErrDeferred (soft) when op still has unresolved
// references, or an *EngineError (fatal) on structural corruption. A nil
// error means op completed execution during this call.
func (e *Engine) Execute(op ir.Operation) error {
	if op.Executed() {
		return nil
	}

	e.resolve(op)

	if pending := op.PendingFields(); len(pending) > 0 {
		e.deferOperation(op, pending)
		return ErrDeferred
	}

	if err := e.integrate(op); err != nil {
		return err
	}

	op.MarkExecuted()
	e.fireExecuted(op)
	return nil
}

// resolve is the "validate" step of save/validate (spec §4.1): every
// pending field whose identifier is present in the history buffer gets
// bound. A field resolved here stays resolved even if op is deferred
// again on a different field.
func (e *Engine) resolve(op ir.Operation) {
	for field, id := range op.PendingFields() {
		if target, ok := e.history.Get(id); ok {
			op.ResolveField(field, target)
			e.logger.Debug("resolved reference", "op", op.Identity(), "field", field, "target", id)
		}
	}
}

func (e *Engine) deferOperation(op ir.Operation, pending map[string]ir.Identifier) {
	for _, id := range pending {
		e.history.WaitOn(id, op)
	}

	e.deferCounts[op.Identity()]++
	if n := e.deferCounts[op.Identity()]; n >= e.deferralWarnThreshold {
		e.logger.Warn("operation deferred across registration threshold",
			"op", op.Identity(), "pending", pending, "registrations", n)
	}
}

func (e *Engine) integrate(op ir.Operation) error {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		return e.integrateInsert(op, &v.Insert)
	case *ir.Insert:
		return e.integrateInsert(op, v)
	case *ir.Delete:
		return e.integrateDelete(v)
	case *ir.Delimiter:
		return e.integrateDelimiter(v)
	default:
		return fmt.Errorf("engine: unknown operation kind %T", op)
	}
}
