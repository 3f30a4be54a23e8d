package engine

import "github.com/roach88/repcore/internal/ir"

// VisibleSequence walks the CL from HEAD to TAIL and returns the
// non-tombstoned Insert/ImmutableObject operations in list order. There is
// no parallel "short list" maintained incrementally (spec §9's dropped
// `update_sl`); this recomputes the view by filtering at read time, which
// is adequate until profiling shows otherwise.
func (e *Engine) VisibleSequence() []ir.Operation {
	var out []ir.Operation

	cur := clNext(e.Head())
	tail := e.Tail()
	for cur != nil && !cur.Identity().Equal(tail.Identity()) {
		if tombstoned, isInsertLike := tombstoneCheck(cur); isInsertLike && !tombstoned {
			out = append(out, cur)
		}
		cur = clNext(cur)
	}
	return out
}

// tombstoneCheck reports (tombstoned, isInsertLike) for op. Delimiters are
// not insert-like and are never part of the visible view.
func tombstoneCheck(op ir.Operation) (tombstoned bool, isInsertLike bool) {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		return v.Tombstoned(), true
	case *ir.Insert:
		return v.Tombstoned(), true
	default:
		return false, false
	}
}
