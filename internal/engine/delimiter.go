package engine

import "github.com/roach88/repcore/internal/ir"

// integrateDelimiter attaches a HEAD/TAIL sentinel to whichever neighbors
// it has (spec §4.5). Unlike Insert, a delimiter never runs the
// origin-bracket placement search: it directly reaches across and sets
// the reciprocal pointer on each bound neighbor, which is what lets the
// two sentinels bootstrap each other without deadlocking on mutual
// execution.
func (e *Engine) integrateDelimiter(self *ir.Delimiter) error {
	if self.PrevCL == nil && self.NextCL == nil {
		return newUnderspecifiedDelimiterError(self.Identity())
	}

	if self.PrevCL != nil {
		left := self.PrevCL.Operation()
		if existing := clNext(left); existing != nil && !existing.Identity().Equal(self.Identity()) {
			return newDuplicateOperationError(self.Identity(), "prev")
		}
		setCLNext(left, ir.Operation(self))
	}

	if self.NextCL != nil {
		right := self.NextCL.Operation()
		if existing := clPrev(right); existing != nil && !existing.Identity().Equal(self.Identity()) {
			return newDuplicateOperationError(self.Identity(), "next")
		}
		setCLPrev(right, ir.Operation(self))
	}

	return nil
}
