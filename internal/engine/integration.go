package engine

import "github.com/roach88/repcore/internal/ir"

// clNext and clPrev dereference the current-linkage fields of an
// Insert/ImmutableObject/Delimiter uniformly. They return nil when the
// side is structurally absent (a delimiter's missing end) or not yet
// bound, rather than panicking, so callers can treat "no neighbor yet"
// as ordinary control flow.
func clNext(op ir.Operation) ir.Operation {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		return refOperation(v.NextCL)
	case *ir.Insert:
		return refOperation(v.NextCL)
	case *ir.Delimiter:
		if v.NextCL == nil {
			return nil
		}
		return refOperation(*v.NextCL)
	default:
		return nil
	}
}

func clPrev(op ir.Operation) ir.Operation {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		return refOperation(v.PrevCL)
	case *ir.Insert:
		return refOperation(v.PrevCL)
	case *ir.Delimiter:
		if v.PrevCL == nil {
			return nil
		}
		return refOperation(*v.PrevCL)
	default:
		return nil
	}
}

func refOperation(r ir.Ref) ir.Operation {
	if !r.IsBound() {
		return nil
	}
	return r.Operation()
}

func setCLNext(op, next ir.Operation) {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		v.NextCL = ir.BoundRef(next)
	case *ir.Insert:
		v.NextCL = ir.BoundRef(next)
	case *ir.Delimiter:
		r := ir.BoundRef(next)
		v.NextCL = &r
	}
}

func setCLPrev(op, prev ir.Operation) {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		v.PrevCL = ir.BoundRef(prev)
	case *ir.Insert:
		v.PrevCL = ir.BoundRef(prev)
	case *ir.Delimiter:
		r := ir.BoundRef(prev)
		v.PrevCL = &r
	}
}

func originOf(op ir.Operation) ir.Operation {
	switch v := op.(type) {
	case *ir.ImmutableObject:
		return refOperation(v.Origin)
	case *ir.Insert:
		return refOperation(v.Origin)
	default:
		return nil
	}
}

// distanceToOrigin counts the prev_cl hops from x back to (not including)
// x.origin (spec §4.3). A self-referential prev_cl is the latent-bug
// guard called out in spec §9: treated here as a fatal assertion rather
// than an infinite loop.
func distanceToOrigin(x ir.Operation) (int, error) {
	if prev := clPrev(x); prev != nil && prev.Identity().Equal(x.Identity()) {
		return 0, newSelfReferentialOriginError(x.Identity())
	}

	origin := originOf(x)
	dist := 0
	cur := x
	for {
		prev := clPrev(cur)
		if prev == nil {
			return 0, newImpossibleLinkageError(x.Identity())
		}
		if origin != nil && prev.Identity().Equal(origin.Identity()) {
			return dist, nil
		}
		cur = prev
		dist++
	}
}

// integrateInsert runs the CL placement algorithm of spec §4.3 for self,
// whose CL-linkage fields live on ins (ins is &self.Insert when self is an
// *ir.ImmutableObject). On return, ins.PrevCL/NextCL have been overwritten
// with the final spliced neighbors.
func (e *Engine) integrateInsert(self ir.Operation, ins *ir.Insert) error {
	prevCL := ins.PrevCL.Operation()
	nextCL := ins.NextCL.Operation()

	if n := clNext(prevCL); n != nil && n.Identity().Equal(self.Identity()) {
		return nil
	}

	i := 0
	iAtLastMove := 0
	o := clNext(prevCL)
	for o != nil && !o.Identity().Equal(nextCL.Identity()) {
		d, err := distanceToOrigin(o)
		if err != nil {
			return err
		}

		moved := false
		switch {
		case d == i:
			if o.Identity().Creator < self.Identity().Creator {
				moved = true
			}
		case d < i:
			if i-iAtLastMove <= d {
				moved = true
			}
		default: // d > i
			o = nil
			continue
		}

		if moved {
			prevCL = o
			i++
			iAtLastMove = i
			e.logger.Debug("integration: adopted candidate as new left neighbor",
				"self", self.Identity(), "candidate", o.Identity(), "distance", d)
		}

		i++
		o = clNext(o)
	}

	next := clNext(prevCL)
	setCLNext(prevCL, self)
	setCLPrev(next, self)
	setCLPrev(self, prevCL)
	setCLNext(self, next)
	return nil
}
