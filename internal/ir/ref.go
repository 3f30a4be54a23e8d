package ir

// Ref models a reference field that is either already bound to a live
// operation (the argument exposed an execute capability when the
// operation was constructed) or still pending resolution against an
// Identifier not yet present in the history buffer. This is the typed
// equivalent of the "duck-typed" constructor argument described in
// spec §9: "either an identifier or an instantiated operation".
//
// A Ref is immutable once Bound: resolution only ever moves a Ref from
// pending to bound, never back (spec §3.2's immutability invariant).
type Ref struct {
	bound   Operation
	pending Identifier
	isBound bool
}

// BoundRef returns a Ref already resolved to a live operation.
func BoundRef(op Operation) Ref {
	return Ref{bound: op, isBound: true}
}

// PendingRef returns a Ref that still needs resolution against id.
func PendingRef(id Identifier) Ref {
	return Ref{pending: id}
}

// IsBound reports whether the reference has been resolved.
func (r Ref) IsBound() bool {
	return r.isBound
}

// Identifier returns the identifier this Ref is pending on, valid only
// when !IsBound().
func (r Ref) Identifier() Identifier {
	return r.pending
}

// Operation returns the bound operation, valid only when IsBound().
func (r Ref) Operation() Operation {
	return r.bound
}

// Resolve binds a previously pending Ref to op. Calling Resolve on an
// already-bound Ref is a no-op, preserving the resolved value.
func (r Ref) Resolve(op Operation) Ref {
	if r.isBound {
		return r
	}
	return BoundRef(op)
}

