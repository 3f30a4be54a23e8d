package ir

// OpKind discriminates the four operation variants.
type OpKind string

const (
	KindInsert           OpKind = "Insert"
	KindImmutableObject  OpKind = "ImmutableObject"
	KindDelete           OpKind = "Delete"
	KindDelimiter        OpKind = "Delimiter"
)

// EventListener receives the arguments passed to CallEvent for a given
// event name. Listeners run synchronously in registration order; a
// listener that panics propagates the panic to the caller of CallEvent
// (spec §4.7 — the core does not swallow listener exceptions).
type EventListener func(args ...any)

// Operation is the common contract every variant satisfies: identity,
// execution state, event hooks, and the field-name-keyed resolution
// bookkeeping the reference resolver (internal/engine) drives generically
// across variants (spec §4.1, §9).
type Operation interface {
	Identity() Identifier
	Kind() OpKind

	Executed() bool
	MarkExecuted()

	Parent() Operation
	SetParent(Operation)

	On(event string, fn EventListener)
	CallEvent(event string, args ...any)

	// PendingFields returns the still-unresolved reference fields, keyed
	// by field name. An operation is resolved when this map is empty.
	PendingFields() map[string]Identifier

	// ResolveField binds the named pending field to op. Calling
	// ResolveField for a field that is not pending (already bound, or
	// not a reference field of this variant) is a no-op.
	ResolveField(field string, op Operation)
}

// Meta holds the fields common to every operation variant: identity,
// executed flag, parent (for event bubbling), and the listener set. It is
// embedded by each concrete variant.
type Meta struct {
	id        Identifier
	executed  bool
	parent    Operation
	listeners map[string][]EventListener
}

// NewMeta constructs the common fields for a newly created operation.
func NewMeta(id Identifier) Meta {
	return Meta{id: id}
}

func (m *Meta) Identity() Identifier { return m.id }

func (m *Meta) Executed() bool { return m.executed }

func (m *Meta) MarkExecuted() { m.executed = true }

func (m *Meta) Parent() Operation { return m.parent }

func (m *Meta) SetParent(p Operation) { m.parent = p }

// On appends a listener for event. Listeners are invoked in registration
// order (spec §4.7).
func (m *Meta) On(event string, fn EventListener) {
	if m.listeners == nil {
		m.listeners = make(map[string][]EventListener)
	}
	m.listeners[event] = append(m.listeners[event], fn)
}

// CallEvent invokes every listener registered for event, in registration
// order, then bubbles to the parent operation if one is set. A listener
// panic propagates to the caller; it is never recovered here.
func (m *Meta) CallEvent(event string, args ...any) {
	for _, fn := range m.listeners[event] {
		fn(args...)
	}
	if m.parent != nil {
		m.parent.CallEvent(event, args...)
	}
}

// Insert participates in the doubly linked complete list (CL). Origin is
// the intended left neighbor at issuance and never changes once resolved.
// PrevCL/NextCL are initialized to the same bracket the integration
// algorithm should search within (prev_cl starts at Origin, next_cl at
// the right-origin bound observed by the creator) and are overwritten by
// the integration algorithm (internal/engine) to the final spliced
// neighbors once execution completes (spec §3.3, §4.3).
type Insert struct {
	Meta

	Origin Ref
	PrevCL Ref
	NextCL Ref

	// DeletedBy holds every Delete operation applied against this
	// Insert. A non-empty DeletedBy tombstones the node (spec §3.3);
	// duplicate deletes append harmlessly (spec §3.4).
	DeletedBy []Operation
}

// NewInsert constructs an unexecuted Insert. origin, prevCL, and nextCL
// may each be a BoundRef (already resolved) or PendingRef (resolved
// later via ResolveField).
func NewInsert(id Identifier, origin, prevCL, nextCL Ref) *Insert {
	return &Insert{
		Meta:   NewMeta(id),
		Origin: origin,
		PrevCL: prevCL,
		NextCL: nextCL,
	}
}

func (ins *Insert) Kind() OpKind { return KindInsert }

// Tombstoned reports whether this insert has been deleted by at least one
// Delete operation (spec §3.3 visibility invariant).
func (ins *Insert) Tombstoned() bool { return len(ins.DeletedBy) > 0 }

func (ins *Insert) PendingFields() map[string]Identifier {
	return pendingOf(map[string]Ref{
		"origin": ins.Origin,
		"prev":   ins.PrevCL,
		"next":   ins.NextCL,
	})
}

func (ins *Insert) ResolveField(field string, op Operation) {
	switch field {
	case "origin":
		ins.Origin = ins.Origin.Resolve(op)
	case "prev":
		ins.PrevCL = ins.PrevCL.Resolve(op)
	case "next":
		ins.NextCL = ins.NextCL.Resolve(op)
	}
}

// ImmutableObject is an Insert carrying an opaque, immutable payload.
// The payload is never interpreted by the core (spec §3.3); it is
// transport-opaque and round-trips through the codec as raw bytes.
type ImmutableObject struct {
	Insert
	Content []byte
}

// NewImmutableObject constructs an unexecuted ImmutableObject.
func NewImmutableObject(id Identifier, origin, prevCL, nextCL Ref, content []byte) *ImmutableObject {
	return &ImmutableObject{
		Insert:  *NewInsert(id, origin, prevCL, nextCL),
		Content: content,
	}
}

func (obj *ImmutableObject) Kind() OpKind { return KindImmutableObject }

// Delete marks an Insert (or ImmutableObject) as tombstoned. Execution is
// idempotent: re-applying the same Delete to an already-tombstoned target
// is harmless (spec §3.4).
type Delete struct {
	Meta

	Deletes Ref
}

// NewDelete constructs an unexecuted Delete targeting target.
func NewDelete(id Identifier, target Ref) *Delete {
	return &Delete{Meta: NewMeta(id), Deletes: target}
}

func (del *Delete) Kind() OpKind { return KindDelete }

func (del *Delete) PendingFields() map[string]Identifier {
	return pendingOf(map[string]Ref{"deletes": del.Deletes})
}

func (del *Delete) ResolveField(field string, op Operation) {
	if field == "deletes" {
		del.Deletes = del.Deletes.Resolve(op)
	}
}

// Delimiter is a sentinel CL endpoint (HEAD or TAIL), or — transiently,
// during the bootstrap race described in spec §4.5 — a delimiter still
// being attached to one of its neighbors. PrevCL/NextCL are nil when that
// side is genuinely absent (HEAD has no PrevCL; TAIL has no NextCL), as
// opposed to present-but-pending (a non-nil Ref that is not yet Bound).
type Delimiter struct {
	Meta

	PrevCL *Ref
	NextCL *Ref
}

// NewDelimiter constructs an unexecuted Delimiter. Pass nil for whichever
// side is structurally absent.
func NewDelimiter(id Identifier, prevCL, nextCL *Ref) *Delimiter {
	return &Delimiter{Meta: NewMeta(id), PrevCL: prevCL, NextCL: nextCL}
}

func (d *Delimiter) Kind() OpKind { return KindDelimiter }

func (d *Delimiter) PendingFields() map[string]Identifier {
	refs := make(map[string]Ref, 2)
	if d.PrevCL != nil {
		refs["prev"] = *d.PrevCL
	}
	if d.NextCL != nil {
		refs["next"] = *d.NextCL
	}
	return pendingOf(refs)
}

func (d *Delimiter) ResolveField(field string, op Operation) {
	switch field {
	case "prev":
		if d.PrevCL != nil {
			resolved := d.PrevCL.Resolve(op)
			d.PrevCL = &resolved
		}
	case "next":
		if d.NextCL != nil {
			resolved := d.NextCL.Resolve(op)
			d.NextCL = &resolved
		}
	}
}

func pendingOf(refs map[string]Ref) map[string]Identifier {
	pending := make(map[string]Identifier, len(refs))
	for field, r := range refs {
		if !r.IsBound() {
			pending[field] = r.Identifier()
		}
	}
	return pending
}
