// Package codec implements the variant-tagged wire encoding for operations
// (spec §4.6): encoding is defined only over executed operations, and
// decoding produces an uninitialized operation whose reference fields are
// identifier placeholders ready for the engine's reference resolver.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/repcore/internal/ir"
)

// Encode converts an executed operation to its wire shape. It returns an
// error if op has not yet executed, since the reference fields (prev,
// next, origin, deletes) are not guaranteed bound until then (spec §3.2,
// §4.6). For an Insert/ImmutableObject, prev and next are read from its
// current CL neighbors: once a later insert is spliced next to it, a
// fresh Encode carries that newer neighbor, not the bracket the operation
// was executed with.
func Encode(op ir.Operation) (*ir.EncodedOp, error) {
	if !op.Executed() {
		return nil, fmt.Errorf("codec: cannot encode unexecuted operation %s", op.Identity())
	}

	enc := &ir.EncodedOp{Type: op.Kind(), UID: op.Identity()}

	switch v := op.(type) {
	case *ir.ImmutableObject:
		encodeInsertFields(enc, &v.Insert)
		enc.Content = append(json.RawMessage(nil), v.Content...)
	case *ir.Insert:
		encodeInsertFields(enc, v)
	case *ir.Delete:
		target := v.Deletes.Operation().Identity()
		enc.Deletes = &target
	case *ir.Delimiter:
		if v.PrevCL != nil {
			id := v.PrevCL.Operation().Identity()
			enc.Prev = &id
		}
		if v.NextCL != nil {
			id := v.NextCL.Operation().Identity()
			enc.Next = &id
		}
	default:
		return nil, fmt.Errorf("codec: unknown operation kind %T", op)
	}

	return enc, nil
}

func encodeInsertFields(enc *ir.EncodedOp, ins *ir.Insert) {
	prev := ins.PrevCL.Operation().Identity()
	next := ins.NextCL.Operation().Identity()
	enc.Prev = &prev
	enc.Next = &next

	origin := ins.Origin.Operation().Identity()
	if origin != prev {
		enc.Origin = &origin
	}
}

// EncodeBytes encodes op and marshals the result to JSON.
func EncodeBytes(op ir.Operation) ([]byte, error) {
	enc, err := Encode(op)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// Decode parses raw bytes into an uninitialized operation whose reference
// fields are pending identifiers. The caller is responsible for
// registering and executing the result (internal/engine).
func Decode(raw []byte) (ir.Operation, error) {
	var enc ir.EncodedOp
	if err := json.Unmarshal(raw, &enc); err != nil {
		return nil, &ir.DecodeError{Reason: err.Error(), Raw: raw}
	}
	return FromEncoded(&enc, raw)
}

// FromEncoded builds an uninitialized operation from an already-parsed
// wire record.
func FromEncoded(enc *ir.EncodedOp, raw []byte) (ir.Operation, error) {
	switch enc.Type {
	case ir.KindDelete:
		if enc.Deletes == nil {
			return nil, &ir.DecodeError{Reason: "Delete missing deletes field", Raw: raw}
		}
		return ir.NewDelete(enc.UID, ir.PendingRef(*enc.Deletes)), nil

	case ir.KindInsert:
		origin, prev, next, err := insertRefs(enc, raw)
		if err != nil {
			return nil, err
		}
		return ir.NewInsert(enc.UID, origin, prev, next), nil

	case ir.KindImmutableObject:
		origin, prev, next, err := insertRefs(enc, raw)
		if err != nil {
			return nil, err
		}
		content := append([]byte(nil), enc.Content...)
		return ir.NewImmutableObject(enc.UID, origin, prev, next, content), nil

	case ir.KindDelimiter:
		var prevCL, nextCL *ir.Ref
		if enc.Prev != nil {
			r := ir.PendingRef(*enc.Prev)
			prevCL = &r
		}
		if enc.Next != nil {
			r := ir.PendingRef(*enc.Next)
			nextCL = &r
		}
		if prevCL == nil && nextCL == nil {
			return nil, &ir.DecodeError{Reason: "Delimiter has neither prev nor next", Raw: raw}
		}
		return ir.NewDelimiter(enc.UID, prevCL, nextCL), nil

	default:
		return nil, &ir.DecodeError{Reason: fmt.Sprintf("unknown operation type %q", enc.Type), Raw: raw}
	}
}

func insertRefs(enc *ir.EncodedOp, raw []byte) (origin, prev, next ir.Ref, err error) {
	if enc.Prev == nil || enc.Next == nil {
		return ir.Ref{}, ir.Ref{}, ir.Ref{}, &ir.DecodeError{Reason: "Insert missing prev/next", Raw: raw}
	}
	prev = ir.PendingRef(*enc.Prev)
	next = ir.PendingRef(*enc.Next)
	if enc.Origin != nil {
		origin = ir.PendingRef(*enc.Origin)
	} else {
		origin = ir.PendingRef(*enc.Prev)
	}
	return origin, prev, next, nil
}
