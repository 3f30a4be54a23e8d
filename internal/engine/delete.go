package engine

import "github.com/roach88/repcore/internal/ir"

// integrateDelete appends del to its target's DeletedBy list (spec §4.4).
// No CL structural mutation happens here: tombstoning is purely a
// visibility concern, and a duplicate delete of an already-tombstoned
// target is harmless. Re-delivery of the same del identity is guarded
// upstream in submitLocal, which always executes the canonical stored
// operation rather than a freshly decoded duplicate, so this method never
// sees the same del.Identity() applied to a target twice.
func (e *Engine) integrateDelete(del *ir.Delete) error {
	target := del.Deletes.Operation()

	switch v := target.(type) {
	case *ir.ImmutableObject:
		v.DeletedBy = append(v.DeletedBy, ir.Operation(del))
	case *ir.Insert:
		v.DeletedBy = append(v.DeletedBy, ir.Operation(del))
	default:
		return newInvalidDeleteTargetError(del.Identity(), target.Identity())
	}

	e.logger.Debug("tombstoned insert", "target", target.Identity(), "delete", del.Identity())
	return nil
}
