package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/repcore/internal/ir"
)

// ErrDeferred is returned by Execute when an operation's references are
// not all resolved yet. It is the soft error from spec §4.2/§7, not a
// fatal one: Submit and Receive return it to their caller as is, and the
// engine itself retries the operation when a new operation registers.
var ErrDeferred = errors.New("engine: operation deferred, references unresolved")

// EngineErrorCode classifies the fatal error kinds from spec §7.
type EngineErrorCode string

const (
	// ErrCodeDuplicateOperation: a delimiter was executed against a
	// neighbor already linked to another operation (its prev_cl already
	// has a next_cl, or its next_cl already has a prev_cl).
	ErrCodeDuplicateOperation EngineErrorCode = "DUPLICATE_OPERATION"

	// ErrCodeImpossibleLinkage: CL traversal dereferenced a missing
	// next_cl before reaching the expected stop point.
	ErrCodeImpossibleLinkage EngineErrorCode = "IMPOSSIBLE_LINKAGE"

	// ErrCodeUnderspecifiedDelimiter: a decoded delimiter had neither
	// prev_cl nor next_cl.
	ErrCodeUnderspecifiedDelimiter EngineErrorCode = "UNDERSPECIFIED_DELIMITER"

	// ErrCodeSelfReferentialOrigin: distanceToOrigin found
	// self.prev_cl == self, the latent-bug guard from spec §9.
	ErrCodeSelfReferentialOrigin EngineErrorCode = "SELF_REFERENTIAL_ORIGIN"

	// ErrCodeInvalidDeleteTarget: a Delete's resolved target is not an
	// Insert/ImmutableObject (a delimiter or another Delete), which no
	// correctly encoded operation should ever produce.
	ErrCodeInvalidDeleteTarget EngineErrorCode = "INVALID_DELETE_TARGET"
)

// EngineError is a fatal structural error (spec §7): corruption or
// protocol misuse that should terminate the replica. It is distinct from
// ErrDeferred, which is not an error at all but a retry signal.
type EngineError struct {
	Code       EngineErrorCode
	Message    string
	Identifier ir.Identifier
	Field      string
}

func (e *EngineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (id=%s, field=%s)", e.Code, e.Message, e.Identifier, e.Field)
	}
	return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.Identifier)
}

// IsFatal reports whether err is a fatal EngineError (as opposed to the
// soft ErrDeferred sentinel).
func IsFatal(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// IsDeferred reports whether err is the deferred-execution sentinel.
func IsDeferred(err error) bool {
	return errors.Is(err, ErrDeferred)
}

func newDuplicateOperationError(id ir.Identifier, field string) *EngineError {
	msg := "delimiter's prev_cl already has a next_cl"
	if field == "next" {
		msg = "delimiter's next_cl already has a prev_cl"
	}
	return &EngineError{
		Code:       ErrCodeDuplicateOperation,
		Message:    msg,
		Identifier: id,
		Field:      field,
	}
}

func newImpossibleLinkageError(id ir.Identifier) *EngineError {
	return &EngineError{
		Code:       ErrCodeImpossibleLinkage,
		Message:    "CL traversal dereferenced a missing next_cl before reaching the stop point",
		Identifier: id,
	}
}

func newUnderspecifiedDelimiterError(id ir.Identifier) *EngineError {
	return &EngineError{
		Code:       ErrCodeUnderspecifiedDelimiter,
		Message:    "delimiter has neither prev_cl nor next_cl",
		Identifier: id,
	}
}

func newSelfReferentialOriginError(id ir.Identifier) *EngineError {
	return &EngineError{
		Code:       ErrCodeSelfReferentialOrigin,
		Message:    "insert's prev_cl points to itself while computing distance to origin",
		Identifier: id,
	}
}

func newInvalidDeleteTargetError(id ir.Identifier, target ir.Identifier) *EngineError {
	return &EngineError{
		Code:       ErrCodeInvalidDeleteTarget,
		Message:    fmt.Sprintf("delete target %s is not an insert", target),
		Identifier: id,
	}
}
