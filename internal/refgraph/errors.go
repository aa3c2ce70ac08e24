package refgraph

import (
	"errors"
	"fmt"
)

// RuntimeError reports a failed simulator operation.
//
// Every error except DANGLING_REFERENCE is recoverable: the simulator is
// left unchanged. DANGLING_REFERENCE is fatal-class. A caller that receives
// one has read through an unowned reference whose target is gone; the
// Must variants panic with it instead of returning.
type RuntimeError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Holder is the holder involved, when one is.
	Holder ObjectID

	// Target is the object involved, when one is.
	Target ObjectID

	// Ref is the reference involved, when one is.
	Ref RefID
}

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeDanglingTarget: a reference was requested to an object that is
	// not live.
	ErrCodeDanglingTarget ErrorCode = "DANGLING_TARGET"

	// ErrCodeDanglingReference: an unowned reference was read after its
	// target was destroyed.
	ErrCodeDanglingReference ErrorCode = "DANGLING_REFERENCE"

	// ErrCodeUnknownReference: the RefID does not name a held reference.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeKindMismatch: a read used the wrong accessor for the kind.
	ErrCodeKindMismatch ErrorCode = "KIND_MISMATCH"

	// ErrCodeInvalidKind: the reference kind is not strong, weak or unowned.
	ErrCodeInvalidKind ErrorCode = "INVALID_KIND"

	// ErrCodeInvalidHolder: the holder is unknown or destroyed.
	ErrCodeInvalidHolder ErrorCode = "INVALID_HOLDER"

	// ErrCodeScopeClosed: the scope has already been closed.
	ErrCodeScopeClosed ErrorCode = "SCOPE_CLOSED"

	// ErrCodeNoStrongReference: the holder has no strong reference to release.
	ErrCodeNoStrongReference ErrorCode = "NO_STRONG_REFERENCE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Ref != 0 {
		return fmt.Sprintf("%s: %s (ref=%d)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Fatal reports whether the error belongs to the fatal class.
func (e *RuntimeError) Fatal() bool {
	return e.Code == ErrCodeDanglingReference
}

// CodeOf returns the RuntimeError code carried by err, or "" if err is not
// (or does not wrap) a RuntimeError.
func CodeOf(err error) ErrorCode {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsDanglingTarget returns true if err is a DANGLING_TARGET error.
func IsDanglingTarget(err error) bool {
	return CodeOf(err) == ErrCodeDanglingTarget
}

// IsDanglingReference returns true if err is a DANGLING_REFERENCE error.
func IsDanglingReference(err error) bool {
	return CodeOf(err) == ErrCodeDanglingReference
}

// IsFatal returns true if err is a fatal-class RuntimeError.
func IsFatal(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Fatal()
}

func newDanglingTargetError(holder, target ObjectID, destroyed bool) *RuntimeError {
	msg := fmt.Sprintf("object %d does not exist", target)
	if destroyed {
		msg = fmt.Sprintf("object %d has been destroyed", target)
	}
	return &RuntimeError{Code: ErrCodeDanglingTarget, Message: msg, Holder: holder, Target: target}
}

func newDanglingReferenceError(ref RefID, holder, target ObjectID) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDanglingReference,
		Message: fmt.Sprintf("unowned reference read after object %d was destroyed", target),
		Holder:  holder,
		Target:  target,
		Ref:     ref,
	}
}

func newUnknownReferenceError(ref RefID) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUnknownReference, Message: "no such reference", Ref: ref}
}

func newKindMismatchError(ref RefID, got, want RefKind) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeKindMismatch,
		Message: fmt.Sprintf("reference is %s, not %s", got, want),
		Ref:     ref,
	}
}

func newInvalidKindError(kind RefKind) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidKind, Message: fmt.Sprintf("invalid reference kind %s", kind)}
}

func newInvalidHolderError(holder ObjectID, destroyed bool) *RuntimeError {
	msg := fmt.Sprintf("holder %d does not exist", holder)
	if destroyed {
		msg = fmt.Sprintf("holder %d has been destroyed", holder)
	}
	return &RuntimeError{Code: ErrCodeInvalidHolder, Message: msg, Holder: holder}
}
