package cse

import (
	"github.com/bnb-chain/asmcse/asm"
	"github.com/cockroachdb/errors"
)

// InvalidStackStateError is fatal: the analyzer was asked to pop from an
// empty or under-specified symbolic stack at a height that cannot be
// explained as a lazily-materialized InitialStackItem.
type InvalidStackStateError struct {
	Op     asm.OpCode
	Height int
}

func (e *InvalidStackStateError) Error() string {
	return errors.Newf("cse: invalid stack state feeding %s at height %d", e.Op, e.Height).Error()
}

// NewInvalidStackState builds an InvalidStackStateError, wrapped so it
// carries a stack trace.
func NewInvalidStackState(op asm.OpCode, height int) error {
	return errors.WithStack(&InvalidStackStateError{Op: op, Height: height})
}

// StackTooDeepError is fatal: the code generator could not bring a needed
// class within the EVM's 16-deep DUP/SWAP window, and the class could not be
// recomputed instead.
type StackTooDeepError struct {
	Class ClassId
	Depth int
}

func (e *StackTooDeepError) Error() string {
	return errors.Newf("cse: stack too deep: class %d needed at depth %d exceeds DUP/SWAP16 window", e.Class, e.Depth).Error()
}

// NewStackTooDeep builds a StackTooDeepError, wrapped so it carries a stack trace.
func NewStackTooDeep(class ClassId, depth int) error {
	return errors.WithStack(&StackTooDeepError{Class: class, Depth: depth})
}

// InternalInvariantError signals an unreachable case: a lookup of an unknown
// ClassId, a missing arity-table entry, or similar. These indicate a bug in
// the CSE itself, never malformed input.
type InternalInvariantError struct {
	Msg string
}

func (e *InternalInvariantError) Error() string {
	return errors.Newf("cse: internal invariant violated: %s", e.Msg).Error()
}

// NewInternalInvariant builds an InternalInvariantError, wrapped so it
// carries a stack trace.
func NewInternalInvariant(msg string) error {
	return errors.WithStack(&InternalInvariantError{Msg: msg})
}
