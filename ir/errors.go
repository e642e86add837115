package ir

import "fmt"

// TerminatorExistsError is returned by the Builder when a creation is
// attempted past a block's terminator (spec.md §4.2: "the current insertion
// point must not be past a terminator").
type TerminatorExistsError struct {
	Block BlockID
}

func (e *TerminatorExistsError) Error() string {
	return fmt.Sprintf("ir: block %d already has a terminator", e.Block)
}

// TypeMismatchError is returned when an operand's type disagrees with the
// opcode's declared signature.
type TypeMismatchError struct {
	Op       Opcode
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("ir: %s expected %s, got %s", e.Op, e.Expected, e.Got)
}

// UnbalancedStackError is returned by the frontend decoder when two
// predecessors of a merge block disagree on abstract-stack depth or typing
// (spec.md §4.3, step 3).
type UnbalancedStackError struct {
	Block  BlockID
	DepthA int
	DepthB int
}

func (e *UnbalancedStackError) Error() string {
	return fmt.Sprintf("ir: unbalanced stack at merge into block %d (%d vs %d)", e.Block, e.DepthA, e.DepthB)
}

// DanglingUseError is returned when a pass attempts to drop a Value that
// still has a recorded use — an implementer bug, not a user-facing error
// (spec.md §4.5).
type DanglingUseError struct {
	Def  ValueID
	User ValueID
}

func (e *DanglingUseError) Error() string {
	return fmt.Sprintf("ir: value %d deleted while still used by %d", e.Def, e.User)
}
