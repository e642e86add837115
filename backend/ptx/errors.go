package ptx

import "fmt"

// CodegenInvariantError is ErrCodegenInvariant from spec.md §7: an IR shape
// codegen assumes but that slipped past the optimizer/validator, e.g. an
// aggregate-typed Value reaching register allocation directly.
type CodegenInvariantError struct {
	Reason string
}

func (e *CodegenInvariantError) Error() string { return "ptx: codegen invariant violated: " + e.Reason }

// RegisterPressureExceededError is ErrRegisterPressureExceeded from
// spec.md §7: a class's live-range demand exceeded both its register
// budget and the allowed spill-to-.local budget.
type RegisterPressureExceededError struct {
	Class    RegClass
	Overflow int
}

func (e *RegisterPressureExceededError) Error() string {
	return fmt.Sprintf("ptx: register pressure exceeded in class %s, overflow by %d bytes of spill space", e.Class, e.Overflow)
}

// UnsupportedInstructionError is ErrUnsupportedInstruction from spec.md
// §7: an opcode this backend has no lowering template for.
type UnsupportedInstructionError struct {
	Op fmt.Stringer
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf("ptx: unsupported instruction %s", e.Op)
}

// DanglingUseError is ErrDanglingUse from spec.md §7: an inline-assembly
// template slot references an argument with no direction or no operand to
// bind — a construction bug, not a user-facing condition.
type DanglingUseError struct {
	Use string
}

func (e *DanglingUseError) Error() string { return "ptx: dangling use: " + e.Use }
