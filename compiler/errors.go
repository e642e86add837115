// Package compiler exposes the single external entry point of this module:
// Compile takes a MethodRef plus a target Backend/Capability and returns a
// packaged kernel.CompiledKernel (spec.md §6). It owns the error taxonomy
// every stage (frontend, intrinsics, optimize, backend/ptx) is wrapped into
// before reaching the embedder.
package compiler

import (
	"errors"
	"fmt"

	"github.com/xyproto/xpujit/ir"
)

// Kind identifies one of the fixed error categories spec.md §7 enumerates.
// Every CompileError carries one, making errors.As the dispatch mechanism
// embedders use instead of string matching.
type Kind int

const (
	ErrUnsupportedInstruction Kind = iota
	ErrUnsupportedIntrinsic
	ErrUnsupportedOperation
	ErrTypeMismatch
	ErrInvalidType
	ErrUnbalancedStack
	ErrCapabilityNotSupported
	ErrRegisterPressureExceeded
	ErrInvalidInlineAssembly
	ErrCodegenInvariant
	ErrDanglingUse
	ErrCancelled
)

func (k Kind) String() string {
	names := [...]string{
		"unsupported_instruction", "unsupported_intrinsic", "unsupported_operation",
		"type_mismatch", "invalid_type", "unbalanced_stack", "capability_not_supported",
		"register_pressure_exceeded", "invalid_inline_assembly", "codegen_invariant",
		"dangling_use", "cancelled",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// CompileError is the uniform wrapper every Compile failure is returned as:
// a Kind for errors.As dispatch, the pipeline stage it was raised in, the
// source location when one is available, and the underlying error from
// whichever package actually detected the problem.
type CompileError struct {
	Kind     Kind
	Stage    string
	Location ir.Location
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler: [%s] %s: %s (at %s)", e.Kind, e.Stage, e.Err, e.Location)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Is reports whether target is a *CompileError with the same Kind, so
// callers can write `errors.Is(err, &compiler.CompileError{Kind:
// compiler.ErrCancelled})` as well as the `errors.As` form.
func (e *CompileError) Is(target error) bool {
	var other *CompileError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func wrap(kind Kind, stage string, loc ir.Location, err error) error {
	if err == nil {
		return nil
	}
	return &CompileError{Kind: kind, Stage: stage, Location: loc, Err: err}
}
