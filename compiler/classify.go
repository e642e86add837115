package compiler

import (
	"context"
	"errors"

	"github.com/xyproto/xpujit/backend/ptx"
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/frontend"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/optimize"
	"github.com/xyproto/xpujit/types"
)

// enrichLocation fills in err's CompileError.Location.File/Line from
// opts.DebugInfo, when the caller asked for debug info and a loader was
// supplied. A loader miss (no provider, no sequence point at this offset,
// or a fetch failure after retries) leaves the bytecode-offset-only
// Location untouched — debug info is a nice-to-have, never required to
// report an error (spec.md §2 component 9, "optional and lazy").
func enrichLocation(ctx context.Context, ref MethodRef, opts Options, err error) error {
	if err == nil || opts.DebugInfo == nil || !ref.Body.EnableDebugInfo {
		return err
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		return err
	}
	table, lerr := opts.DebugInfo.Load(ctx, opts.AssemblyID)
	if lerr != nil || table == nil {
		return err
	}
	if pt, ok := table.Lookup(ref.Body.Name, ce.Location.Offset); ok {
		ce.Location.File = pt.File
		ce.Location.Line = pt.Line
	}
	return err
}

// classifyFrontendError maps a frontend.Decode failure onto the taxonomy in
// errors.go. The frontend package's own error types carry no Location, so
// one is synthesized from methodName with whatever offset they do carry.
func classifyFrontendError(methodName string, err error) error {
	loc := ir.Location{MethodName: methodName}

	var unsupported *frontend.UnsupportedInstructionError
	if errors.As(err, &unsupported) {
		loc.Offset = unsupported.Offset
		return wrap(ErrUnsupportedInstruction, "decode", loc, err)
	}
	var unbalanced *frontend.UnbalancedStackError
	if errors.As(err, &unbalanced) {
		loc.Offset = unbalanced.Offset
		return wrap(ErrUnbalancedStack, "decode", loc, err)
	}
	var badBranch *frontend.InvalidBranchTargetError
	if errors.As(err, &badBranch) {
		loc.Offset = badBranch.Offset
		return wrap(ErrUnsupportedOperation, "decode", loc, err)
	}
	var intrinsicErr *intrinsics.UnsupportedIntrinsicError
	if errors.As(err, &intrinsicErr) {
		return wrap(ErrUnsupportedIntrinsic, "decode", loc, err)
	}
	var opErr *intrinsics.UnsupportedOperationError
	if errors.As(err, &opErr) {
		return wrap(ErrUnsupportedOperation, "decode", loc, err)
	}
	var asmErr *intrinsics.InvalidInlineAssemblyError
	if errors.As(err, &asmErr) {
		return wrap(ErrInvalidInlineAssembly, "decode", loc, err)
	}
	var typeErr *types.InvalidTypeError
	if errors.As(err, &typeErr) {
		return wrap(ErrInvalidType, "decode", loc, err)
	}
	var capErr *capability.NotSupportedError
	if errors.As(err, &capErr) {
		return wrap(ErrCapabilityNotSupported, "decode", loc, err)
	}
	var irMismatch *ir.TypeMismatchError
	if errors.As(err, &irMismatch) {
		return wrap(ErrTypeMismatch, "decode", loc, err)
	}
	var irUnbalanced *ir.UnbalancedStackError
	if errors.As(err, &irUnbalanced) {
		return wrap(ErrUnbalancedStack, "decode", loc, err)
	}
	return wrap(ErrUnsupportedOperation, "decode", loc, err)
}

func classifyOptimizeError(methodName string, err error) error {
	loc := ir.Location{MethodName: methodName}
	var cancelled *optimize.CancelledError
	if errors.As(err, &cancelled) {
		return wrap(ErrCancelled, "optimize", loc, err)
	}
	var irMismatch *ir.TypeMismatchError
	if errors.As(err, &irMismatch) {
		return wrap(ErrTypeMismatch, "optimize", loc, err)
	}
	var danglingUse *ir.DanglingUseError
	if errors.As(err, &danglingUse) {
		return wrap(ErrDanglingUse, "optimize", loc, err)
	}
	return wrap(ErrUnsupportedOperation, "optimize", loc, err)
}

func classifyBackendError(methodName string, err error) error {
	loc := ir.Location{MethodName: methodName}
	var invariant *ptx.CodegenInvariantError
	if errors.As(err, &invariant) {
		return wrap(ErrCodegenInvariant, "lowering", loc, err)
	}
	var pressure *ptx.RegisterPressureExceededError
	if errors.As(err, &pressure) {
		return wrap(ErrRegisterPressureExceeded, "lowering", loc, err)
	}
	var unsupported *ptx.UnsupportedInstructionError
	if errors.As(err, &unsupported) {
		return wrap(ErrUnsupportedInstruction, "lowering", loc, err)
	}
	var dangling *ptx.DanglingUseError
	if errors.As(err, &dangling) {
		return wrap(ErrDanglingUse, "lowering", loc, err)
	}
	var capErr *capability.NotSupportedError
	if errors.As(err, &capErr) {
		return wrap(ErrCapabilityNotSupported, "lowering", loc, err)
	}
	var typeErr *types.InvalidTypeError
	if errors.As(err, &typeErr) {
		return wrap(ErrInvalidType, "lowering", loc, err)
	}
	return wrap(ErrUnsupportedOperation, "lowering", loc, err)
}
