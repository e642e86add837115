package intrinsics

import "github.com/xyproto/xpujit/ir"

// registerAccelerator wires Accelerator.ArrayToView, the array-literal
// lowering spec.md §4.3 names ("array-literal lowering to a view-cast of a
// constant blob").
func registerAccelerator(r *Registry) {
	r.register(MethodKey{Type: "Accelerator", Method: "ArrayToView"}, CategoryAccelerator, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateArrayToViewCast(ctx.ResultType, ctx.Args[0], ctx.Args[1])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}

// registerInterop rejects the reflection-style host APIs spec.md §4.4 calls
// out by name: "GetType, GetMethod, CreateInstance with non-trivial
// arguments -> UnsupportedOperation with a clear message". CreateInstance
// of a trivial value type (no arguments) is allowed through as a zero-value
// struct construction; everything else in this category refuses.
func registerInterop(r *Registry) {
	reject := func(method, reason string) Handler {
		return func(ctx *InvocationContext) error {
			return &UnsupportedOperationError{DeclaringType: "Object", Method: method, Reason: reason}
		}
	}
	r.register(MethodKey{Type: "Object", Method: "GetType"}, CategoryInterop,
		reject("GetType", "device code has no runtime type metadata"))
	r.register(MethodKey{Type: "Object", Method: "GetMethod"}, CategoryInterop,
		reject("GetMethod", "device code cannot resolve methods reflectively"))
	r.register(MethodKey{Type: "Activator", Method: "CreateInstance"}, CategoryInterop, func(ctx *InvocationContext) error {
		if len(ctx.Args) > 0 {
			return &UnsupportedOperationError{
				DeclaringType: "Activator", Method: "CreateInstance",
				Reason: "constructor arguments require a call the device cannot resolve reflectively",
			}
		}
		id, err := ctx.Builder.CreateConst(ctx.ResultType, 0)
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}

// registerUtility wires small helpers that don't fit a more specific
// category: Clamp, Select, FusedMulAdd (first-class ternary IR ops) and
// Debug.Assert.
func registerUtility(r *Registry) {
	r.register(MethodKey{Type: "Debug", Method: "Assert"}, CategoryUtility, func(ctx *InvocationContext) error {
		_, err := ctx.Builder.CreateDebugAssert(ctx.Args[0], "assertion failed")
		return err
	})
	r.register(MethodKey{Type: "Utility", Method: "Clamp"}, CategoryUtility, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateTernary(ir.OpClamp, ctx.Args[0], ctx.Args[1], ctx.Args[2], ctx.ResultType, 0)
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
	r.register(MethodKey{Type: "Utility", Method: "Select"}, CategoryUtility, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateTernary(ir.OpSelect, ctx.Args[0], ctx.Args[1], ctx.Args[2], ctx.ResultType, 0)
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
	r.register(MethodKey{Type: "Utility", Method: "FusedMulAdd"}, CategoryUtility, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateTernary(ir.OpFusedMulAdd, ctx.Args[0], ctx.Args[1], ctx.Args[2], ctx.ResultType, 0)
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}
