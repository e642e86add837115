package intrinsics

import "github.com/xyproto/xpujit/ir"

// registerAtomic wires Atomic.{Add,Exchange,And,Or,Xor,Min,Max,
// CompareExchange} (spec.md §4.4 Atomic category; lowered in backend/ptx to
// atom.<space>.<op>.<type>, gated by CapabilityContext per spec.md §4.6).
func registerAtomic(r *Registry) {
	r.register(MethodKey{Type: "Atomic", Method: "Add"}, CategoryAtomic, atomicHandler(ir.AtomicAdd))
	r.register(MethodKey{Type: "Atomic", Method: "Exchange"}, CategoryAtomic, atomicHandler(ir.AtomicExchange))
	r.register(MethodKey{Type: "Atomic", Method: "And"}, CategoryAtomic, atomicHandler(ir.AtomicAnd))
	r.register(MethodKey{Type: "Atomic", Method: "Or"}, CategoryAtomic, atomicHandler(ir.AtomicOr))
	r.register(MethodKey{Type: "Atomic", Method: "Xor"}, CategoryAtomic, atomicHandler(ir.AtomicXor))
	r.register(MethodKey{Type: "Atomic", Method: "Min"}, CategoryAtomic, atomicHandler(ir.AtomicMin))
	r.register(MethodKey{Type: "Atomic", Method: "Max"}, CategoryAtomic, atomicHandler(ir.AtomicMax))

	r.register(MethodKey{Type: "Atomic", Method: "CompareExchange"}, CategoryAtomic, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateAtomicCAS(ctx.ResultType, ctx.Args[0], ctx.Args[1], ctx.Args[2])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}

func atomicHandler(op ir.AtomicOp) Handler {
	return func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateAtomicRMW(ctx.ResultType, op, ctx.Args[0], ctx.Args[1])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	}
}
