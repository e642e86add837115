package frontend

import (
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
)

// execCall pops the callee's argument operands, dispatches through the
// remap/intrinsic registry (or emits a direct device-to-device OpCall for a
// local method reference), and pushes the result if any.
func execCall(b *ir.Builder, reg *intrinsics.Registry, capCtx capability.Context, body MethodBody, stack *[]stackSlot, inst Instruction) error {
	callee := body.Callees[inst.Operand]

	args := make([]ir.ValueID, len(callee.ArgTypes))
	for i := len(callee.ArgTypes) - 1; i >= 0; i-- {
		if len(*stack) == 0 {
			return &UnbalancedStackError{Offset: inst.Offset, Reason: "call argument underflow"}
		}
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		args[i] = top.Value
	}

	if callee.LocalMethod != "" {
		id, err := b.CreateCall(callee.ResultType, callee.LocalMethod, args)
		if err != nil {
			return err
		}
		if callee.ResultType != nil {
			*stack = append(*stack, stackSlot{Value: id, Type: callee.ResultType})
		}
		return nil
	}

	key := callee.Key
	if target, ok := reg.Remap(key); ok {
		key = target
	}

	ctx := &intrinsics.InvocationContext{
		Builder:    b,
		Capability: capCtx,
		Callee:     key,
		Args:       args,
		ArgTypes:   callee.ArgTypes,
		ResultType: callee.ResultType,
	}

	var err error
	if key.Type == "Language" {
		err = intrinsics.EmitInline(ctx, intrinsics.LanguageCall{
			Template:   callee.AsmTemplate,
			Directions: callee.AsmDirections,
		})
	} else {
		err = reg.Dispatch(ctx)
	}
	if err != nil {
		return err
	}
	if ctx.Result >= 0 {
		*stack = append(*stack, stackSlot{Value: ctx.Result, Type: callee.ResultType})
	}
	return nil
}
