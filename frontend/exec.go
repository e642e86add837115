package frontend

import (
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// arithFlags decodes an instruction's flag operand, folding in the
// body-wide fast-math request (spec.md §6 enable_fast_math).
func arithFlags(body MethodBody, operand2 int64) ir.ArithmeticFlags {
	flags := ir.ArithmeticFlags(operand2)
	if body.EnableFastMath {
		flags |= ir.FlagFastMath
	}
	return flags
}

// execOne symbolically executes one instruction against the abstract stack
// and local-slot array, emitting IR via b. blockIDs/blocks are read-only CFG
// metadata computed by Decode; locals is mutated in place.
func execOne(
	b *ir.Builder, sys *types.System, reg *intrinsics.Registry, capCtx capability.Context, body MethodBody,
	blockIDs []ir.BlockID, blocks []blockSpan, needsParams []bool, stack *[]stackSlot, locals []ir.ValueID,
	inst Instruction,
) error {
	if body.EnableDebugInfo {
		b.SetLocation(ir.Location{MethodName: body.Name, Offset: inst.Offset})
	}

	pop := func() (stackSlot, error) {
		if len(*stack) == 0 {
			return stackSlot{}, &UnbalancedStackError{Offset: inst.Offset, Reason: "pop from empty stack"}
		}
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
		return top, nil
	}

	switch inst.Op {
	case OpNop:
		return nil

	case OpPushConst:
		c := body.Consts[inst.Operand]
		id, err := b.CreateConst(c.Type, c.Bits)
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: c.Type})
		return nil

	case OpDup:
		top, err := pop()
		if err != nil {
			return err
		}
		*stack = append(*stack, top, top)
		return nil

	case OpPop:
		_, err := pop()
		return err

	case OpLoadLocal:
		slot := int(inst.Operand)
		*stack = append(*stack, stackSlot{Value: locals[slot], Type: body.Locals[slot]})
		return nil

	case OpStoreLocal:
		v, err := pop()
		if err != nil {
			return err
		}
		locals[int(inst.Operand)] = v.Value
		return nil

	case OpUnaryArith:
		v, err := pop()
		if err != nil {
			return err
		}
		id, err := b.CreateUnary(ir.Opcode(inst.Operand), v.Value, v.Type, arithFlags(body, inst.Operand2))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: v.Type})
		return nil

	case OpUnaryConvertLike:
		v, err := pop()
		if err != nil {
			return err
		}
		resultType := body.Types[inst.Operand2]
		id, err := b.CreateUnary(ir.Opcode(inst.Operand), v.Value, resultType, 0)
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: resultType})
		return nil

	case OpBinaryArith:
		rhs, err := pop()
		if err != nil {
			return err
		}
		lhs, err := pop()
		if err != nil {
			return err
		}
		id, err := b.CreateBinary(ir.Opcode(inst.Operand), lhs.Value, rhs.Value, lhs.Type, arithFlags(body, inst.Operand2))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: lhs.Type})
		return nil

	case OpCompareOp:
		rhs, err := pop()
		if err != nil {
			return err
		}
		lhs, err := pop()
		if err != nil {
			return err
		}
		boolType := sys.Bool()
		id, err := b.CreateCompare(boolType, ir.CompareKind(inst.Operand), lhs.Value, rhs.Value, ir.CompareFlags(inst.Operand2))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: boolType})
		return nil

	case OpConvertOp:
		v, err := pop()
		if err != nil {
			return err
		}
		target := body.Types[inst.Operand]
		id, err := b.CreateConvert(v.Value, target, ir.ArithmeticFlags(inst.Operand2))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: target})
		return nil

	case OpLoadField:
		agg, err := pop()
		if err != nil {
			return err
		}
		fieldType := agg.Type.Fields()[inst.Operand].Elem
		id, err := b.CreateGetField(fieldType, agg.Value, int(inst.Operand))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: fieldType})
		return nil

	case OpStoreField:
		val, err := pop()
		if err != nil {
			return err
		}
		agg, err := pop()
		if err != nil {
			return err
		}
		id, err := b.CreateSetField(agg.Type, agg.Value, val.Value, int(inst.Operand))
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: id, Type: agg.Type})
		return nil

	case OpLoadElem:
		idx, err := pop()
		if err != nil {
			return err
		}
		view, err := pop()
		if err != nil {
			return err
		}
		elemType := view.Type.Elem()
		addrType := sys.PointerTo(elemType, view.Type.AddressSpace())
		addr, err := b.CreateLoadElementAddress(addrType, view.Value, idx.Value)
		if err != nil {
			return err
		}
		loaded, err := b.CreateLoad(elemType, addr)
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: loaded, Type: elemType})
		return nil

	case OpStoreElem:
		val, err := pop()
		if err != nil {
			return err
		}
		idx, err := pop()
		if err != nil {
			return err
		}
		view, err := pop()
		if err != nil {
			return err
		}
		addr, err := b.CreateLoadElementAddress(sys.PointerTo(view.Type.Elem(), view.Type.AddressSpace()), view.Value, idx.Value)
		if err != nil {
			return err
		}
		_, err = b.CreateStore(sys.Void(), addr, val.Value)
		return err

	case OpArrayLiteral:
		// inst.Operand indexes MethodBody.Blobs; the blob itself is
		// resolved by the backend from that same index when it emits the
		// .const declaration, so the frontend only needs to thread the
		// index through as a symbolic pointer constant (ConstBits), not
		// materialize real bytes here.
		blob := body.Blobs[inst.Operand]
		ptrType := sys.PointerTo(blob.ElementType, types.Constant)
		viewType := sys.ViewOf(blob.ElementType, types.Constant)
		ptr, err := b.CreateConst(ptrType, uint64(inst.Operand))
		if err != nil {
			return err
		}
		length, err := b.CreateConst(sys.Int64(), uint64(len(blob.Bits)))
		if err != nil {
			return err
		}
		view, err := b.CreateArrayToViewCast(viewType, ptr, length)
		if err != nil {
			return err
		}
		*stack = append(*stack, stackSlot{Value: view, Type: viewType})
		return nil

	case OpCall:
		return execCall(b, reg, capCtx, body, stack, inst)

	case OpBranchFalse:
		return execBranchFalse(b, blockIDs, blocks, needsParams, locals, stack, inst)

	case OpJump:
		return execJump(b, blockIDs, blocks, needsParams, locals, stack, inst)

	case OpSwitch:
		return execSwitch(b, blockIDs, blocks, needsParams, locals, body, stack, inst)

	case OpReturn:
		v, err := pop()
		if err != nil {
			return err
		}
		_, err = b.CreateReturn(v.Value)
		return err

	case OpReturnVoid:
		_, err := b.CreateReturn(-1)
		return err

	case OpUnreachable:
		_, err := b.CreateUnreachable()
		return err

	default:
		return &UnsupportedInstructionError{Opcode: inst.Op, Offset: inst.Offset}
	}
}
