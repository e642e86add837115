package frontend

import "github.com/xyproto/xpujit/types"

// stackShape is the type-only abstraction of an operand stack: its depth
// and the type of each slot, deepest element first. inferStackShapes
// computes one per block boundary ahead of the real IR-building pass.
type stackShape []*types.Type

func equalShape(a, b stackShape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// inferStackShapes computes the operand-stack shape at the entry of every
// reachable block. Block parameters must be declared (ir.Builder.
// AddBlockParam) before any predecessor's terminator can reference them,
// but a stack value's type — unlike a local slot's, which is static from
// MethodBody.Locals — is only known once its defining instruction has run.
// Running this type-only pass first, then seeding the real build with its
// result, is what lets a merge carry a non-empty stack depth at all
// (spec.md §4.3 step 3: "stacks must match in depth and type at every
// merge").
//
// Forward merges (every predecessor's block starts before the target) get
// a real inferred shape, built from whichever forward predecessor's exit
// shape reaches the merge first and validated against the rest. A block
// reached by any backward edge (a loop header) is still required to have
// an empty entry stack: computing its shape would need the not-yet-decoded
// loop body's exit shape, which is exactly the ordering problem described
// above, and the bytecode produced by every caller of this decoder already
// routes loop-carried state through locals rather than the stack.
func inferStackShapes(body MethodBody, sys *types.System, insts []Instruction, blocks []blockSpan) ([]stackShape, error) {
	entry := make([]stackShape, len(blocks))
	exit := make([]stackShape, len(blocks))

	for bi := range blocks {
		if !blocks[bi].reachable {
			continue
		}

		if bi == 0 {
			entry[bi] = nil
		} else {
			backward := false
			for _, p := range blocks[bi].preds {
				if blocks[p].startOffset >= blocks[bi].startOffset {
					backward = true
				}
			}
			if backward {
				entry[bi] = nil
			} else {
				var shape stackShape
				for i, p := range blocks[bi].preds {
					if i == 0 {
						shape = exit[p]
						continue
					}
					if !equalShape(shape, exit[p]) {
						return nil, &UnbalancedStackError{
							Offset: blocks[bi].startOffset,
							Reason: "stack shape mismatch at merge",
						}
					}
				}
				entry[bi] = shape
			}
		}

		stack := append(stackShape(nil), entry[bi]...)
		span := blocks[bi]
		for ii := span.start; ii < span.end; ii++ {
			var err error
			stack, err = applyStackEffect(body, sys, insts[ii], stack)
			if err != nil {
				return nil, err
			}
		}
		exit[bi] = stack

		for _, s := range blocks[bi].succs {
			if blocks[s].startOffset < blocks[bi].startOffset && len(stack) != 0 {
				return nil, &UnbalancedStackError{
					Offset: insts[span.end-1].Offset,
					Reason: "non-empty stack across a backward branch",
				}
			}
		}
	}
	return entry, nil
}

// applyStackEffect applies inst's type-only stack effect to stack, mirroring
// execOne's real per-opcode behavior exactly (arity and result type), but
// without a Builder: no IR is created, only *types.Type bookkeeping.
func applyStackEffect(body MethodBody, sys *types.System, inst Instruction, stack stackShape) (stackShape, error) {
	pop := func() (*types.Type, error) {
		if len(stack) == 0 {
			return nil, &UnbalancedStackError{Offset: inst.Offset, Reason: "pop from empty stack"}
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return t, nil
	}
	push := func(t *types.Type) { stack = append(stack, t) }

	switch inst.Op {
	case OpNop:
		return stack, nil

	case OpPushConst:
		push(body.Consts[inst.Operand].Type)
		return stack, nil

	case OpDup:
		t, err := pop()
		if err != nil {
			return nil, err
		}
		push(t)
		push(t)
		return stack, nil

	case OpPop:
		_, err := pop()
		return stack, err

	case OpLoadLocal:
		push(body.Locals[int(inst.Operand)])
		return stack, nil

	case OpStoreLocal:
		_, err := pop()
		return stack, err

	case OpUnaryArith:
		t, err := pop()
		if err != nil {
			return nil, err
		}
		push(t)
		return stack, nil

	case OpUnaryConvertLike:
		if _, err := pop(); err != nil {
			return nil, err
		}
		push(body.Types[inst.Operand2])
		return stack, nil

	case OpBinaryArith:
		if _, err := pop(); err != nil {
			return nil, err
		}
		lhs, err := pop()
		if err != nil {
			return nil, err
		}
		push(lhs)
		return stack, nil

	case OpCompareOp:
		if _, err := pop(); err != nil {
			return nil, err
		}
		if _, err := pop(); err != nil {
			return nil, err
		}
		push(sys.Bool())
		return stack, nil

	case OpConvertOp:
		if _, err := pop(); err != nil {
			return nil, err
		}
		push(body.Types[inst.Operand])
		return stack, nil

	case OpLoadField:
		agg, err := pop()
		if err != nil {
			return nil, err
		}
		push(agg.Fields()[inst.Operand].Elem)
		return stack, nil

	case OpStoreField:
		if _, err := pop(); err != nil {
			return nil, err
		}
		agg, err := pop()
		if err != nil {
			return nil, err
		}
		push(agg)
		return stack, nil

	case OpLoadElem:
		if _, err := pop(); err != nil {
			return nil, err
		}
		view, err := pop()
		if err != nil {
			return nil, err
		}
		push(view.Elem())
		return stack, nil

	case OpStoreElem:
		if _, err := pop(); err != nil {
			return nil, err
		}
		if _, err := pop(); err != nil {
			return nil, err
		}
		_, err := pop()
		return stack, err

	case OpArrayLiteral:
		blob := body.Blobs[inst.Operand]
		push(sys.ViewOf(blob.ElementType, types.Constant))
		return stack, nil

	case OpCall:
		callee := body.Callees[inst.Operand]
		for i := 0; i < len(callee.ArgTypes); i++ {
			if _, err := pop(); err != nil {
				return nil, err
			}
		}
		if callee.ResultType != nil {
			push(callee.ResultType)
		}
		return stack, nil

	case OpBranchFalse:
		_, err := pop()
		return stack, err

	case OpJump:
		return stack, nil

	case OpSwitch:
		_, err := pop()
		return stack, err

	case OpReturn:
		_, err := pop()
		return stack, err

	case OpReturnVoid, OpUnreachable:
		return stack, nil

	default:
		return nil, &UnsupportedInstructionError{Opcode: inst.Op, Offset: inst.Offset}
	}
}
