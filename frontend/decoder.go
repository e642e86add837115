package frontend

import (
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

type stackSlot struct {
	Value ir.ValueID
	Type  *types.Type
}

// Decode translates one MethodBody into an ir.Method via work-list
// symbolic execution over an abstract operand stack and a local-slot array,
// inserting block parameters at merge points instead of positional phis
// (spec.md §4.3).
func Decode(body MethodBody, sys *types.System, reg *intrinsics.Registry, capCtx capability.Context) (*ir.Method, error) {
	insts, err := decodeAll(body.Code)
	if err != nil {
		return nil, err
	}
	if len(insts) == 0 {
		return nil, &UnsupportedInstructionError{Offset: 0}
	}
	blocks, _, err := scanBlocks(insts, body.Tables)
	if err != nil {
		return nil, err
	}
	stackShapes, err := inferStackShapes(body, sys, insts, blocks)
	if err != nil {
		return nil, err
	}

	sig := ir.Signature{Params: body.Params, Return: body.Return}
	m := ir.NewMethod(body.Name, sig, body.Scope)
	b := ir.NewBuilder(m)

	blockIDs := make([]ir.BlockID, len(blocks))
	entryLocals := make([][]ir.ValueID, len(blocks))
	entryStack := make([][]ir.ValueID, len(blocks))
	needsParams := make([]bool, len(blocks))

	blockIDs[0] = m.Entry()
	for _, p := range body.Params {
		entryLocals[0] = append(entryLocals[0], b.AddBlockParam(m.Entry(), p))
	}
	for i := len(body.Params); i < len(body.Locals); i++ {
		zero, zerr := b.CreateConst(body.Locals[i], 0)
		if zerr != nil {
			return nil, zerr
		}
		entryLocals[0] = append(entryLocals[0], zero)
	}

	for bi := 1; bi < len(blocks); bi++ {
		if !blocks[bi].reachable {
			continue
		}
		blockIDs[bi] = b.NewBlock(blockName(bi))
	}

	for bi := range blocks {
		if bi == 0 || !blocks[bi].reachable {
			continue
		}
		np := len(blocks[bi].preds) != 1
		if !np {
			predOffset := blocks[blocks[bi].preds[0]].startOffset
			np = predOffset >= blocks[bi].startOffset
		}
		needsParams[bi] = np
		if np {
			params := make([]ir.ValueID, len(body.Locals))
			for slot, lt := range body.Locals {
				params[slot] = b.AddBlockParam(blockIDs[bi], lt)
			}
			entryLocals[bi] = params

			// Stack-value params come after every local's param, in
			// shape order — blockArgsFor (terminators.go) builds its
			// argument vector in the same locals-then-stack order.
			shape := stackShapes[bi]
			if len(shape) > 0 {
				stackParams := make([]ir.ValueID, len(shape))
				for slot, st := range shape {
					stackParams[slot] = b.AddBlockParam(blockIDs[bi], st)
				}
				entryStack[bi] = stackParams
			}
		}
	}

	exitLocals := make([][]ir.ValueID, len(blocks))
	exitLocals[0] = nil // filled once block 0 is processed below
	exitStack := make([][]stackSlot, len(blocks))

	for bi := range blocks {
		if !blocks[bi].reachable {
			continue
		}
		var locals []ir.ValueID
		if bi == 0 {
			locals = append([]ir.ValueID(nil), entryLocals[0]...)
		} else if needsParams[bi] {
			locals = append([]ir.ValueID(nil), entryLocals[bi]...)
		} else {
			pred := blocks[bi].preds[0]
			locals = append([]ir.ValueID(nil), exitLocals[pred]...)
		}

		b.SetInsertionBlock(blockIDs[bi])

		var stack []stackSlot
		switch {
		case bi == 0:
			// empty at method entry
		case needsParams[bi]:
			shape := stackShapes[bi]
			for slot, id := range entryStack[bi] {
				stack = append(stack, stackSlot{Value: id, Type: shape[slot]})
			}
		default:
			pred := blocks[bi].preds[0]
			stack = append([]stackSlot(nil), exitStack[pred]...)
		}

		span := blocks[bi]
		for ii := span.start; ii < span.end; ii++ {
			inst := insts[ii]
			if err := execOne(b, sys, reg, capCtx, body, blockIDs, blocks, needsParams, &stack, locals, inst); err != nil {
				return nil, err
			}
		}
		if len(blocks[bi].succs) == 0 && len(stack) != 0 {
			last := insts[span.end-1]
			return nil, &UnbalancedStackError{Offset: last.Offset, Reason: "non-empty stack at method exit"}
		}
		exitLocals[bi] = locals
		exitStack[bi] = stack
	}

	m.RebuildUseDef()
	return m, nil
}

func blockName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "bb_" + string(letters[i])
	}
	return "bb"
}
