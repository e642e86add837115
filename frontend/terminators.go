package frontend

import "github.com/xyproto/xpujit/ir"

// blockArgsFor returns the block-argument vector to pass to successor
// block bi: the current locals snapshot followed by the current stack
// snapshot when the target was declared with parameters, or nil when it
// simply inherits state from its unique predecessor. Locals come first
// because that's the order AddBlockParam declared them in (frontend/
// decoder.go adds every local's param before any stack-value param for a
// merge block), and BlockArgs must line up positionally with Params.
func blockArgsFor(needsParams []bool, targetBlock int, locals []ir.ValueID, stack []stackSlot) []ir.ValueID {
	if !needsParams[targetBlock] {
		return nil
	}
	args := append([]ir.ValueID(nil), locals...)
	for _, s := range stack {
		args = append(args, s.Value)
	}
	return args
}

func execBranchFalse(b *ir.Builder, blockIDs []ir.BlockID, blocks []blockSpan, needsParams []bool, locals []ir.ValueID, stack *[]stackSlot, inst Instruction) error {
	if len(*stack) == 0 {
		return &UnbalancedStackError{Offset: inst.Offset, Reason: "branch_false with empty stack"}
	}
	cond := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]

	falseIdx := blockIndexOf(blocks, inst.Operand)
	trueIdx := currentBlockFallthrough(blocks, inst)

	trueArgs := blockArgsFor(needsParams, trueIdx, locals, *stack)
	falseArgs := blockArgsFor(needsParams, falseIdx, locals, *stack)

	_, err := b.CreateBranch(cond.Value, blockIDs[trueIdx], blockIDs[falseIdx], trueArgs, falseArgs)
	return err
}

func execJump(b *ir.Builder, blockIDs []ir.BlockID, blocks []blockSpan, needsParams []bool, locals []ir.ValueID, stack *[]stackSlot, inst Instruction) error {
	target := blockIndexOf(blocks, inst.Operand)
	args := blockArgsFor(needsParams, target, locals, *stack)
	_, err := b.CreateJump(blockIDs[target], args)
	return err
}

func execSwitch(b *ir.Builder, blockIDs []ir.BlockID, blocks []blockSpan, needsParams []bool, locals []ir.ValueID, body MethodBody, stack *[]stackSlot, inst Instruction) error {
	if len(*stack) == 0 {
		return &UnbalancedStackError{Offset: inst.Offset, Reason: "switch with empty stack"}
	}
	v := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]

	table := body.Tables[inst.Operand]
	cases := make([]ir.SwitchCase, len(table.Cases))
	for i, c := range table.Cases {
		targetIdx := blockIndexOf(blocks, table.Offsets[i])
		cases[i] = ir.SwitchCase{Value: c.Value, Block: blockIDs[targetIdx]}
	}
	defIdx := blockIndexOf(blocks, table.Default)
	_, err := b.CreateSwitch(v.Value, cases, blockIDs[defIdx])
	return err
}

// blockIndexOf finds the block whose startOffset equals target. The CFG
// scan guarantees every branch target lands on a boundary, so this never
// misses.
func blockIndexOf(blocks []blockSpan, target int64) int {
	for i, blk := range blocks {
		if int64(blk.startOffset) == target {
			return i
		}
	}
	return -1
}

// currentBlockFallthrough returns the block index immediately following
// inst's own block — the "true" branch of a BranchFalse, taken when the
// condition holds.
func currentBlockFallthrough(blocks []blockSpan, inst Instruction) int {
	for i, blk := range blocks {
		if blk.startOffset > inst.Offset {
			return i
		}
	}
	return -1
}
