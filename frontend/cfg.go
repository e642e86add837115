package frontend

import "sort"

// blockSpan is one basic block of the instruction tape: the half-open
// instruction-index range [Start, End) into the flat decoded instruction
// slice, plus the CFG edges discovered by the preliminary scan (spec.md
// §4.3 step 1: "preliminary CFG scan for branch targets").
type blockSpan struct {
	startOffset int
	start, end  int // instruction indices, not byte offsets
	preds       []int
	succs       []int
	reachable   bool
}

// scanBlocks performs the preliminary CFG scan: it finds every instruction
// offset a branch/jump/switch targets, splits the tape into blocks at those
// boundaries (plus offset 0 and the instruction after every terminator),
// and computes predecessor/successor edges between block indices.
func scanBlocks(insts []Instruction, tables []SwitchTable) ([]blockSpan, map[int]int, error) {
	boundarySet := map[int]bool{0: true}
	offsetToIndex := make(map[int]int, len(insts))
	for i, inst := range insts {
		offsetToIndex[inst.Offset] = i
	}

	targetIndexAt := func(origin int, target int64) (int, error) {
		idx, ok := offsetToIndex[int(target)]
		if !ok {
			return 0, &InvalidBranchTargetError{Offset: origin, Target: target}
		}
		return idx, nil
	}
	targetIndex := func(target int64) (int, error) { return targetIndexAt(0, target) }

	for i, inst := range insts {
		switch inst.Op {
		case OpBranchFalse:
			if i+1 < len(insts) {
				boundarySet[i+1] = true
			}
			idx, err := targetIndexAt(inst.Offset, inst.Operand)
			if err != nil {
				return nil, nil, err
			}
			boundarySet[idx] = true
		case OpJump:
			idx, err := targetIndexAt(inst.Offset, inst.Operand)
			if err != nil {
				return nil, nil, err
			}
			boundarySet[idx] = true
			if i+1 < len(insts) {
				boundarySet[i+1] = true
			}
		case OpSwitch:
			if int(inst.Operand) >= len(tables) {
				return nil, nil, &InvalidBranchTargetError{Offset: inst.Offset, Target: inst.Operand}
			}
			table := tables[inst.Operand]
			for _, off := range table.Offsets {
				idx, err := targetIndexAt(inst.Offset, off)
				if err != nil {
					return nil, nil, err
				}
				boundarySet[idx] = true
			}
			idx, err := targetIndexAt(inst.Offset, table.Default)
			if err != nil {
				return nil, nil, err
			}
			boundarySet[idx] = true
			if i+1 < len(insts) {
				boundarySet[i+1] = true
			}
		case OpReturn, OpReturnVoid, OpUnreachable:
			if i+1 < len(insts) {
				boundarySet[i+1] = true
			}
		}
	}

	boundaries := make([]int, 0, len(boundarySet))
	for idx := range boundarySet {
		boundaries = append(boundaries, idx)
	}
	sort.Ints(boundaries)

	blocks := make([]blockSpan, len(boundaries))
	indexToBlock := make(map[int]int, len(insts))
	for bi, start := range boundaries {
		end := len(insts)
		if bi+1 < len(boundaries) {
			end = boundaries[bi+1]
		}
		blocks[bi] = blockSpan{startOffset: insts[start].Offset, start: start, end: end}
		for i := start; i < end; i++ {
			indexToBlock[i] = bi
		}
	}

	addEdge := func(from, toInstIdx int) {
		to := indexToBlock[toInstIdx]
		blocks[from].succs = append(blocks[from].succs, to)
		blocks[to].preds = append(blocks[to].preds, from)
	}

	for bi := range blocks {
		last := blocks[bi].end - 1
		if last < blocks[bi].start {
			continue // empty block (shouldn't occur given boundary construction)
		}
		inst := insts[last]
		switch inst.Op {
		case OpBranchFalse:
			if last+1 < len(insts) {
				addEdge(bi, last+1)
			}
			idx, _ := targetIndex(inst.Operand)
			addEdge(bi, idx)
		case OpJump:
			idx, _ := targetIndex(inst.Operand)
			addEdge(bi, idx)
		case OpSwitch:
			table := tables[inst.Operand]
			for _, off := range table.Offsets {
				idx, _ := targetIndex(off)
				addEdge(bi, idx)
			}
			idx, _ := targetIndex(table.Default)
			addEdge(bi, idx)
		case OpReturn, OpReturnVoid, OpUnreachable:
			// no successors
		default:
			if last+1 < len(insts) {
				addEdge(bi, last+1)
			}
		}
	}

	// Reachability from block 0.
	var stack []int
	blocks[0].reachable = true
	stack = append(stack, 0)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range blocks[cur].succs {
			if !blocks[s].reachable {
				blocks[s].reachable = true
				stack = append(stack, s)
			}
		}
	}

	return blocks, indexToBlock, nil
}
