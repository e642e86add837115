package optimize

import "github.com/xyproto/xpujit/ir"

// InlinePass implements spec.md §4.5 step 4: callees marked Inlinable, or
// smaller than Threshold IR values, are cloned into their call sites.
// Direct and one-level-indirect recursive cycles are refused (see
// callsInto); deeper cycles are a pre-existing limitation of this
// approximation, not a soundness hole — an uninlined call is still valid
// IR, just not inlined.
type InlinePass struct {
	Callees   map[string]*ir.Method
	Threshold int
}

func (p InlinePass) Name() string { return "inline" }

func (p InlinePass) Run(m *ir.Method, opts Options) (bool, error) {
	changed := false
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		for i, vid := range bb.Values {
			v := m.Value(vid)
			if v.Op != ir.OpCall {
				continue
			}
			callee, ok := p.Callees[v.Callee]
			if !ok || callee.Name == m.Name || callsInto(callee, m.Name) {
				continue
			}
			if !callee.Inlinable && len(callee.Values()) >= p.Threshold {
				continue
			}
			if err := inlineCallSite(m, bid, i, v, callee); err != nil {
				return changed, err
			}
			changed = true
			// Block contents were just rewritten out from under this
			// range; resume on the pipeline's next round.
			return changed, nil
		}
	}
	if changed {
		m.RebuildUseDef()
	}
	return changed, nil
}

func callsInto(callee *ir.Method, target string) bool {
	for _, vid := range callee.Values() {
		v := callee.Value(vid)
		if v.Op == ir.OpCall && v.Callee == target {
			return true
		}
	}
	return false
}

// inlineCallSite splices callee's body in place of the call at
// bb.Values[callIndex] in callBlock: the call-site block is split into a
// "before" half (which falls through into a fresh copy of callee's entry)
// and a continuation block (which receives the remaining instructions of
// the original block plus, if callee returns a value, a block parameter
// fed by every inlined return).
func inlineCallSite(m *ir.Method, callBlock ir.BlockID, callIndex int, call *ir.Value, callee *ir.Method) error {
	b := ir.NewBuilder(m)
	bb := m.Block(callBlock)

	tail := append([]ir.ValueID(nil), bb.Values[callIndex+1:]...)
	bb.Values = bb.Values[:callIndex]

	cont := b.NewBlock("inline_cont")
	resultParam := ir.ValueID(-1)
	if call.Type != nil {
		resultParam = b.AddBlockParam(cont, call.Type)
	}
	m.Block(cont).Values = tail
	for _, vid := range tail {
		m.Value(vid).Block = cont
	}

	blockMap := make(map[ir.BlockID]ir.BlockID)
	valueMap := make(map[ir.ValueID]ir.ValueID)

	entryParamCount := len(callee.Sig.Params)
	calleeEntry := callee.Block(callee.Entry())
	for i := 0; i < entryParamCount && i < len(call.Operands); i++ {
		valueMap[calleeEntry.Params[i].Value] = call.Operands[i]
	}

	for _, cbid := range callee.Blocks() {
		blockMap[cbid] = b.NewBlock("inline_" + callee.Name)
	}
	for _, cbid := range callee.Blocks() {
		nb := blockMap[cbid]
		cbb := callee.Block(cbid)
		for pi, p := range cbb.Params {
			if cbid == callee.Entry() && pi < entryParamCount {
				continue // already mapped directly to the call's arguments
			}
			valueMap[p.Value] = b.AddBlockParam(nb, p.Type)
		}
	}

	for _, cbid := range callee.Blocks() {
		nb := blockMap[cbid]
		cbb := callee.Block(cbid)
		for _, cvid := range cbb.Values {
			cv := callee.Value(cvid)
			switch cv.Op {
			case ir.OpParam:
				continue
			case ir.OpReturn:
				b.SetInsertionBlock(nb)
				var args []ir.ValueID
				if resultParam >= 0 && len(cv.Operands) > 0 {
					args = []ir.ValueID{remapValueID(valueMap, cv.Operands[0])}
				}
				if _, err := b.CreateJump(cont, args); err != nil {
					return err
				}
			default:
				nv := cloneInlinedValue(cv, blockMap, valueMap)
				b.SetInsertionBlock(nb)
				ids, err := b.InsertValues(nb, len(m.Block(nb).Values), []ir.Value{nv})
				if err != nil {
					return err
				}
				valueMap[cvid] = ids[0]
			}
		}
	}

	b.SetInsertionBlock(callBlock)
	if _, err := b.CreateJump(blockMap[callee.Entry()], nil); err != nil {
		return err
	}

	rewriter := ir.NewRewriter()
	if resultParam >= 0 {
		rewriter.Replace(call.ID, resultParam)
	}
	call.Operands = nil
	call.BlockArgs = nil
	rewriter.ApplyToMethod(m)
	return nil
}

func remapValueID(valueMap map[ir.ValueID]ir.ValueID, id ir.ValueID) ir.ValueID {
	if id < 0 {
		return id
	}
	if nv, ok := valueMap[id]; ok {
		return nv
	}
	return id
}

func remapValueIDs(valueMap map[ir.ValueID]ir.ValueID, ids []ir.ValueID) []ir.ValueID {
	if ids == nil {
		return nil
	}
	out := make([]ir.ValueID, len(ids))
	for i, id := range ids {
		out[i] = remapValueID(valueMap, id)
	}
	return out
}

func cloneInlinedValue(cv *ir.Value, blockMap map[ir.BlockID]ir.BlockID, valueMap map[ir.ValueID]ir.ValueID) ir.Value {
	nv := *cv
	nv.ID = 0
	nv.Block = 0
	nv.Operands = remapValueIDs(valueMap, cv.Operands)

	if cv.BlockArgs != nil {
		nv.BlockArgs = make([][]ir.ValueID, len(cv.BlockArgs))
		for i, args := range cv.BlockArgs {
			nv.BlockArgs[i] = remapValueIDs(valueMap, args)
		}
	}
	if cv.Targets != nil {
		nv.Targets = make([]ir.BlockID, len(cv.Targets))
		for i, t := range cv.Targets {
			nv.Targets[i] = blockMap[t]
		}
	}
	if cv.Op == ir.OpSwitch {
		nv.Default = blockMap[cv.Default]
		cases := make([]ir.SwitchCase, len(cv.SwitchCases))
		for i, c := range cv.SwitchCases {
			cases[i] = ir.SwitchCase{Value: c.Value, Block: blockMap[c.Block]}
		}
		nv.SwitchCases = cases
	}
	return nv
}
