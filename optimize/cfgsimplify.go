package optimize

import "github.com/xyproto/xpujit/ir"

// CFGSimplifyPass implements spec.md §4.5 step 3: fold a conditional
// branch whose condition is constant into an unconditional jump, then
// merge a block into its unique predecessor when that predecessor ends in
// an unconditional jump to it.
type CFGSimplifyPass struct{}

func (CFGSimplifyPass) Name() string { return "cfg-simplify" }

func (CFGSimplifyPass) Run(m *ir.Method, opts Options) (bool, error) {
	changed := foldConstantBranches(m)
	if changed {
		m.RebuildUseDef()
	}
	if mergeOneBlock(m) {
		changed = true
	}
	return changed, nil
}

func foldConstantBranches(m *ir.Method) bool {
	changed := false
	for _, id := range m.Values() {
		v := m.Value(id)
		if v.Op != ir.OpBranch {
			continue
		}
		cond := m.Value(v.Operands[0])
		if cond.Op != ir.OpConst {
			continue
		}
		target, args := v.Targets[1], v.BlockArgs[1]
		if cond.ConstBits != 0 {
			target, args = v.Targets[0], v.BlockArgs[0]
		}
		v.Op = ir.OpJump
		v.Operands = nil
		v.Targets = []ir.BlockID{target}
		v.BlockArgs = [][]ir.ValueID{args}
		changed = true
	}
	return changed
}

// mergeOneBlock folds at most one predecessor/successor pair per call
// (topology changes invalidate m.Blocks() iteration state); the pipeline's
// fixed-point driver calls the pass again on the next round to fold
// further chains.
func mergeOneBlock(m *ir.Method) bool {
	m.ComputePreds()
	for _, predID := range m.Blocks() {
		pred := m.Block(predID)
		term := pred.Terminator()
		if term < 0 {
			continue
		}
		tv := m.Value(term)
		if tv.Op != ir.OpJump {
			continue
		}
		succID := tv.Targets[0]
		if succID == predID || succID == m.Entry() {
			continue
		}
		succ := m.Block(succID)
		if len(succ.Preds) != 1 || succ.Preds[0] != predID {
			continue
		}

		rewriter := ir.NewRewriter()
		for i, p := range succ.Params {
			rewriter.Replace(p.Value, tv.BlockArgs[0][i])
		}
		rewriter.ApplyToMethod(m)

		pred.Values = pred.Values[:len(pred.Values)-1] // drop the jump terminator
		pred.Values = append(pred.Values, succ.Values...)
		for _, vid := range succ.Values {
			m.Value(vid).Block = predID
		}
		succ.Values = nil
		succ.Params = nil
		m.RebuildUseDef()
		return true
	}
	return false
}
