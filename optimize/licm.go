package optimize

import "github.com/xyproto/xpujit/ir"

// LICMPass implements spec.md §4.5 step 5: pure values whose operands
// dominate a loop header are hoisted to the header's unique non-back-edge
// predecessor (its preheader). Back edges are detected as edges b -> h
// where h dominates b; loop bodies are approximated as every block h
// dominates, which covers the single-entry natural loops the frontend's
// reducible-CFG construction produces (spec.md §4.3) and also any blocks
// past the loop exit that h dominates. Only pure values whose operands
// already dominate the preheader are moved.
type LICMPass struct{}

func (LICMPass) Name() string { return "licm" }

func (LICMPass) Run(m *ir.Method, opts Options) (bool, error) {
	idom := m.Dominators()
	changed := false

	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		term := bb.Terminator()
		if term < 0 {
			continue
		}
		tv := m.Value(term)
		for _, target := range tv.Targets {
			if !ir.Dominates(idom, target, bid) {
				continue // not a back edge
			}
			header := target
			preheader, ok := uniqueNonBackEdgePred(m, header, bid)
			if !ok {
				continue
			}
			if hoistLoopInvariants(m, header, preheader, idom) {
				changed = true
			}
		}
	}

	if changed {
		m.RebuildUseDef()
	}
	return changed, nil
}

func uniqueNonBackEdgePred(m *ir.Method, header, backEdgeBlock ir.BlockID) (ir.BlockID, bool) {
	var found ir.BlockID = -1
	count := 0
	for _, p := range m.Block(header).Preds {
		if p == backEdgeBlock {
			continue
		}
		found = p
		count++
	}
	if count != 1 {
		return -1, false
	}
	return found, true
}

func hoistLoopInvariants(m *ir.Method, header, preheader ir.BlockID, idom map[ir.BlockID]ir.BlockID) bool {
	changed := false
	hoisted := make(map[ir.ValueID]bool)
	pre := m.Block(preheader)
	insertAt := len(pre.Values)
	if t := pre.Terminator(); t >= 0 {
		insertAt-- // keep the preheader's terminator last
	}

	for _, bid := range m.Blocks() {
		if bid == header || !ir.Dominates(idom, header, bid) {
			continue
		}
		bb := m.Block(bid)
		for _, vid := range append([]ir.ValueID(nil), bb.Values...) {
			v := m.Value(vid)
			if !v.IsPure() || v.IsTerminator() || v.Op == ir.OpParam {
				continue
			}
			if !operandsOutsideLoop(m, v, preheader, idom, hoisted) {
				continue
			}
			bb.Values = removeValueID(bb.Values, vid)
			pre.Values = insertValueID(pre.Values, insertAt, vid)
			v.Block = preheader
			insertAt++
			hoisted[vid] = true
			changed = true
		}
	}
	return changed
}

func operandsOutsideLoop(m *ir.Method, v *ir.Value, preheader ir.BlockID, idom map[ir.BlockID]ir.BlockID, hoisted map[ir.ValueID]bool) bool {
	for _, opID := range v.Operands {
		if hoisted[opID] {
			continue
		}
		op := m.Value(opID)
		if !ir.Dominates(idom, op.Block, preheader) {
			return false
		}
	}
	return true
}

func removeValueID(ids []ir.ValueID, target ir.ValueID) []ir.ValueID {
	out := ids[:0:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func insertValueID(ids []ir.ValueID, at int, v ir.ValueID) []ir.ValueID {
	out := make([]ir.ValueID, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, v)
	out = append(out, ids[at:]...)
	return out
}
