package ir

// ComputePreds recomputes every block's Preds slice from the current
// terminators, discarding whatever was there before. Passes that splice or
// fold control flow (CFG simplification, inlining) call this once after
// they finish restructuring — the same "rebuild, don't maintain
// incrementally" posture RebuildUseDef takes for the use-def relation.
func (m *Method) ComputePreds() {
	for _, bid := range m.Blocks() {
		m.Block(bid).Preds = nil
	}
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		term := bb.Terminator()
		if term < 0 {
			continue
		}
		tv := m.Value(term)
		for _, target := range tv.Targets {
			tb := m.Block(target)
			tb.Preds = append(tb.Preds, bid)
		}
		if tv.Op == OpSwitch {
			db := m.Block(tv.Default)
			db.Preds = append(db.Preds, bid)
		}
	}
}

// reversePostorder returns m's blocks reachable from the entry in reverse
// postorder — the order the dominator fixpoint below needs to converge in
// a single sweep over a reducible CFG (spec.md §4.3: "the CFG is reducible
// after frontend construction").
func (m *Method) reversePostorder() []BlockID {
	var post []BlockID
	visited := make(map[BlockID]bool)
	var visit func(BlockID)
	visit = func(b BlockID) {
		if visited[b] {
			return
		}
		visited[b] = true
		bb := m.Block(b)
		if term := bb.Terminator(); term >= 0 {
			tv := m.Value(term)
			for _, t := range tv.Targets {
				visit(t)
			}
			if tv.Op == OpSwitch {
				visit(tv.Default)
			}
		}
		post = append(post, b)
	}
	visit(m.Entry())
	rpo := make([]BlockID, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// Dominators computes the immediate-dominator map over m's blocks reachable
// from the entry, using the Cooper/Harvey/Kennedy iterative algorithm (the
// textbook fixpoint form, not a Lengauer-Tarjan tree — this compiler's
// methods are small enough that the simpler algorithm's extra iterations
// don't matter). The entry block is its own dominator.
func (m *Method) Dominators() map[BlockID]BlockID {
	rpo := m.reversePostorder()
	order := make(map[BlockID]int, len(rpo))
	for i, b := range rpo {
		order[b] = i
	}
	m.ComputePreds()

	idom := map[BlockID]BlockID{rpo[0]: rpo[0]}
	for changed := true; changed; {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom BlockID = -1
			for _, p := range m.Block(b).Preds {
				if _, ok := idom[p]; !ok {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = intersectDom(newIdom, p, idom, order)
			}
			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// intersectDom walks two idom-chain finger pointers to their common
// ancestor, using rpo-index comparisons (a smaller index is strictly closer
// to the entry along every idom chain).
func intersectDom(a, b BlockID, idom map[BlockID]BlockID, order map[BlockID]int) BlockID {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// Dominates reports whether a dominates b (including a == b) in the given
// immediate-dominator map.
func Dominates(idom map[BlockID]BlockID, a, b BlockID) bool {
	for {
		if b == a {
			return true
		}
		parent, ok := idom[b]
		if !ok || parent == b {
			return b == a
		}
		b = parent
	}
}
