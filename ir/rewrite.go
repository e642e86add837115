package ir

// Visitor receives every Value in a Method in block/program order. Returning
// false from Visit stops the walk early.
type Visitor func(blk BlockID, v *Value) bool

// Walk visits every value of m in block-allocation, then program, order.
// Callers that need reverse-postorder (dominance-sensitive passes) compute
// their own order and call m.Value directly; Walk is for order-agnostic
// bookkeeping passes like DCE's liveness marking.
func Walk(m *Method, visit Visitor) {
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		for _, id := range bb.Values {
			if !visit(bid, m.Value(id)) {
				return
			}
		}
	}
}

// Rewriter maps old operand ValueIDs to new ones, used when a pass replaces
// some values and must patch every remaining reference in place.
type Rewriter struct {
	replace map[ValueID]ValueID
}

// NewRewriter creates an empty operand substitution map.
func NewRewriter() *Rewriter {
	return &Rewriter{replace: make(map[ValueID]ValueID)}
}

// Replace records that every future reference to old should read repl
// instead.
func (r *Rewriter) Replace(old, repl ValueID) {
	r.replace[old] = repl
}

func (r *Rewriter) resolve(id ValueID) ValueID {
	seen := map[ValueID]bool{}
	for {
		next, ok := r.replace[id]
		if !ok || seen[id] {
			return id
		}
		seen[id] = true
		id = next
	}
}

// Apply rewrites every operand and block-argument reference in v in place.
func (r *Rewriter) Apply(v *Value) {
	for i, id := range v.Operands {
		v.Operands[i] = r.resolve(id)
	}
	for ti, args := range v.BlockArgs {
		for ai, id := range args {
			v.BlockArgs[ti][ai] = r.resolve(id)
		}
	}
}

// ApplyToMethod rewrites every value's operands in m, then rebuilds use-def
// to match the new operand sets.
func (r *Rewriter) ApplyToMethod(m *Method) {
	for _, id := range m.Values() {
		r.Apply(m.Value(id))
	}
	m.RebuildUseDef()
}

// Remove deletes the given values from their blocks and drops their
// use-def entries. It returns a DanglingUseError if any removed value still
// has a recorded use outside the removal set — callers (DCE) are expected to
// compute the removal set in dependency order so this never triggers in
// practice; it exists as an invariant check, not a recovery path.
func Remove(m *Method, dead []ValueID) error {
	deadSet := make(map[ValueID]bool, len(dead))
	for _, id := range dead {
		deadSet[id] = true
	}
	for _, id := range dead {
		for _, use := range m.Uses(id) {
			if !deadSet[use.User] {
				return &DanglingUseError{Def: id, User: use.User}
			}
		}
	}
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		kept := bb.Values[:0:0]
		for _, id := range bb.Values {
			if !deadSet[id] {
				kept = append(kept, id)
			}
		}
		bb.Values = kept
	}
	// A removed value's arena slot outlives the removal (the arena never
	// shrinks, per internal/arena's bump-allocator contract), but its
	// Operands/BlockArgs must not keep registering it as a reader once
	// RebuildUseDef rescans every arena entry — otherwise a value dropped
	// in one DCE round would permanently pin its own operands as "used"
	// and block a later round from ever collecting them.
	for _, id := range dead {
		v := m.Value(id)
		v.Operands = nil
		v.BlockArgs = nil
	}
	m.RebuildUseDef()
	return nil
}
