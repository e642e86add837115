package optimize

import "github.com/xyproto/xpujit/ir"

// DCEPass implements spec.md §4.5 step 2: a value is dead if unused and
// pure; terminators and stores are always live. Runs to a fixpoint within
// one call since removing one dead value can expose another (an operand
// that only that value used).
type DCEPass struct{}

func (DCEPass) Name() string { return "dce" }

func (DCEPass) Run(m *ir.Method, opts Options) (bool, error) {
	changed := false
	for {
		var dead []ir.ValueID
		for _, id := range m.Values() {
			v := m.Value(id)
			if !v.IsPure() {
				continue
			}
			if len(m.Uses(id)) == 0 && isLive(m, id) {
				dead = append(dead, id)
			}
		}
		if len(dead) == 0 {
			break
		}
		if err := ir.Remove(m, dead); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

// isLive reports whether id is still present in its owning block's program
// order — a value already spliced out by an earlier pass (but whose arena
// slot persists, per internal/arena) must not be "removed" twice.
func isLive(m *ir.Method, id ir.ValueID) bool {
	v := m.Value(id)
	bb := m.Block(v.Block)
	for _, existing := range bb.Values {
		if existing == id {
			return true
		}
	}
	return false
}
