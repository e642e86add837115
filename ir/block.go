package ir

import "github.com/xyproto/xpujit/types"

// BlockParam is a value declared on a block header whose runtime value is
// supplied by every predecessor's terminator — the block-parameter
// mechanism that replaces positional phis (spec.md glossary).
type BlockParam struct {
	Value ValueID // the OpParam value representing this parameter
	Type  *types.Type
}

// BasicBlock is an ordered sequence of Values terminated by exactly one
// terminator (spec.md §3). Values are referenced by ValueID into the owning
// Method's arena; BasicBlock itself stores only the order.
type BasicBlock struct {
	ID     BlockID
	Name   string
	Params []BlockParam

	// Values in program order; the last entry, if any, must be a
	// terminator (enforced by Builder, not by this type).
	Values []ValueID

	// Preds is recomputed from the terminators by Method.ComputePreds as
	// predecessor bookkeeping convenient for dominance computation.
	Preds []BlockID
}

// Terminator returns the block's terminator ValueID, or -1 if the block is
// not yet sealed (under construction).
func (b *BasicBlock) Terminator() ValueID {
	if len(b.Values) == 0 {
		return -1
	}
	return b.Values[len(b.Values)-1]
}

// Sealed reports whether b already ends in a terminator.
func (b *BasicBlock) Sealed(m *Method) bool {
	id := b.Terminator()
	if id < 0 {
		return false
	}
	return m.Value(id).IsTerminator()
}
