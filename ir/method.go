package ir

import (
	"github.com/xyproto/xpujit/internal/arena"
	"github.com/xyproto/xpujit/types"
)

// Scope distinguishes a kernel-entry method (callable from the host via a
// launch) from a device function (callable only from other device code).
type Scope int

const (
	ScopeDevice Scope = iota
	ScopeKernelEntry
)

// Signature is a Method's parameter and return types.
type Signature struct {
	Params []*types.Type
	Return *types.Type
}

// Use is a back-reference: "value User reads Def at Operands[OperandIndex]
// (or BlockArgs[TargetIndex][ArgIndex] when BlockArg is true)". The
// use-list is a relation rebuilt by the Builder, never stored inside Value
// itself — per the design note "storing it inside a Value creates borrow
// hazards ... prefer an external side table keyed by value id."
type Use struct {
	User         ValueID
	OperandIndex int
	BlockArg     bool
	TargetIndex  int // which successor, when BlockArg is true
	ArgIndex     int // which argument within that successor's arg list
}

// Method owns an arena of Values and an arena of BasicBlocks, the CFG they
// form, and the use-def relation over them. Every cross-reference inside a
// Method — operand lists, successor targets — is a stable ValueID/BlockID
// into these arenas, never a pointer, which is what makes Clone a cheap
// structural copy (spec.md "Ownership").
type Method struct {
	Name      string
	Sig       Signature
	Scope     Scope
	Inlinable bool // small/marked-inlinable, per spec.md §4.5 "Inlining"

	entry BlockID

	values arena.Arena[Value]
	blocks arena.Arena[BasicBlock]

	useDef map[ValueID][]Use
}

// NewMethod creates an empty Method with one entry block.
func NewMethod(name string, sig Signature, scope Scope) *Method {
	m := &Method{
		Name:   name,
		Sig:    sig,
		Scope:  scope,
		useDef: make(map[ValueID][]Use),
	}
	entry := m.blocks.New(BasicBlock{Name: "entry"})
	m.entry = BlockID(entry)
	m.Block(m.entry).ID = m.entry
	return m
}

// Entry returns the entry BlockID.
func (m *Method) Entry() BlockID { return m.entry }

// Value returns a mutable pointer to the value with the given ID.
func (m *Method) Value(id ValueID) *Value { return m.values.Get(arena.Index(id)) }

// Block returns a mutable pointer to the block with the given ID.
func (m *Method) Block(id BlockID) *BasicBlock { return m.blocks.Get(arena.Index(id)) }

// Blocks returns all BlockIDs in allocation order (not necessarily
// reverse-postorder; use a CFG walk for that).
func (m *Method) Blocks() []BlockID {
	idx := m.blocks.All()
	out := make([]BlockID, len(idx))
	for i, v := range idx {
		out[i] = BlockID(v)
	}
	return out
}

// Values returns all ValueIDs in allocation order.
func (m *Method) Values() []ValueID {
	idx := m.values.All()
	out := make([]ValueID, len(idx))
	for i, v := range idx {
		out[i] = ValueID(v)
	}
	return out
}

// newBlock allocates a fresh, empty block.
func (m *Method) newBlock(name string) BlockID {
	id := BlockID(m.blocks.New(BasicBlock{Name: name}))
	m.Block(id).ID = id
	return id
}

// newValue allocates v in the arena, assigns it an ID, and returns it.
func (m *Method) newValue(v Value) ValueID {
	id := ValueID(m.values.New(v))
	m.Value(id).ID = id
	return id
}

// Uses returns the (possibly empty) use-list for def, i.e. every recorded
// reader of it.
func (m *Method) Uses(def ValueID) []Use { return m.useDef[def] }

// addUse appends use to def's use-list.
func (m *Method) addUse(def ValueID, use Use) {
	m.useDef[def] = append(m.useDef[def], use)
}

// RebuildUseDef recomputes the entire use-def relation from the current
// operand lists. Passes that perform bulk structural surgery (CFG
// simplification, inlining) call this once at the end rather than
// maintaining it incrementally.
func (m *Method) RebuildUseDef() {
	m.useDef = make(map[ValueID][]Use)
	for _, id := range m.Values() {
		v := m.Value(id)
		for oi, def := range v.Operands {
			m.addUse(def, Use{User: id, OperandIndex: oi})
		}
		for ti, args := range v.BlockArgs {
			for ai, def := range args {
				m.addUse(def, Use{User: id, BlockArg: true, TargetIndex: ti, ArgIndex: ai})
			}
		}
	}
}

// Clone deep-copies the Method's arenas and use-def table, producing an
// independent Method whose IDs happen to coincide with the original's
// (arena order is preserved). Every slice a pass edits in place (operands,
// targets, block arguments, switch cases, block contents and parameters)
// is copied too; the inline-assembly template/direction slices and Preds,
// which ComputePreds replaces rather than edits, stay shared. The passes
// in package optimize rewrite a Method in place and do not call Clone.
func (m *Method) Clone() *Method {
	cp := &Method{
		Name:      m.Name,
		Sig:       m.Sig,
		Scope:     m.Scope,
		Inlinable: m.Inlinable,
		entry:     m.entry,
		useDef:    make(map[ValueID][]Use, len(m.useDef)),
	}
	cp.values = *m.values.Clone()
	cp.blocks = *m.blocks.Clone()
	for _, id := range cp.Values() {
		v := cp.Value(id)
		v.Operands = append([]ValueID(nil), v.Operands...)
		v.Targets = append([]BlockID(nil), v.Targets...)
		v.SwitchCases = append([]SwitchCase(nil), v.SwitchCases...)
		v.BlockArgs = append([][]ValueID(nil), v.BlockArgs...)
		for i, args := range v.BlockArgs {
			v.BlockArgs[i] = append([]ValueID(nil), args...)
		}
	}
	for _, bid := range cp.Blocks() {
		bb := cp.Block(bid)
		bb.Values = append([]ValueID(nil), bb.Values...)
		bb.Params = append([]BlockParam(nil), bb.Params...)
	}
	for k, v := range m.useDef {
		cp.useDef[k] = append([]Use(nil), v...)
	}
	return cp
}
