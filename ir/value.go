package ir

import "github.com/xyproto/xpujit/types"

// ValueID is a stable index into a Method's value arena. Inlining gives
// every copied callee value a fresh ID in the caller rather than aliasing
// the callee's; Method.Clone keeps the original IDs.
type ValueID int

// BlockID is a stable index into a Method's block arena.
type BlockID int

// Direction is the data-flow direction of one operand of an inline
// device-assembly template (spec.md §4.4).
type Direction int

const (
	DirIn Direction = iota
	DirOut
	DirInOut
)

// AsmSpan is one piece of a parsed inline-assembly template: either a
// literal string or a reference to operand Arg.
type AsmSpan struct {
	Literal string
	IsArg   bool
	Arg     int // index into the owning Value's Operands, valid when IsArg
}

// SwitchCase pairs a constant value with the BlockID to jump to.
type SwitchCase struct {
	Value int64
	Block BlockID
}

// Value is one SSA definition: assigned exactly once, referencing only
// values defined in this block or in a dominating block (spec.md §3).
//
// Rather than a closed hierarchy of per-opcode Go types, Value is one
// struct with fields used selectively by opcode — the same flat-record
// style the teacher uses for RegisterOp/MemoryLoad (ast.go) and for
// Register (reg.go): a handful of named fields interpreted according to a
// small tag, which keeps the arena homogeneous (a single Arena[Value] per
// Method) instead of needing an arena per concrete node type.
type Value struct {
	ID    ValueID
	Block BlockID
	Type  *types.Type
	Op    Opcode
	Loc   Location

	// Operands: value IDs consumed by this value, in the opcode's declared
	// order. For OpBranch: [cond]. For OpJump: []. For OpCall: callee args.
	Operands []ValueID

	Flags    ArithmeticFlags
	CmpKind  CompareKind
	CmpFlags CompareFlags

	// OpConst
	ConstBits uint64 // raw bit pattern, reinterpreted per Type

	// OpConvert
	ConvertTarget *types.Type

	// OpGetField / OpSetField / OpLoadElementAddress (field index variant)
	FieldIndex int

	// OpCall
	Callee string // resolved callee symbol, post-remap

	// OpBranch / OpJump: successor blocks and the block-parameter arguments
	// passed to each, in target-block-parameter order.
	Targets   []BlockID
	BlockArgs [][]ValueID

	// OpSwitch
	SwitchCases []SwitchCase
	Default     BlockID

	// OpLanguageEmit
	AsmTemplate   []AsmSpan
	AsmDirections []Direction

	// OpDebugAssert
	AssertMessage string
}

// Uses returns the value IDs this value reads, including those embedded in
// block-argument lists of a terminator — the operand set a liveness /
// use-def pass must walk.
func (v *Value) Uses() []ValueID {
	all := append([]ValueID(nil), v.Operands...)
	for _, args := range v.BlockArgs {
		all = append(all, args...)
	}
	return all
}

// IsTerminator reports whether v ends its BasicBlock.
func (v *Value) IsTerminator() bool { return v.Op.IsTerminator() }

// IsPure reports whether v may be removed by DCE when unused (spec.md
// §4.5: "A value is dead if unused and pure").
func (v *Value) IsPure() bool { return !v.Op.HasSideEffect() }
