package frontend

import (
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// ConstBlob is a statically-known byte payload backing an array-literal
// lowering (spec.md §4.3 "array-literal lowering to a view-cast of a
// constant blob").
type ConstBlob struct {
	ElementType *types.Type
	Bits        []uint64 // one raw bit pattern per element, reinterpreted per ElementType
}

// ConstValue is one entry of a method's constant pool, referenced by
// OpPushConst's operand.
type ConstValue struct {
	Type *types.Type
	Bits uint64
}

// SwitchTable is a dense or sparse multi-way branch table referenced by an
// OpSwitch instruction's operand index.
type SwitchTable struct {
	Cases   []ir.SwitchCase // only Value is read; the target of Cases[i] is Offsets[i]
	Offsets []int64         // target byte offset per case, parallel to Cases order
	Default int64
}

// Callee describes one statically resolvable call target the bytecode may
// reference by index: either a remapped/intrinsic method (Key set) or
// another device method defined in the same compilation unit (LocalMethod
// set).
type Callee struct {
	Key         intrinsics.MethodKey
	LocalMethod string
	ArgTypes    []*types.Type
	ResultType  *types.Type

	// Language-intrinsic-only fields; zero for every other callee.
	AsmTemplate   string
	AsmDirections []ir.Direction
}

// MethodBody is the compiler entry point's input contract (spec.md §6): a
// method reference carrying a byte-array body, an ordered parameter
// descriptor, and a signature.
type MethodBody struct {
	Name   string
	Params []*types.Type
	// Locals includes the parameter slots at indices [0, len(Params)),
	// followed by any additional local slots the method declares.
	Locals []*types.Type
	Return *types.Type
	Scope  ir.Scope

	Code    []byte
	Callees []Callee
	Blobs   []ConstBlob
	Tables  []SwitchTable
	Consts  []ConstValue

	// Types is a side table OpConvertOp/OpUnaryConvertLike instructions
	// index into for their explicit result type, since those opcodes
	// change the operand's type rather than preserving it.
	Types []*types.Type

	EnableDebugInfo bool

	// EnableFastMath ORs FlagFastMath into every arithmetic value the
	// decoder creates for this body (spec.md §6 enable_fast_math).
	EnableFastMath bool
}
