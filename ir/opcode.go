package ir

// Opcode identifies the operation a Value performs. The set is fixed by
// spec.md §4.2; new primitives are added to the IR, never synthesized from
// combinations at this layer (that's the optimizer's job).
type Opcode int

const (
	OpInvalid Opcode = iota

	// Constants and structural ops.
	OpConst
	OpParam // block-parameter definition (phi replacement)
	OpCall
	OpReturn
	OpBranch
	OpJump
	OpSwitch
	OpUnreachable
	OpLoad
	OpStore
	OpLoadElementAddress
	OpArrayToViewCast
	OpViewLength // View.Length -> the length half of a {pointer, length} view
	OpGetField
	OpSetField
	OpConvert
	OpCompare
	OpLanguageEmit // inline device assembly escape hatch
	OpDebugAssert

	// Unary arithmetic.
	OpNeg
	OpNot
	OpAbs
	OpRcpSqrt
	OpSqrt
	OpSin
	OpCos
	OpTan
	OpSinh
	OpCosh
	OpTanh
	OpAsin
	OpAcos
	OpAtan
	OpExp
	OpExp2
	OpLogUnary
	OpLog2
	OpLog10
	OpFloor
	OpCeiling
	OpRound
	OpIsNaN
	OpIsInfinity
	OpIsFinite
	OpPopCount
	OpLeadingZeros
	OpTrailingZeros
	OpBitCastToInt
	OpBitCastToFloat

	// Binary arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShrLogical
	OpShrArithmetic
	OpMin
	OpMax
	OpAtan2
	OpPow
	OpLogBase

	// Ternary arithmetic.
	OpFusedMulAdd
	OpSelect
	OpClamp

	// Accelerator-domain primitives (spec.md §4.4 intrinsic categories).
	OpGridIndex    // thread/block index component, see GridQuery
	OpGroupBarrier // Group.Barrier -> bar.sync
	OpMemoryFence  // MemoryFence.* -> membar.<scope>
	OpWarpShuffle  // Warp.Shuffle{,Up,Down,Xor} -> shfl.sync.<mode>
	OpSharedAlloc  // SharedMemory.Allocate<T>(n) -> .shared declaration
	OpLocalAlloc   // LocalMemory.Allocate<T>(n) -> .local declaration
	OpAtomicRMW    // Atomic.{Add,Exchange,And,Or,Xor,Min,Max} -> atom.<space>.<op>.<type>
	OpAtomicCAS    // Atomic.CompareExchange -> atom.<space>.cas.<type>
)

// GridQuery selects which grid/block coordinate an OpGridIndex reads,
// encoded in Value.FieldIndex.
type GridQuery int

const (
	GridThreadIdX GridQuery = iota
	GridThreadIdY
	GridThreadIdZ
	GridBlockIdX
	GridBlockIdY
	GridBlockIdZ
	GridBlockDimX
	GridBlockDimY
	GridBlockDimZ
	GridGridDimX
	GridGridDimY
	GridGridDimZ
)

func (g GridQuery) String() string {
	names := [...]string{
		"thread_id.x", "thread_id.y", "thread_id.z",
		"block_id.x", "block_id.y", "block_id.z",
		"block_dim.x", "block_dim.y", "block_dim.z",
		"grid_dim.x", "grid_dim.y", "grid_dim.z",
	}
	if int(g) < len(names) {
		return names[g]
	}
	return "unknown_grid_query"
}

// FenceScope selects the scope of an OpMemoryFence, encoded in
// Value.FieldIndex.
type FenceScope int

const (
	FenceBlock FenceScope = iota
	FenceDevice
	FenceSystem
)

func (s FenceScope) String() string {
	return [...]string{"cta", "gl", "sys"}[s]
}

// ShuffleMode selects the variant of an OpWarpShuffle, encoded in
// Value.FieldIndex.
type ShuffleMode int

const (
	ShuffleIdx ShuffleMode = iota
	ShuffleUp
	ShuffleDown
	ShuffleXor
)

func (m ShuffleMode) String() string {
	return [...]string{"idx", "up", "down", "bfly"}[m]
}

// AtomicOp selects the operation of an OpAtomicRMW, encoded in
// Value.FieldIndex.
type AtomicOp int

const (
	AtomicAdd AtomicOp = iota
	AtomicExchange
	AtomicAnd
	AtomicOr
	AtomicXor
	AtomicMin
	AtomicMax
)

func (op AtomicOp) String() string {
	return [...]string{"add", "exch", "and", "or", "xor", "min", "max"}[op]
}

var opcodeNames = map[Opcode]string{
	OpInvalid: "invalid", OpConst: "const", OpParam: "param", OpCall: "call",
	OpReturn: "return", OpBranch: "branch", OpJump: "jump", OpSwitch: "switch",
	OpUnreachable: "unreachable", OpLoad: "load", OpStore: "store",
	OpLoadElementAddress: "load_element_address", OpArrayToViewCast: "array_to_view_cast",
	OpViewLength: "view_length",
	OpGetField:   "get_field", OpSetField: "set_field", OpConvert: "convert",
	OpCompare: "compare", OpLanguageEmit: "language_emit", OpDebugAssert: "debug_assert",
	OpNeg: "neg", OpNot: "not", OpAbs: "abs", OpRcpSqrt: "rcp_sqrt", OpSqrt: "sqrt",
	OpSin: "sin", OpCos: "cos", OpTan: "tan", OpSinh: "sinh", OpCosh: "cosh", OpTanh: "tanh",
	OpAsin: "asin", OpAcos: "acos", OpAtan: "atan", OpExp: "exp", OpExp2: "exp2",
	OpLogUnary: "log", OpLog2: "log2", OpLog10: "log10", OpFloor: "floor",
	OpCeiling: "ceiling", OpRound: "round", OpIsNaN: "is_nan", OpIsInfinity: "is_infinity",
	OpIsFinite: "is_finite", OpPopCount: "pop_count", OpLeadingZeros: "leading_zeros",
	OpTrailingZeros: "trailing_zeros", OpBitCastToInt: "bitcast_to_int", OpBitCastToFloat: "bitcast_to_float",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpRem: "rem",
	OpAnd: "and", OpOr: "or", OpXor: "xor", OpShl: "shl", OpShrLogical: "shr_logical",
	OpShrArithmetic: "shr_arithmetic", OpMin: "min", OpMax: "max", OpAtan2: "atan2",
	OpPow: "pow", OpLogBase: "log_base",
	OpFusedMulAdd: "fused_mul_add", OpSelect: "select", OpClamp: "clamp",
	OpGridIndex: "grid_index", OpGroupBarrier: "group_barrier", OpMemoryFence: "memory_fence",
	OpWarpShuffle: "warp_shuffle", OpSharedAlloc: "shared_alloc", OpLocalAlloc: "local_alloc",
	OpAtomicRMW: "atomic_rmw", OpAtomicCAS: "atomic_cas",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "unknown"
}

// IsTerminator reports whether op may only appear as the last value in a
// BasicBlock.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpReturn, OpBranch, OpJump, OpSwitch, OpUnreachable:
		return true
	default:
		return false
	}
}

// HasSideEffect reports whether a value with this opcode may never be
// removed by dead-code elimination even if unused, per spec.md §4.5
// ("Terminators and stores are always live").
func (op Opcode) HasSideEffect() bool {
	switch op {
	case OpStore, OpSetField, OpCall, OpDebugAssert, OpLanguageEmit,
		OpGroupBarrier, OpMemoryFence, OpAtomicRMW, OpAtomicCAS:
		return true
	default:
		return op.IsTerminator()
	}
}

// ArithmeticFlags is a bitset of modifiers honored by arithmetic opcodes and
// by the optimizer/backend lowerings that consume them (spec.md §4.2).
type ArithmeticFlags uint8

const (
	FlagUnsigned ArithmeticFlags = 1 << iota
	FlagFastMath
	FlagNoNaN
	FlagNoInf
)

func (f ArithmeticFlags) Has(bit ArithmeticFlags) bool { return f&bit != 0 }

// CompareKind is the predicate of an OpCompare value.
type CompareKind int

const (
	CmpEq CompareKind = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (c CompareKind) String() string {
	return [...]string{"eq", "ne", "lt", "le", "gt", "ge"}[c]
}

// CompareFlags modifies comparison semantics: unsigned integer comparison,
// and ordered-vs-unordered NaN handling for floats.
type CompareFlags uint8

const (
	CmpFlagUnsigned  CompareFlags = 1 << iota
	CmpFlagUnordered              // NaN makes the comparison true (unordered)
)
