package ir

import (
	"fmt"

	"github.com/xyproto/xpujit/types"
)

// Builder is the only interface that mutates a Method (spec.md §4.2). All
// IR construction — by the frontend decoder, by intrinsic handlers, and by
// optimizer passes rebuilding a Method — goes through it, so the
// terminator-seals-a-block invariant and the check that a binary op's two
// operands share one type are enforced in exactly one place. The other
// Create methods do not check operand types.
type Builder struct {
	m   *Method
	cur BlockID
	loc Location
}

// NewBuilder returns a Builder inserting into m's entry block.
func NewBuilder(m *Method) *Builder {
	return &Builder{m: m, cur: m.Entry()}
}

// Method returns the Method under construction.
func (b *Builder) Method() *Method { return b.m }

// SetInsertionBlock redirects subsequent creations to block.
func (b *Builder) SetInsertionBlock(block BlockID) { b.cur = block }

// InsertionBlock returns the block new values are currently appended to.
func (b *Builder) InsertionBlock() BlockID { return b.cur }

// SetLocation attaches loc to every value created until changed again; used
// by the frontend when enable_debug_info is set.
func (b *Builder) SetLocation(loc Location) { b.loc = loc }

// NewBlock allocates a fresh, empty block not yet reachable from any
// terminator (the caller wires it in via CreateBranch/CreateJump/
// CreateSwitch).
func (b *Builder) NewBlock(name string) BlockID { return b.m.newBlock(name) }

// AddBlockParam declares a new block parameter on block and returns the
// OpParam value representing it.
func (b *Builder) AddBlockParam(block BlockID, t *types.Type) ValueID {
	id := b.m.newValue(Value{Block: block, Type: t, Op: OpParam, Loc: b.loc})
	bb := b.m.Block(block)
	bb.Params = append(bb.Params, BlockParam{Value: id, Type: t})
	return id
}

// append places a fully-populated Value into the current block, enforcing
// the "no creation past a terminator" and use-def bookkeeping invariants.
func (b *Builder) append(v Value) (ValueID, error) {
	bb := b.m.Block(b.cur)
	if bb.Sealed(b.m) {
		return -1, &TerminatorExistsError{Block: b.cur}
	}
	v.Block = b.cur
	if v.Loc == (Location{}) {
		v.Loc = b.loc
	}
	id := b.m.newValue(v)
	bb.Values = append(bb.Values, id)
	for oi, def := range v.Operands {
		b.m.addUse(def, Use{User: id, OperandIndex: oi})
	}
	for ti, args := range v.BlockArgs {
		for ai, def := range args {
			b.m.addUse(def, Use{User: id, BlockArg: true, TargetIndex: ti, ArgIndex: ai})
		}
	}
	return id, nil
}

func sameType(a, b *types.Type) bool { return a == b }

func checkOperandTypes(op Opcode, expected string, vals ...*types.Type) error {
	for i := 1; i < len(vals); i++ {
		if !sameType(vals[0], vals[i]) {
			return &TypeMismatchError{Op: op, Expected: vals[0].String(), Got: vals[i].String()}
		}
	}
	return nil
}

// CreateConst creates a typed constant value from a raw bit pattern (the
// caller is responsible for encoding floats via math.Float64bits etc.).
func (b *Builder) CreateConst(t *types.Type, bits uint64) (ValueID, error) {
	return b.append(Value{Type: t, Op: OpConst, ConstBits: bits})
}

// CreateUnary creates a unary arithmetic value.
func (b *Builder) CreateUnary(op Opcode, operand ValueID, operandType *types.Type, flags ArithmeticFlags) (ValueID, error) {
	return b.append(Value{Type: operandType, Op: op, Operands: []ValueID{operand}, Flags: flags})
}

// CreateBinary creates a binary arithmetic value. lhs and rhs must share a
// type; the result type equals the operand type except for Compare (use
// CreateCompare for that).
func (b *Builder) CreateBinary(op Opcode, lhs, rhs ValueID, operandType *types.Type, flags ArithmeticFlags) (ValueID, error) {
	if err := checkOperandTypes(op, "", b.m.Value(lhs).Type, b.m.Value(rhs).Type); err != nil {
		return -1, err
	}
	return b.append(Value{Type: operandType, Op: op, Operands: []ValueID{lhs, rhs}, Flags: flags})
}

// CreateTernary creates FusedMulAdd/Select/Clamp.
func (b *Builder) CreateTernary(op Opcode, a, c, d ValueID, resultType *types.Type, flags ArithmeticFlags) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: op, Operands: []ValueID{a, c, d}, Flags: flags})
}

// CreateCompare creates a Bool-typed comparison.
func (b *Builder) CreateCompare(boolType *types.Type, kind CompareKind, lhs, rhs ValueID, flags CompareFlags) (ValueID, error) {
	return b.append(Value{Type: boolType, Op: OpCompare, Operands: []ValueID{lhs, rhs}, CmpKind: kind, CmpFlags: flags})
}

// CreateConvert creates an int/float/pointer conversion.
func (b *Builder) CreateConvert(operand ValueID, target *types.Type, flags ArithmeticFlags) (ValueID, error) {
	return b.append(Value{Type: target, Op: OpConvert, Operands: []ValueID{operand}, ConvertTarget: target, Flags: flags})
}

// CreateLoad reads elemType from a pointer/view-derived address.
func (b *Builder) CreateLoad(elemType *types.Type, addr ValueID) (ValueID, error) {
	return b.append(Value{Type: elemType, Op: OpLoad, Operands: []ValueID{addr}})
}

// CreateStore writes val to addr. OpStore has no result (Void type) and is
// always live per spec.md §4.5.
func (b *Builder) CreateStore(voidType *types.Type, addr, val ValueID) (ValueID, error) {
	return b.append(Value{Type: voidType, Op: OpStore, Operands: []ValueID{addr, val}})
}

// CreateLoadElementAddress computes &view[index]; resultType is a Pointer
// to the view's element type in the view's address space.
func (b *Builder) CreateLoadElementAddress(resultType *types.Type, view, index ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpLoadElementAddress, Operands: []ValueID{view, index}})
}

// CreateArrayToViewCast lowers a statically allocated constant blob
// reference into a View value (spec.md §4.3, array-literal lowering).
func (b *Builder) CreateArrayToViewCast(viewType *types.Type, arrayPtr, length ValueID) (ValueID, error) {
	return b.append(Value{Type: viewType, Op: OpArrayToViewCast, Operands: []ValueID{arrayPtr, length}})
}

// CreateViewLength reads the length half of a {pointer, length} view.
func (b *Builder) CreateViewLength(resultType *types.Type, view ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpViewLength, Operands: []ValueID{view}})
}

// CreateGetField reads struct field index from a by-value aggregate.
func (b *Builder) CreateGetField(fieldType *types.Type, agg ValueID, index int) (ValueID, error) {
	return b.append(Value{Type: fieldType, Op: OpGetField, Operands: []ValueID{agg}, FieldIndex: index})
}

// CreateSetField produces a new aggregate with field index replaced by val.
func (b *Builder) CreateSetField(aggType *types.Type, agg, val ValueID, index int) (ValueID, error) {
	return b.append(Value{Type: aggType, Op: OpSetField, Operands: []ValueID{agg, val}, FieldIndex: index})
}

// CreateCall invokes callee (already resolved, post-remap) with args.
func (b *Builder) CreateCall(resultType *types.Type, callee string, args []ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpCall, Operands: args, Callee: callee})
}

// CreateReturn terminates the current block, optionally with a value
// (voidType's zero Value -1 means no return value).
func (b *Builder) CreateReturn(val ValueID) (ValueID, error) {
	var ops []ValueID
	if val >= 0 {
		ops = []ValueID{val}
	}
	return b.append(Value{Op: OpReturn, Operands: ops})
}

// CreateBranch terminates the current block with a conditional branch.
// trueArgs/falseArgs supply the block-parameter arguments for each target.
func (b *Builder) CreateBranch(cond ValueID, trueBB, falseBB BlockID, trueArgs, falseArgs []ValueID) (ValueID, error) {
	return b.append(Value{
		Op:        OpBranch,
		Operands:  []ValueID{cond},
		Targets:   []BlockID{trueBB, falseBB},
		BlockArgs: [][]ValueID{trueArgs, falseArgs},
	})
}

// CreateJump terminates the current block with an unconditional jump.
func (b *Builder) CreateJump(target BlockID, args []ValueID) (ValueID, error) {
	return b.append(Value{
		Op:        OpJump,
		Targets:   []BlockID{target},
		BlockArgs: [][]ValueID{args},
	})
}

// CreateSwitch terminates the current block with a multi-way branch.
func (b *Builder) CreateSwitch(val ValueID, cases []SwitchCase, def BlockID) (ValueID, error) {
	return b.append(Value{Op: OpSwitch, Operands: []ValueID{val}, SwitchCases: cases, Default: def})
}

// CreateUnreachable terminates the current block with an unreachable trap.
func (b *Builder) CreateUnreachable() (ValueID, error) {
	return b.append(Value{Op: OpUnreachable})
}

// CreateLanguageEmit emits an inline device-assembly escape hatch (spec.md
// §4.2/§4.4). template has already been parsed into literal/argument spans
// by the intrinsics package; operands and directions are parallel vectors.
func (b *Builder) CreateLanguageEmit(resultType *types.Type, template []AsmSpan, operands []ValueID, directions []Direction) (ValueID, error) {
	return b.append(Value{
		Type:          resultType,
		Op:            OpLanguageEmit,
		Operands:      operands,
		AsmTemplate:   template,
		AsmDirections: directions,
	})
}

// InsertValues splices freshly built vals into block at position index,
// before the existing entry (if any) currently at that index. Unlike
// append/CreateXxx this does not require block to be unsealed — it is the
// primitive optimization passes use to rewrite a block's body in place
// (inlining a callee's instructions, splicing a merged predecessor's tail)
// rather than only ever growing toward a terminator.
func (b *Builder) InsertValues(block BlockID, index int, vals []Value) ([]ValueID, error) {
	bb := b.m.Block(block)
	if index < 0 || index > len(bb.Values) {
		return nil, fmt.Errorf("ir: insert index %d out of range for block %d (%d values)", index, block, len(bb.Values))
	}
	ids := make([]ValueID, len(vals))
	for i, v := range vals {
		v.Block = block
		ids[i] = b.m.newValue(v)
	}
	merged := make([]ValueID, 0, len(bb.Values)+len(ids))
	merged = append(merged, bb.Values[:index]...)
	merged = append(merged, ids...)
	merged = append(merged, bb.Values[index:]...)
	bb.Values = merged

	for _, id := range ids {
		v := b.m.Value(id)
		for oi, def := range v.Operands {
			b.m.addUse(def, Use{User: id, OperandIndex: oi})
		}
		for ti, args := range v.BlockArgs {
			for ai, def := range args {
				b.m.addUse(def, Use{User: id, BlockArg: true, TargetIndex: ti, ArgIndex: ai})
			}
		}
	}
	return ids, nil
}

// RemoveAt deletes the value at block's position index from the block's
// program order without touching the arena entry or use-def bookkeeping;
// callers that splice out a value whose uses have already been rewritten
// elsewhere (an inlined call, a dead jump) must call Method.RebuildUseDef
// once they're done restructuring.
func (b *Builder) RemoveAt(block BlockID, index int) {
	bb := b.m.Block(block)
	bb.Values = append(bb.Values[:index:index], bb.Values[index+1:]...)
}

// CreateDebugAssert emits a conditional device-side assertion.
func (b *Builder) CreateDebugAssert(cond ValueID, message string) (ValueID, error) {
	return b.append(Value{Op: OpDebugAssert, Operands: []ValueID{cond}, AssertMessage: message})
}

// CreateGridIndex reads one grid/block coordinate.
func (b *Builder) CreateGridIndex(u32 *types.Type, q GridQuery) (ValueID, error) {
	return b.append(Value{Type: u32, Op: OpGridIndex, FieldIndex: int(q)})
}

// CreateGroupBarrier emits a synchronization point across the thread group.
func (b *Builder) CreateGroupBarrier() (ValueID, error) {
	return b.append(Value{Op: OpGroupBarrier})
}

// CreateMemoryFence emits a memory fence at the given scope.
func (b *Builder) CreateMemoryFence(scope FenceScope) (ValueID, error) {
	return b.append(Value{Op: OpMemoryFence, FieldIndex: int(scope)})
}

// CreateWarpShuffle exchanges val across lanes identified by src according
// to mode.
func (b *Builder) CreateWarpShuffle(resultType *types.Type, mode ShuffleMode, val, src ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpWarpShuffle, Operands: []ValueID{val, src}, FieldIndex: int(mode)})
}

// CreateSharedAlloc reserves count elements of elemType in shared memory,
// returning a View.
func (b *Builder) CreateSharedAlloc(viewType *types.Type, count ValueID) (ValueID, error) {
	return b.append(Value{Type: viewType, Op: OpSharedAlloc, Operands: []ValueID{count}})
}

// CreateLocalAlloc reserves count elements of elemType in thread-local
// memory, returning a View.
func (b *Builder) CreateLocalAlloc(viewType *types.Type, count ValueID) (ValueID, error) {
	return b.append(Value{Type: viewType, Op: OpLocalAlloc, Operands: []ValueID{count}})
}

// CreateAtomicRMW performs an atomic read-modify-write at addr.
func (b *Builder) CreateAtomicRMW(resultType *types.Type, op AtomicOp, addr, val ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpAtomicRMW, Operands: []ValueID{addr, val}, FieldIndex: int(op)})
}

// CreateAtomicCAS performs an atomic compare-and-swap at addr.
func (b *Builder) CreateAtomicCAS(resultType *types.Type, addr, expected, desired ValueID) (ValueID, error) {
	return b.append(Value{Type: resultType, Op: OpAtomicCAS, Operands: []ValueID{addr, expected, desired}})
}
