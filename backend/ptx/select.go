package ptx

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// selector carries the per-Method state instruction selection needs:
// the register allocation, the capability gate, and the symbol table for
// shared/local declarations built once up front in emit.go.
type selector struct {
	m       *ir.Method
	alloc   map[ir.ValueID]Allocation
	capCtx  capability.Context
	symbols map[ir.ValueID]string // OpSharedAlloc/OpLocalAlloc -> declared symbol name

	// jumpTableDensity/jumpTableMaxSpan gate OpSwitch's dense-case
	// lowering; see Options.SwitchJumpTableDensity/MaxSpan.
	jumpTableDensity float64
	jumpTableMaxSpan int

	// externs collects LibDevice routines referenced by transcendental
	// lowerings (spec.md §6 "Device-library call"), name -> full
	// `.extern .func` declaration text, emitted sorted ahead of the entry.
	externs map[string]string

	// fused marks OpMul values consumed entirely by a fused multiply-add
	// at their single use site; they emit nothing on their own.
	fused map[ir.ValueID]bool
}

// markFusedMuls precomputes which multiplies selectBinary will fold into an
// fma/mad at their (single) consuming add, so selectValue can skip their
// standalone emission. The match order mirrors selectBinary exactly.
func markFusedMuls(m *ir.Method) map[ir.ValueID]bool {
	fused := make(map[ir.ValueID]bool)
	for _, id := range m.Values() {
		v := m.Value(id)
		if v.Op != ir.OpAdd {
			continue
		}
		for i := 0; i < 2; i++ {
			mulID := v.Operands[i]
			mul := m.Value(mulID)
			if mul.Op == ir.OpMul && len(m.Uses(mulID)) == 1 && !fused[mulID] {
				fused[mulID] = true
				break
			}
		}
	}
	return fused
}

// ref renders the operand text for id: its register name, or (if spilled)
// a load into a reserved scratch register of the same class, written to w
// immediately before the instruction that consumes it.
func (s *selector) ref(w *strings.Builder, id ir.ValueID) string {
	a, ok := s.alloc[id]
	if !ok {
		return "0"
	}
	if !a.Spilled {
		return a.Name()
	}
	scratch := scratchName(a.Class)
	fmt.Fprintf(w, "\tld.local.%s %s, [__spill+%d];\n", ptxType(a.Class), scratch, a.SpillSlot)
	return scratch
}

// def renders the destination register for v and returns v's allocation.
// For a spilled allocation the register is the class's scratch register;
// the caller then passes the allocation to spillBack after the instruction
// text is written, which stores the result back to `.local`.
func (s *selector) def(id ir.ValueID) (string, Allocation) {
	a := s.alloc[id]
	if a.Spilled {
		return scratchName(a.Class), a
	}
	return a.Name(), a
}

func (s *selector) spillBack(w *strings.Builder, a Allocation) {
	if a.Spilled {
		fmt.Fprintf(w, "\tst.local.%s [__spill+%d], %s;\n", ptxType(a.Class), a.SpillSlot, scratchName(a.Class))
	}
}

func scratchName(c RegClass) string {
	return map[RegClass]string{ClassPred: "%pscratch", ClassB16: "%rsscratch", ClassB32: "%rscratch", ClassB64: "%rdscratch"}[c]
}

// scratch2Name is a second per-class scratch register for the few lowerings
// that need two temporaries at once (log-with-base, trailing-zeros).
func scratch2Name(c RegClass) string {
	return map[RegClass]string{ClassPred: "%pscratch2", ClassB16: "%rsscratch2", ClassB32: "%rscratch2", ClassB64: "%rdscratch2"}[c]
}

func ptxType(c RegClass) string {
	return map[RegClass]string{ClassPred: "pred", ClassB16: "b16", ClassB32: "b32", ClassB64: "b64"}[c]
}

// arithSuffix maps a Value's dynamic arithmetic type (Type.Kind, plus the
// unsigned flag) to the PTX instruction-suffix type, e.g. ".s32"/".u32"/
// ".f32". Predicates (comparisons) are typed by the compared operand, not
// by the Bool result, so callers pass the operand Value instead.
func (s *selector) arithSuffix(v *ir.Value) string {
	t := v.Type
	unsigned := v.Flags.Has(ir.FlagUnsigned)
	switch t.Kind() {
	case types.Float16:
		return "f16"
	case types.Float32:
		return "f32"
	case types.Float64:
		return "f64"
	case types.Int8, types.Int16:
		if unsigned {
			return "u16"
		}
		return "s16"
	case types.Int64, types.Pointer, types.View, types.Handle:
		if unsigned {
			return "u64"
		}
		return "s64"
	default: // int32, bool
		if unsigned {
			return "u32"
		}
		return "s32"
	}
}

// selectValue lowers one non-terminator Value into its PTX instruction
// text, appended to w. Opcodes with no lowering template return
// UnsupportedInstructionError, per spec.md §7 ErrUnsupportedInstruction.
func (s *selector) selectValue(w *strings.Builder, v *ir.Value) error {
	switch v.Op {
	case ir.OpParam:
		return nil // block parameters are materialized as `mov`s at each predecessor's terminator, not here

	case ir.OpConst:
		dst, a := s.def(v.ID)
		fmt.Fprintf(w, "\tmov.%s %s, %d;\n", ptxType(a.Class), dst, int64(v.ConstBits))
		s.spillBack(w, a)
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpMin, ir.OpMax:
		return s.selectBinary(w, v)

	case ir.OpDiv:
		return s.selectDiv(w, v)

	case ir.OpRem:
		return s.selectSimpleBinary(w, v, "rem")

	case ir.OpShl:
		return s.selectShift(w, v, "shl.b")
	case ir.OpShrLogical:
		return s.selectShift(w, v, "shr.u")
	case ir.OpShrArithmetic:
		return s.selectShift(w, v, "shr.s")

	case ir.OpNeg:
		return s.selectUnary(w, v, "neg")
	case ir.OpNot:
		return s.selectUnary(w, v, "not")
	case ir.OpAbs:
		return s.selectUnary(w, v, "abs")
	case ir.OpSqrt:
		return s.selectUnary(w, v, "sqrt.rn")
	case ir.OpRcpSqrt:
		return s.selectUnary(w, v, "rsqrt.approx")
	case ir.OpFloor:
		return s.selectUnary(w, v, "cvt.rmi")
	case ir.OpCeiling:
		return s.selectUnary(w, v, "cvt.rpi")
	case ir.OpRound:
		return s.selectUnary(w, v, "cvt.rni")

	case ir.OpSin, ir.OpCos, ir.OpExp2, ir.OpLog2:
		if v.Type.Kind() == types.Float32 && v.Flags.Has(ir.FlagFastMath) {
			approx := map[ir.Opcode]string{
				ir.OpSin: "sin.approx", ir.OpCos: "cos.approx",
				ir.OpExp2: "ex2.approx", ir.OpLog2: "lg2.approx",
			}[v.Op]
			return s.selectUnary(w, v, approx)
		}
		return s.selectLibDeviceCall(w, v)

	case ir.OpTan, ir.OpSinh, ir.OpCosh, ir.OpTanh, ir.OpAsin, ir.OpAcos,
		ir.OpAtan, ir.OpExp, ir.OpLogUnary, ir.OpLog10, ir.OpAtan2, ir.OpPow:
		return s.selectLibDeviceCall(w, v)

	case ir.OpLogBase:
		return s.selectLogBase(w, v)

	case ir.OpPopCount:
		return s.selectBitCount(w, v, "popc", false)
	case ir.OpLeadingZeros:
		return s.selectBitCount(w, v, "clz", false)
	case ir.OpTrailingZeros:
		// PTX has no tzcnt; bit-reverse then count leading zeros.
		return s.selectBitCount(w, v, "clz", true)

	case ir.OpIsNaN:
		return s.selectTestP(w, v, "notanumber")
	case ir.OpIsInfinity:
		return s.selectTestP(w, v, "infinite")
	case ir.OpIsFinite:
		return s.selectTestP(w, v, "finite")

	case ir.OpBitCastToInt, ir.OpBitCastToFloat:
		return s.selectBitCast(w, v)

	case ir.OpFusedMulAdd:
		return s.selectFMA(w, v, v.Operands[0], v.Operands[1], v.Operands[2])

	case ir.OpSelect:
		return s.selectSelect(w, v)
	case ir.OpClamp:
		return s.selectClamp(w, v)

	case ir.OpCompare:
		return s.selectCompare(w, v)

	case ir.OpConvert:
		return s.selectConvert(w, v)

	case ir.OpLoad:
		return s.selectLoad(w, v)
	case ir.OpStore:
		return s.selectStore(w, v)
	case ir.OpLoadElementAddress:
		return s.selectAddress(w, v)

	case ir.OpGridIndex:
		return s.selectGridIndex(w, v)
	case ir.OpGroupBarrier:
		fmt.Fprintf(w, "\tbar.sync 0;\n")
		return nil
	case ir.OpMemoryFence:
		return s.selectFence(w, v)
	case ir.OpWarpShuffle:
		return s.selectShuffle(w, v)

	case ir.OpSharedAlloc, ir.OpLocalAlloc:
		dst, a := s.def(v.ID)
		fmt.Fprintf(w, "\tmov.u64 %s, %s;\n", dst, s.symbols[v.ID])
		s.spillBack(w, a)
		s.storeViewLength(w, a, s.ref(w, v.Operands[0]))
		return nil

	case ir.OpViewLength:
		return s.selectViewLength(w, v)

	case ir.OpAtomicRMW:
		return s.selectAtomicRMW(w, v)
	case ir.OpAtomicCAS:
		return s.selectAtomicCAS(w, v)

	case ir.OpCall:
		return s.selectCall(w, v)

	case ir.OpLanguageEmit:
		return s.selectInlineAsm(w, v)

	case ir.OpDebugAssert:
		fmt.Fprintf(w, "\t// assert: %s\n", v.AssertMessage)
		return nil

	case ir.OpGetField, ir.OpSetField:
		return s.selectAddress(w, v)

	case ir.OpArrayToViewCast:
		return s.selectArrayToViewCast(w, v)

	default:
		return &UnsupportedInstructionError{Op: v.Op}
	}
}

func (s *selector) selectBinary(w *strings.Builder, v *ir.Value) error {
	names := map[ir.Opcode]string{ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul", ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor", ir.OpMin: "min", ir.OpMax: "max"}
	if v.Op == ir.OpMul && s.fused[v.ID] {
		return nil // folded into the consuming add's fma/mad
	}
	// fma fusion: a + (x*y) or (x*y) + a, when the multiply has no other use.
	if v.Op == ir.OpAdd {
		for i := 0; i < 2; i++ {
			mulID := v.Operands[i]
			if s.fused[mulID] && s.m.Value(mulID).Op == ir.OpMul {
				mul := s.m.Value(mulID)
				return s.selectFMA(w, v, mul.Operands[0], mul.Operands[1], v.Operands[1-i])
			}
		}
	}
	return s.selectSimpleBinary(w, v, names[v.Op])
}

func (s *selector) selectSimpleBinary(w *strings.Builder, v *ir.Value, mnemonic string) error {
	lhs := s.ref(w, v.Operands[0])
	rhs := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\t%s.%s %s, %s, %s;\n", mnemonic, s.arithSuffix(v), dst, lhs, rhs)
	s.spillBack(w, a)
	return nil
}

// selectDiv applies the power-of-two-division-to-shift peephole for
// constant integer divisors (spec.md §4.6 instruction-selection list),
// falling back to div.<type> otherwise.
func (s *selector) selectDiv(w *strings.Builder, v *ir.Value) error {
	if v.Type.IsInt() {
		if rhs := s.m.Value(v.Operands[1]); rhs.Op == ir.OpConst {
			n := int64(rhs.ConstBits)
			if n > 0 && n&(n-1) == 0 {
				lhs := s.ref(w, v.Operands[0])
				dst, a := s.def(v.ID)
				fmt.Fprintf(w, "\tshr.%s %s, %s, %d;\n", s.arithSuffix(v), dst, lhs, bits.TrailingZeros64(uint64(n)))
				s.spillBack(w, a)
				return nil
			}
		}
	}
	mnemonic := "div"
	if v.Type.IsFloat() {
		mnemonic = "div.rn"
	}
	return s.selectSimpleBinary(w, v, mnemonic)
}

func (s *selector) selectShift(w *strings.Builder, v *ir.Value, mnemonicPrefix string) error {
	lhs := s.ref(w, v.Operands[0])
	rhs := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	width := "32"
	if c, has, _ := classFor(v.Type); has && c == ClassB64 {
		width = "64"
	}
	fmt.Fprintf(w, "\t%s%s %s, %s, %s;\n", mnemonicPrefix, width, dst, lhs, rhs)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectUnary(w *strings.Builder, v *ir.Value, mnemonic string) error {
	src := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\t%s.%s %s, %s;\n", mnemonic, s.arithSuffix(v), dst, src)
	s.spillBack(w, a)
	return nil
}

// libDeviceStems names the LibDevice routine for each transcendental opcode
// with no direct PTX instruction; the f32 overload appends "f" per the
// library's naming contract (spec.md §6 "Device-library call").
var libDeviceStems = map[ir.Opcode]string{
	ir.OpSin: "sin", ir.OpCos: "cos", ir.OpTan: "tan",
	ir.OpSinh: "sinh", ir.OpCosh: "cosh", ir.OpTanh: "tanh",
	ir.OpAsin: "asin", ir.OpAcos: "acos", ir.OpAtan: "atan",
	ir.OpExp: "exp", ir.OpExp2: "exp2", ir.OpLogUnary: "log",
	ir.OpLog2: "log2", ir.OpLog10: "log10",
	ir.OpAtan2: "atan2", ir.OpPow: "pow",
}

// selectLibDeviceCall lowers a transcendental to a call into the device math
// library, recording the `.extern .func` declaration the module header needs.
func (s *selector) selectLibDeviceCall(w *strings.Builder, v *ir.Value) error {
	stem, ok := libDeviceStems[v.Op]
	if !ok {
		return &UnsupportedInstructionError{Op: v.Op}
	}
	if v.Type.Kind() == types.Float64 && !s.capCtx.FP64 {
		return &capability.NotSupportedError{Feature: "fp64 " + stem, MinArch: capability.SM60, Have: s.capCtx.Arch}
	}
	suffix := s.arithSuffix(v)
	name := "__nv_" + stem
	if v.Type.Kind() == types.Float32 {
		name += "f"
	}
	s.recordExtern(name, suffix, len(v.Operands))

	var args []string
	for _, op := range v.Operands {
		args = append(args, s.ref(w, op))
	}
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tcall.uni (%s), %s, (%s);\n", dst, name, strings.Join(args, ", "))
	s.spillBack(w, a)
	return nil
}

func (s *selector) recordExtern(name, suffix string, arity int) {
	if s.externs == nil {
		s.externs = make(map[string]string)
	}
	if _, ok := s.externs[name]; ok {
		return
	}
	params := make([]string, arity)
	for i := range params {
		params[i] = fmt.Sprintf(".param .%s %s_param_%d", suffix, name, i)
	}
	s.externs[name] = fmt.Sprintf(".extern .func (.param .%s %s_retval0) %s (%s);", suffix, name, name, strings.Join(params, ", "))
}

// selectLogBase lowers log_base(x) as log(x)/log(base) through two LibDevice
// calls, since the library has no log-with-base entry point.
func (s *selector) selectLogBase(w *strings.Builder, v *ir.Value) error {
	if v.Type.Kind() == types.Float64 && !s.capCtx.FP64 {
		return &capability.NotSupportedError{Feature: "fp64 log", MinArch: capability.SM60, Have: s.capCtx.Arch}
	}
	suffix := s.arithSuffix(v)
	name := "__nv_log"
	if v.Type.Kind() == types.Float32 {
		name += "f"
	}
	s.recordExtern(name, suffix, 1)

	x := s.ref(w, v.Operands[0])
	base := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	class := a.Class
	tmp := scratch2Name(class)
	fmt.Fprintf(w, "\tcall.uni (%s), %s, (%s);\n", dst, name, x)
	fmt.Fprintf(w, "\tcall.uni (%s), %s, (%s);\n", tmp, name, base)
	fmt.Fprintf(w, "\tdiv.rn.%s %s, %s, %s;\n", suffix, dst, dst, tmp)
	s.spillBack(w, a)
	return nil
}

// selectBitCount lowers PopCount/LeadingZeros/TrailingZeros. PTX's popc/clz
// always write a 32-bit result, so a 64-bit-typed result is widened with a
// cvt; reverse selects the brev pre-pass TrailingZeros needs.
func (s *selector) selectBitCount(w *strings.Builder, v *ir.Value, mnemonic string, reverse bool) error {
	srcClass, _, err := classFor(s.m.Value(v.Operands[0]).Type)
	if err != nil {
		return err
	}
	src := s.ref(w, v.Operands[0])
	if reverse {
		rev := scratch2Name(srcClass)
		fmt.Fprintf(w, "\tbrev.%s %s, %s;\n", ptxType(srcClass), rev, src)
		src = rev
	}
	dst, a := s.def(v.ID)
	if a.Class == ClassB64 {
		tmp := scratch2Name(ClassB32)
		fmt.Fprintf(w, "\t%s.%s %s, %s;\n", mnemonic, ptxType(srcClass), tmp, src)
		fmt.Fprintf(w, "\tcvt.u64.u32 %s, %s;\n", dst, tmp)
	} else {
		fmt.Fprintf(w, "\t%s.%s %s, %s;\n", mnemonic, ptxType(srcClass), dst, src)
	}
	s.spillBack(w, a)
	return nil
}

// selectTestP lowers IsNaN/IsInfinity/IsFinite to testp.<cond>.<ftype>,
// writing the Bool result's predicate register directly.
func (s *selector) selectTestP(w *strings.Builder, v *ir.Value, cond string) error {
	operand := s.m.Value(v.Operands[0])
	src := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\ttestp.%s.%s %s, %s;\n", cond, s.arithSuffix(operand), dst, src)
	s.spillBack(w, a)
	return nil
}

// selectBitCast reinterprets bits between the int and float views of one
// register class; mov.bNN is exact, no conversion happens.
func (s *selector) selectBitCast(w *strings.Builder, v *ir.Value) error {
	src := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tmov.%s %s, %s;\n", ptxType(a.Class), dst, src)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectFMA(w *strings.Builder, v *ir.Value, x, y, z ir.ValueID) error {
	a1 := s.ref(w, x)
	a2 := s.ref(w, y)
	a3 := s.ref(w, z)
	dst, a := s.def(v.ID)
	mnemonic := "mad.lo"
	if v.Type.IsFloat() {
		mnemonic = "fma.rn"
	}
	fmt.Fprintf(w, "\t%s.%s %s, %s, %s, %s;\n", mnemonic, s.arithSuffix(v), dst, a1, a2, a3)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectSelect(w *strings.Builder, v *ir.Value) error {
	pred := s.ref(w, v.Operands[0])
	t := s.ref(w, v.Operands[1])
	f := s.ref(w, v.Operands[2])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tselp.%s %s, %s, %s, %s;\n", s.arithSuffix(v), dst, t, f, pred)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectClamp(w *strings.Builder, v *ir.Value) error {
	x := s.ref(w, v.Operands[0])
	lo := s.ref(w, v.Operands[1])
	hi := s.ref(w, v.Operands[2])
	dst, a := s.def(v.ID)
	suffix := s.arithSuffix(v)
	fmt.Fprintf(w, "\tmax.%s %s, %s, %s;\n", suffix, dst, x, lo)
	fmt.Fprintf(w, "\tmin.%s %s, %s, %s;\n", suffix, dst, dst, hi)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectCompare(w *strings.Builder, v *ir.Value) error {
	lhs := s.ref(w, v.Operands[0])
	rhs := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	opOperand := s.m.Value(v.Operands[0])
	cmpType := s.arithSuffix(opOperand)
	if v.CmpFlags&ir.CmpFlagUnsigned != 0 {
		cmpType = "u" + strings.TrimLeft(cmpType, "sfu")
	}
	ptxOp := map[ir.CompareKind]string{ir.CmpEq: "eq", ir.CmpNe: "ne", ir.CmpLt: "lt", ir.CmpLe: "le", ir.CmpGt: "gt", ir.CmpGe: "ge"}[v.CmpKind]
	fmt.Fprintf(w, "\tsetp.%s.%s %s, %s, %s;\n", ptxOp, cmpType, dst, lhs, rhs)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectConvert(w *strings.Builder, v *ir.Value) error {
	src := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	from := s.arithSuffix(s.m.Value(v.Operands[0]))
	to := s.arithSuffix(v)
	round := ""
	if v.Type.IsFloat() || v.ConvertTarget != nil && v.ConvertTarget.IsFloat() {
		round = ".rn"
	}
	fmt.Fprintf(w, "\tcvt%s.%s.%s %s, %s;\n", round, to, from, dst, src)
	s.spillBack(w, a)
	return nil
}

// spaceQual renders the address-space qualifier (leading dot included) for
// the memory instruction operating through Operands[0]'s pointer type. A
// Generic pointer takes PTX's unqualified generic form, so the qualifier is
// empty (spec.md §4.6 "the generic form for Generic pointers").
func (s *selector) spaceQual(v *ir.Value) string {
	ptr := v.Operands[0]
	pt := s.m.Value(ptr).Type
	if pt == nil {
		return ".global"
	}
	if pt.AddressSpace() == types.Generic {
		return ""
	}
	return "." + pt.AddressSpace().String()
}

func (s *selector) selectLoad(w *strings.Builder, v *ir.Value) error {
	addr := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tld%s.%s %s, [%s];\n", s.spaceQual(v), ptxType(a.Class), dst, addr)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectStore(w *strings.Builder, v *ir.Value) error {
	addr := s.ref(w, v.Operands[0])
	val := s.ref(w, v.Operands[1])
	valType := s.m.Value(v.Operands[1]).Type
	class, _, err := classFor(valType)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\tst%s.%s [%s], %s;\n", s.spaceQual(v), ptxType(class), addr, val)
	return nil
}

func (s *selector) selectAddress(w *strings.Builder, v *ir.Value) error {
	base := s.ref(w, v.Operands[0])
	dst, a := s.def(v.ID)
	if len(v.Operands) > 1 {
		idx := s.ref(w, v.Operands[1])
		elemSize := uint64(1)
		if elem := v.Type.Elem(); elem != nil {
			if c, has, _ := classFor(elem); has {
				elemSize = uint64(spillSize(c))
			}
		}
		fmt.Fprintf(w, "\tmad.wide.s32 %s, %s, %d, %s;\n", dst, idx, elemSize, base)
	} else {
		fmt.Fprintf(w, "\tadd.s64 %s, %s, %d;\n", dst, base, v.FieldIndex)
	}
	s.spillBack(w, a)
	return nil
}

// selectArrayToViewCast materializes a View from a constant array pointer
// and an explicit length, writing both halves of the paired allocation
// (spec.md §4.6 view ABI). Unlike OpGetField/OpSetField it never scales an
// index off its second operand, which is why it does not share
// selectAddress.
func (s *selector) selectArrayToViewCast(w *strings.Builder, v *ir.Value) error {
	base := s.ref(w, v.Operands[0])
	length := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tmov.u64 %s, %s;\n", dst, base)
	s.spillBack(w, a)
	s.storeViewLength(w, a, length)
	return nil
}

// storeViewLength writes lengthOperand into a's length half, if it has one
// (Allocation.HasLength) — the paired register/spill-slot a View's
// defining value (OpArrayToViewCast, OpSharedAlloc, OpLocalAlloc) carries
// alongside its pointer.
func (s *selector) storeViewLength(w *strings.Builder, a Allocation, lengthOperand string) {
	if !a.HasLength {
		return
	}
	if a.LengthSpilled {
		fmt.Fprintf(w, "\tmov.u64 %s, %s;\n", scratchName(ClassB64), lengthOperand)
		fmt.Fprintf(w, "\tst.local.u64 [__spill+%d], %s;\n", a.LengthSpillSlot, scratchName(ClassB64))
	} else {
		fmt.Fprintf(w, "\tmov.u64 %s, %s;\n", a.LengthName(), lengthOperand)
	}
}

// selectViewLength reads the length half of the View referenced by
// Operands[0], wiring View.Length (intrinsics/memory.go's registerView)
// through to the register allocator's paired allocation.
func (s *selector) selectViewLength(w *strings.Builder, v *ir.Value) error {
	viewAlloc, ok := s.alloc[v.Operands[0]]
	if !ok || !viewAlloc.HasLength {
		return &CodegenInvariantError{Reason: "view_length operand has no paired length allocation"}
	}
	src := viewAlloc.LengthName()
	if viewAlloc.LengthSpilled {
		src = scratchName(ClassB64)
		fmt.Fprintf(w, "\tld.local.u64 %s, [__spill+%d];\n", src, viewAlloc.LengthSpillSlot)
	}
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tmov.%s %s, %s;\n", ptxType(a.Class), dst, src)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectGridIndex(w *strings.Builder, v *ir.Value) error {
	regs := [...]string{"%tid.x", "%tid.y", "%tid.z", "%ctaid.x", "%ctaid.y", "%ctaid.z",
		"%ntid.x", "%ntid.y", "%ntid.z", "%nctaid.x", "%nctaid.y", "%nctaid.z"}
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tmov.u32 %s, %s;\n", dst, regs[v.FieldIndex])
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectFence(w *strings.Builder, v *ir.Value) error {
	fmt.Fprintf(w, "\tmembar.%s;\n", ir.FenceScope(v.FieldIndex))
	return nil
}

// selectShuffle lowers Warp.Shuffle* to shfl.sync on sm_70+ (where warp
// operations without the mask argument were deprecated) or the legacy
// unsynchronized form otherwise, per capability.Context.RequiresSyncWarpOps.
func (s *selector) selectShuffle(w *strings.Builder, v *ir.Value) error {
	if err := s.capCtx.Check("warp shuffle", capability.SM50); err != nil {
		return err
	}
	mode := ir.ShuffleMode(v.FieldIndex).String()
	val := s.ref(w, v.Operands[0])
	delta := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	if s.capCtx.RequiresSyncWarpOps() {
		fmt.Fprintf(w, "\tshfl.sync.%s.b32 %s, %s, %s, 0x1f, 0xffffffff;\n", mode, dst, val, delta)
	} else {
		fmt.Fprintf(w, "\tshfl.%s.b32 %s, %s, %s, 0x1f;\n", mode, dst, val, delta)
	}
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectAtomicRMW(w *strings.Builder, v *ir.Value) error {
	bitWidth := bitsOf(v.Type)
	if !s.capCtx.SupportsAtomicWidth(bitWidth) {
		return &capability.NotSupportedError{Feature: fmt.Sprintf("%d-bit atomics", bitWidth), MinArch: capability.SM70, Have: s.capCtx.Arch}
	}
	addr := s.ref(w, v.Operands[0])
	val := s.ref(w, v.Operands[1])
	dst, a := s.def(v.ID)
	op := ir.AtomicOp(v.FieldIndex).String()
	fmt.Fprintf(w, "\tatom%s.%s.%s %s, [%s], %s;\n", s.spaceQual(v), op, s.arithSuffix(v), dst, addr, val)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectAtomicCAS(w *strings.Builder, v *ir.Value) error {
	bitWidth := bitsOf(v.Type)
	if !s.capCtx.SupportsAtomicWidth(bitWidth) {
		return &capability.NotSupportedError{Feature: fmt.Sprintf("%d-bit atomic CAS", bitWidth), MinArch: capability.SM70, Have: s.capCtx.Arch}
	}
	addr := s.ref(w, v.Operands[0])
	cmp := s.ref(w, v.Operands[1])
	swap := s.ref(w, v.Operands[2])
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tatom%s.cas.%s %s, [%s], %s, %s;\n", s.spaceQual(v), s.arithSuffix(v), dst, addr, cmp, swap)
	s.spillBack(w, a)
	return nil
}

func (s *selector) selectCall(w *strings.Builder, v *ir.Value) error {
	var args []string
	for _, op := range v.Operands {
		args = append(args, s.ref(w, op))
	}
	if v.Type == nil {
		fmt.Fprintf(w, "\tcall.uni %s, (%s);\n", v.Callee, strings.Join(args, ", "))
		return nil
	}
	dst, a := s.def(v.ID)
	fmt.Fprintf(w, "\tcall.uni (%s), %s, (%s);\n", dst, v.Callee, strings.Join(args, ", "))
	s.spillBack(w, a)
	return nil
}

// selectInlineAsm renders a parsed AsmTemplate (ir.AsmSpan list), substituting
// each DirIn/DirInOut argument's allocated register and each DirOut
// argument's destination register, per spec.md §4.4's inline-PTX escape
// hatch.
func (s *selector) selectInlineAsm(w *strings.Builder, v *ir.Value) error {
	// The direction vector parallels template argument slots; Operands
	// holds a value only for In/InOut slots, so an argument's operand
	// index is the count of input slots preceding it.
	operandIndex := make([]int, len(v.AsmDirections))
	inputs := 0
	for i, d := range v.AsmDirections {
		operandIndex[i] = inputs
		if d == ir.DirIn || d == ir.DirInOut {
			inputs++
		}
	}

	var line strings.Builder
	for _, span := range v.AsmTemplate {
		if !span.IsArg {
			line.WriteString(span.Literal)
			continue
		}
		if span.Arg >= len(v.AsmDirections) {
			return &DanglingUseError{Use: fmt.Sprintf("inline asm operand %%%d has no direction", span.Arg)}
		}
		switch v.AsmDirections[span.Arg] {
		case ir.DirOut:
			dst, _ := s.def(v.ID)
			line.WriteString(dst)
		default:
			oi := operandIndex[span.Arg]
			if oi >= len(v.Operands) {
				return &DanglingUseError{Use: fmt.Sprintf("inline asm operand %%%d has no operand", span.Arg)}
			}
			line.WriteString(s.ref(w, v.Operands[oi]))
		}
	}
	fmt.Fprintf(w, "\t%s\n", line.String())
	a := s.alloc[v.ID]
	s.spillBack(w, a)
	return nil
}

// bitsOf returns the bit width of t's class, for capability atomic-width
// checks (spec.md §4.4/§4.6 "capability-gated atomics").
func bitsOf(t *types.Type) int {
	c, has, err := classFor(t)
	if err != nil || !has {
		return 32
	}
	return spillSize(c) * 8
}

// selectTerminator lowers bb's terminator: SSA destruction happens here
// (spec.md §4.5 step 7) by emitting a `mov` into each target block's
// parameter register, for every argument, immediately before the
// branch/jump that transfers control to it.
func (s *selector) selectTerminator(w *strings.Builder, bb *ir.BasicBlock) error {
	term := bb.Terminator()
	if term < 0 {
		return &CodegenInvariantError{Reason: fmt.Sprintf("block %q has no terminator", bb.Name)}
	}
	v := s.m.Value(term)
	switch v.Op {
	case ir.OpReturn:
		if len(v.Operands) == 0 {
			w.WriteString("\tret;\n")
			return nil
		}
		ret := s.ref(w, v.Operands[0])
		class, _, err := classFor(s.m.Value(v.Operands[0]).Type)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tst.param.%s [retval0], %s;\n", ptxType(class), ret)
		w.WriteString("\tret;\n")
		return nil

	case ir.OpJump:
		s.moveBlockArgs(w, v, 0)
		fmt.Fprintf(w, "\tbra.uni %s;\n", blockLabel(s.m, v.Targets[0]))
		return nil

	case ir.OpBranch:
		cond := s.ref(w, v.Operands[0])
		s.moveBlockArgs(w, v, 0)
		fmt.Fprintf(w, "\t@%s bra %s;\n", cond, blockLabel(s.m, v.Targets[0]))
		s.moveBlockArgs(w, v, 1)
		fmt.Fprintf(w, "\tbra.uni %s;\n", blockLabel(s.m, v.Targets[1]))
		return nil

	case ir.OpSwitch:
		return s.selectSwitch(w, v)

	case ir.OpUnreachable:
		w.WriteString("\ttrap;\n")
		return nil

	default:
		return &UnsupportedInstructionError{Op: v.Op}
	}
}

// selectSwitch lowers OpSwitch: a dense run of case values emits a brx.idx
// jump table, a sparse one falls back to a linear setp/bra predicate
// cascade (spec.md §4.6 "dense switches as jump tables... sparse switches
// as predicate cascades — threshold is backend-configurable").
func (s *selector) selectSwitch(w *strings.Builder, v *ir.Value) error {
	disc := s.ref(w, v.Operands[0])
	if slots, base, ok := s.denseSwitchSlots(v); ok {
		s.writeJumpTableSwitch(w, v, disc, slots, base)
		return nil
	}
	for _, c := range v.SwitchCases {
		pred := scratchName(ClassPred)
		fmt.Fprintf(w, "\tsetp.eq.s64 %s, %s, %d;\n", pred, disc, c.Value)
		fmt.Fprintf(w, "\t@%s bra %s;\n", pred, blockLabel(s.m, c.Block))
	}
	fmt.Fprintf(w, "\tbra.uni %s;\n", blockLabel(s.m, v.Default))
	return nil
}

// denseSwitchSlots decides whether v's case values are dense enough for a
// brx.idx jump table, and if so returns one target block per slot in
// [min(case values), max(case values)] — gaps fill with v.Default — plus
// the base value the index is computed relative to.
func (s *selector) denseSwitchSlots(v *ir.Value) (slots []ir.BlockID, base int64, ok bool) {
	if len(v.SwitchCases) == 0 {
		return nil, 0, false
	}
	min, max := v.SwitchCases[0].Value, v.SwitchCases[0].Value
	for _, c := range v.SwitchCases[1:] {
		if c.Value < min {
			min = c.Value
		}
		if c.Value > max {
			max = c.Value
		}
	}
	span := max - min + 1
	if span <= 0 || span > int64(s.jumpTableMaxSpan) {
		return nil, 0, false
	}
	if float64(len(v.SwitchCases))/float64(span) < s.jumpTableDensity {
		return nil, 0, false
	}
	slots = make([]ir.BlockID, span)
	for i := range slots {
		slots[i] = v.Default
	}
	for _, c := range v.SwitchCases {
		slots[c.Value-min] = c.Block
	}
	return slots, min, true
}

// writeJumpTableSwitch emits the brx.idx lowering: subtract base,
// bounds-check the 64-bit offset as unsigned against the default case
// (which also makes an out-of-range or negative discriminant compare as
// "too large" without a separate sign check), narrow it to a 32-bit index,
// then indirect through a .branchtargets list built from slots.
func (s *selector) writeJumpTableSwitch(w *strings.Builder, v *ir.Value, disc string, slots []ir.BlockID, base int64) {
	offset64 := scratchName(ClassB64)
	idx32 := scratchName(ClassB32)
	pred := scratchName(ClassPred)
	fmt.Fprintf(w, "\tsub.s64 %s, %s, %d;\n", offset64, disc, base)
	fmt.Fprintf(w, "\tsetp.gt.u64 %s, %s, %d;\n", pred, offset64, len(slots)-1)
	fmt.Fprintf(w, "\t@%s bra %s;\n", pred, blockLabel(s.m, v.Default))
	fmt.Fprintf(w, "\tcvt.u32.u64 %s, %s;\n", idx32, offset64)
	table := jumpTableLabel(s.m, v)
	fmt.Fprintf(w, "\tbrx.idx %s, %s;\n", idx32, table)
	labels := make([]string, len(slots))
	for i, bid := range slots {
		labels[i] = blockLabel(s.m, bid)
	}
	fmt.Fprintf(w, "%s: .branchtargets %s;\n", table, strings.Join(labels, ", "))
}

func jumpTableLabel(m *ir.Method, v *ir.Value) string {
	return fmt.Sprintf("JT_%s_%d", m.Name, int(v.ID))
}

// moveBlockArgs emits a mov per argument of the successor-th edge into its
// target block-parameter register.
func (s *selector) moveBlockArgs(w *strings.Builder, v *ir.Value, successor int) {
	if successor >= len(v.Targets) {
		return
	}
	target := s.m.Block(v.Targets[successor])
	args := v.BlockArgs[successor]
	for i, argID := range args {
		if i >= len(target.Params) {
			break
		}
		dstAlloc, ok := s.alloc[target.Params[i].Value]
		if !ok {
			continue
		}
		src := s.ref(w, argID)
		if dstAlloc.Spilled {
			fmt.Fprintf(w, "\tst.local.%s [__spill+%d], %s;\n", ptxType(dstAlloc.Class), dstAlloc.SpillSlot, src)
		} else {
			fmt.Fprintf(w, "\tmov.%s %s, %s;\n", ptxType(dstAlloc.Class), dstAlloc.Name(), src)
		}
	}
}
