package ptx_test

import (
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/backend/ptx"
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/types"
)

func lower(t *testing.T, sys *types.System, m *ir.Method, capCtx capability.Context) string {
	t.Helper()
	k, err := ptx.Lower(sys, m, ptx.Options{Capability: capCtx})
	require.NoError(t, err)
	return string(k.Source)
}

// Remapped Math.Sqrt reaches the backend as a bare OpSqrt and must lower to
// the direct sqrt.rn.f64 instruction, never a library call.
func TestSqrtLowersToDirectInstruction(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f64 := sys.Float64()

	m := ir.NewMethod("root", ir.Signature{Params: []*types.Type{f64}, Return: f64}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	x := b.AddBlockParam(m.Entry(), f64)
	r, err := b.CreateUnary(ir.OpSqrt, x, f64, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(r)
	require.NoError(t, err)

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "sqrt.rn.f64")
	assert.NotContains(t, src, "call")
}

// Transcendentals with no direct PTX instruction call into the device math
// library; the module must carry a matching .extern declaration, and the
// f32 overload appends the library's "f" suffix.
func TestSinLowersToLibDeviceCall(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f64 := sys.Float64()

	m := ir.NewMethod("sin64", ir.Signature{Params: []*types.Type{f64}, Return: f64}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	x := b.AddBlockParam(m.Entry(), f64)
	r, err := b.CreateUnary(ir.OpSin, x, f64, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(r)
	require.NoError(t, err)

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "call.uni")
	assert.Contains(t, src, "__nv_sin")
	assert.Contains(t, src, ".extern .func")
	assert.NotContains(t, src, "__nv_sinf")
}

func TestFastMathSinF32UsesApprox(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f32 := sys.Float32()

	m := ir.NewMethod("sinf", ir.Signature{Params: []*types.Type{f32}, Return: f32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	x := b.AddBlockParam(m.Entry(), f32)
	r, err := b.CreateUnary(ir.OpSin, x, f32, ir.FlagFastMath)
	require.NoError(t, err)
	_, err = b.CreateReturn(r)
	require.NoError(t, err)

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "sin.approx.f32")
	assert.NotContains(t, src, "call.uni")
}

// Inline PTX escape hatch: the template's %0 slot has direction Out and
// must render as the register allocated to the emitted value, with %%
// collapsing to a literal percent.
func TestInlineAsmRendersAllocatedOutRegister(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	u32 := sys.Int32()

	spans, err := intrinsics.ParseInlineAssembly("mov.u32 %0, %%laneid;", 1)
	require.NoError(t, err)

	m := ir.NewMethod("lane", ir.Signature{Return: u32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	lane, err := b.CreateLanguageEmit(u32, spans, nil, []ir.Direction{ir.DirOut})
	require.NoError(t, err)
	_, err = b.CreateReturn(lane)
	require.NoError(t, err)

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "mov.u32 %r")
	assert.Contains(t, src, ", %laneid;")
	assert.NotContains(t, src, "%0")
}

func buildSwitch(t *testing.T, sys *types.System, caseValues []int64) *ir.Method {
	t.Helper()
	i64 := sys.Int64()
	m := ir.NewMethod("dispatch", ir.Signature{Params: []*types.Type{i64}, Return: sys.Void()}, ir.ScopeKernelEntry)
	b := ir.NewBuilder(m)
	disc := b.AddBlockParam(m.Entry(), i64)

	def := b.NewBlock("default")
	cases := make([]ir.SwitchCase, len(caseValues))
	for i, cv := range caseValues {
		blk := b.NewBlock("case")
		cases[i] = ir.SwitchCase{Value: cv, Block: blk}
		b.SetInsertionBlock(blk)
		_, err := b.CreateReturn(-1)
		require.NoError(t, err)
	}
	b.SetInsertionBlock(def)
	_, err := b.CreateReturn(-1)
	require.NoError(t, err)

	b.SetInsertionBlock(m.Entry())
	_, err = b.CreateSwitch(disc, cases, def)
	require.NoError(t, err)
	return m
}

func TestDenseSwitchEmitsJumpTable(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m := buildSwitch(t, sys, []int64{0, 1, 2, 3})

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "brx.idx")
	assert.Contains(t, src, ".branchtargets")
	assert.NotContains(t, src, "setp.eq.s64")
}

func TestSparseSwitchEmitsPredicateCascade(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m := buildSwitch(t, sys, []int64{0, 5000})

	src := lower(t, sys, m, capability.Default())
	assert.NotContains(t, src, "brx.idx")
	assert.Equal(t, 2, strings.Count(src, "setp.eq.s64"))
}

// buildManyLiveValues returns a method holding n i32 constants all live
// until a final chained sum, forcing register demand past any budget.
func buildManyLiveValues(t *testing.T, sys *types.System, n int) *ir.Method {
	t.Helper()
	i32 := sys.Int32()
	m := ir.NewMethod("pressure", ir.Signature{Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)

	vals := make([]ir.ValueID, n)
	for i := range vals {
		c, err := b.CreateConst(i32, uint64(i))
		require.NoError(t, err)
		vals[i] = c
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		sum, err := b.CreateBinary(ir.OpAdd, acc, v, i32, 0)
		require.NoError(t, err)
		acc = sum
	}
	_, err := b.CreateReturn(acc)
	require.NoError(t, err)
	return m
}

func TestRegisterPressureSpillsToLocal(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m := buildManyLiveValues(t, sys, 24)

	capCtx := capability.Default()
	capCtx.MaxRegistersPerThread = 8 // floors at 8 registers per class

	src := lower(t, sys, m, capCtx)
	assert.Contains(t, src, ".local .align 8 .b8 __spill[")
	assert.Contains(t, src, "st.local.b32 [__spill+")
	assert.Contains(t, src, "ld.local.b32")
}

func TestRegisterPressureExceededFails(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m := buildManyLiveValues(t, sys, 1200) // > 8 regs + 4096/4 spill slots

	capCtx := capability.Default()
	capCtx.MaxRegistersPerThread = 8

	_, err := ptx.Lower(sys, m, ptx.Options{Capability: capCtx})
	require.Error(t, err)
	var pressure *ptx.RegisterPressureExceededError
	require.ErrorAs(t, err, &pressure)
	assert.Greater(t, pressure.Overflow, 0)
}

// Power-of-two constant divisors select a shift, everything else a div.
func TestDivByPowerOfTwoSelectsShift(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()

	m := ir.NewMethod("halve", ir.Signature{Params: []*types.Type{i32}, Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	x := b.AddBlockParam(m.Entry(), i32)
	eight, err := b.CreateConst(i32, 8)
	require.NoError(t, err)
	q, err := b.CreateBinary(ir.OpDiv, x, eight, i32, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(q)
	require.NoError(t, err)

	src := lower(t, sys, m, capability.Default())
	assert.Contains(t, src, "shr.s32")
	assert.NotContains(t, src, "div.s32")
}

// A bare pointer parameter is one 64-bit scalar: exactly one .param slot,
// no phantom _len companion, and a scalar layout entry for the embedder.
func TestPointerParameterIsSingleScalarParam(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f64 := sys.Float64()
	ptrF64 := sys.PointerTo(f64, types.Global)

	sig := ir.Signature{Params: []*types.Type{ptrF64, f64}, Return: sys.Void()}
	m := ir.NewMethod("poke", sig, ir.ScopeKernelEntry)
	b := ir.NewBuilder(m)
	addr := b.AddBlockParam(m.Entry(), ptrF64)
	val := b.AddBlockParam(m.Entry(), f64)
	_, err := b.CreateStore(sys.Void(), addr, val)
	require.NoError(t, err)
	_, err = b.CreateReturn(-1)
	require.NoError(t, err)

	k, err := ptx.Lower(sys, m, ptx.Options{Capability: capability.Default()})
	require.NoError(t, err)

	require.Len(t, k.ParameterLayout, 2)
	assert.Equal(t, kernel.ParamScalar, k.ParameterLayout[0].Kind)
	assert.Equal(t, kernel.SpaceGlobal, k.ParameterLayout[0].Space)

	src := string(k.Source)
	assert.Contains(t, src, "poke_param_0")
	assert.NotContains(t, src, "poke_param_0_len")
	assert.Equal(t, 2, strings.Count(src, "\t.param ."))
}

// Views under register pressure spill both halves independently; every
// spill access, length halves included, must land inside the declared
// `.local __spill[]` depot.
func TestSpilledViewLengthFitsDeclaredSpillDepot(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f32 := sys.Float32()
	i64 := sys.Int64()
	viewF32 := sys.ViewOf(f32, types.Global)

	const nViews = 12 // 24 b64 live ranges, well past the floored 8-register budget
	params := make([]*types.Type, nViews)
	for i := range params {
		params[i] = viewF32
	}
	m := ir.NewMethod("lengths", ir.Signature{Params: params, Return: i64}, ir.ScopeDevice)
	b := ir.NewBuilder(m)

	views := make([]ir.ValueID, nViews)
	for i := range views {
		views[i] = b.AddBlockParam(m.Entry(), viewF32)
	}
	acc := ir.ValueID(-1)
	for _, v := range views {
		length, err := b.CreateViewLength(i64, v)
		require.NoError(t, err)
		if acc < 0 {
			acc = length
			continue
		}
		acc, err = b.CreateBinary(ir.OpAdd, acc, length, i64, 0)
		require.NoError(t, err)
	}
	_, err := b.CreateReturn(acc)
	require.NoError(t, err)

	capCtx := capability.Default()
	capCtx.MaxRegistersPerThread = 8

	k, err := ptx.Lower(sys, m, ptx.Options{Capability: capCtx})
	require.NoError(t, err)
	src := string(k.Source)

	depot := regexp.MustCompile(`\.local \.align 8 \.b8 __spill\[(\d+)\];`).FindStringSubmatch(src)
	require.NotNil(t, depot, "expected a spill depot declaration:\n%s", src)
	depotSize, err := strconv.Atoi(depot[1])
	require.NoError(t, err)

	offsets := regexp.MustCompile(`\[__spill\+(\d+)\]`).FindAllStringSubmatch(src, -1)
	require.NotEmpty(t, offsets, "expected spill traffic under an 8-register budget:\n%s", src)
	for _, match := range offsets {
		off, err := strconv.Atoi(match[1])
		require.NoError(t, err)
		assert.LessOrEqual(t, off+8, depotSize,
			"spill access at +%d overruns __spill[%d]", off, depotSize)
	}
}

func TestLegacyShuffleOnPreVolta(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	u32 := sys.Int32()

	m := ir.NewMethod("shfl", ir.Signature{Params: []*types.Type{u32, u32}, Return: u32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	val := b.AddBlockParam(m.Entry(), u32)
	delta := b.AddBlockParam(m.Entry(), u32)
	r, err := b.CreateWarpShuffle(u32, ir.ShuffleDown, val, delta)
	require.NoError(t, err)
	_, err = b.CreateReturn(r)
	require.NoError(t, err)

	sm70 := capability.Default()
	assert.Contains(t, lower(t, sys, m, sm70), "shfl.sync.down.b32")

	sm60 := capability.Default()
	sm60.Arch = capability.SM60
	src := lower(t, sys, m, sm60)
	assert.Contains(t, src, "shfl.down.b32")
	assert.NotContains(t, src, "shfl.sync")
}
