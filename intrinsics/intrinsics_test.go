package intrinsics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

func newCtx(t *testing.T, sys *types.System) (*intrinsics.Registry, *intrinsics.InvocationContext, *ir.Method) {
	t.Helper()
	f64 := sys.Float64()
	m := ir.NewMethod("k", ir.Signature{Params: []*types.Type{f64}, Return: f64}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	param := b.AddBlockParam(m.Entry(), f64)
	reg := intrinsics.NewRegistry()
	ctx := &intrinsics.InvocationContext{
		Builder:    b,
		System:     sys,
		Capability: capability.Default(),
		Args:       []ir.ValueID{param},
		ArgTypes:   []*types.Type{f64},
		ResultType: f64,
	}
	return reg, ctx, m
}

func TestMathRemapThenDispatchSqrt(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	reg, ctx, m := newCtx(t, sys)

	target, ok := reg.Remap(intrinsics.MethodKey{Type: "Math", Method: "Sqrt"})
	require.True(t, ok)
	assert.Equal(t, intrinsics.MethodKey{Type: "Device", Method: "Sqrt"}, target)

	ctx.Callee = target
	require.NoError(t, reg.Dispatch(ctx))
	require.GreaterOrEqual(t, int(ctx.Result), 0)
	assert.Equal(t, ir.OpSqrt, m.Value(ctx.Result).Op)
}

func TestUnknownCalleeIsUnsupportedIntrinsic(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	reg, ctx, _ := newCtx(t, sys)
	ctx.Callee = intrinsics.MethodKey{Type: "Nope", Method: "Nope"}
	err := reg.Dispatch(ctx)
	require.Error(t, err)
	var u *intrinsics.UnsupportedIntrinsicError
	assert.True(t, errors.As(err, &u))
}

func TestInteropRejectsReflection(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	reg, ctx, _ := newCtx(t, sys)
	ctx.Callee = intrinsics.MethodKey{Type: "Object", Method: "GetType"}
	err := reg.Dispatch(ctx)
	require.Error(t, err)
	var u *intrinsics.UnsupportedOperationError
	assert.True(t, errors.As(err, &u))
}

func TestParseInlineAssemblyLaneId(t *testing.T) {
	spans, err := intrinsics.ParseInlineAssembly("mov.u32 %0, %%laneid;", 1)
	require.NoError(t, err)
	require.Len(t, spans, 3)
	assert.Equal(t, "mov.u32 ", spans[0].Literal)
	assert.True(t, spans[1].IsArg)
	assert.Equal(t, 0, spans[1].Arg)
	assert.Equal(t, ", %laneid;", spans[2].Literal)
}

func TestParseInlineAssemblyRejectsOutOfRangeArg(t *testing.T) {
	_, err := intrinsics.ParseInlineAssembly("%1", 1)
	require.Error(t, err)
	var iae *intrinsics.InvalidInlineAssemblyError
	assert.True(t, errors.As(err, &iae))
}

func TestGridIndexDispatch(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	reg, ctx, m := newCtx(t, sys)
	ctx.ResultType = sys.Int32()
	ctx.Callee = intrinsics.MethodKey{Type: "Grid", Method: "ThreadIdX"}
	require.NoError(t, reg.Dispatch(ctx))
	assert.Equal(t, ir.OpGridIndex, m.Value(ctx.Result).Op)
	assert.Equal(t, int(ir.GridThreadIdX), m.Value(ctx.Result).FieldIndex)
}
