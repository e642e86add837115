package compiler_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/compiler"
	"github.com/xyproto/xpujit/frontend"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/optimize"
	"github.com/xyproto/xpujit/types"
)

func emit(code *[]byte, op frontend.Opcode, operand, operand2 int64) {
	var buf [17]byte
	buf[0] = byte(op)
	binary.LittleEndian.PutUint64(buf[1:], uint64(operand))
	binary.LittleEndian.PutUint64(buf[9:], uint64(operand2))
	*code = append(*code, buf[:]...)
}

// sqrtRef builds the scenario-3 input: a device function calling the
// standard library's Sqrt(double) on its sole parameter.
func sqrtRef(sys *types.System) compiler.MethodRef {
	f64 := sys.Float64()

	var code []byte
	emit(&code, frontend.OpLoadLocal, 0, 0)
	emit(&code, frontend.OpCall, 0, 0)
	emit(&code, frontend.OpReturn, 0, 0)

	return compiler.MethodRef{
		System: sys,
		Body: frontend.MethodBody{
			Name:   "root_of",
			Params: []*types.Type{f64},
			Locals: []*types.Type{f64},
			Return: f64,
			Scope:  ir.ScopeDevice,
			Code:   code,
			Callees: []frontend.Callee{{
				Key:        intrinsics.MethodKey{Type: "Math", Method: "Sqrt"},
				ArgTypes:   []*types.Type{f64},
				ResultType: f64,
			}},
		},
	}
}

func defaultOptions() compiler.Options {
	return compiler.Options{
		OptimizationLevel: optimize.LevelFull,
		InliningThreshold: 32,
	}
}

// TestCompileRemapsSqrtToDirectInstruction is scenario 3 end to end: the
// Math.Sqrt call is remapped at decode time, so the emitted PTX carries
// sqrt.rn.f64 and no residual library call.
func TestCompileRemapsSqrtToDirectInstruction(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	k, err := compiler.Compile(context.Background(), sqrtRef(sys), kernel.BackendPTX,
		capability.Default(), defaultOptions(), compiler.Diagnostics{})
	require.NoError(t, err)

	src := string(k.Source)
	assert.Contains(t, src, "sqrt.rn.f64")
	assert.NotContains(t, src, "call")
	assert.NotContains(t, src, "Sqrt")
	assert.Equal(t, kernel.BackendPTX, k.Backend)
	assert.Equal(t, "root_of", k.EntryPoint)
	require.Len(t, k.ParameterLayout, 1)
	assert.Equal(t, kernel.ParamScalar, k.ParameterLayout[0].Kind)
}

func TestCompileCancelledReturnsNoKernel(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := compiler.NewStats()
	opts := defaultOptions()
	opts.Stats = stats

	k, err := compiler.Compile(ctx, sqrtRef(sys), kernel.BackendPTX,
		capability.Default(), opts, compiler.Diagnostics{})
	require.Error(t, err)
	assert.Nil(t, k)

	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compiler.ErrCancelled, ce.Kind)

	_, _, cancelled := stats.Snapshot()
	assert.Equal(t, int64(1), cancelled)
}

func TestCompileRejectsBackendWithoutLowering(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	_, err := compiler.Compile(context.Background(), sqrtRef(sys), kernel.BackendOpenCL,
		capability.Default(), defaultOptions(), compiler.Diagnostics{})
	require.Error(t, err)

	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compiler.ErrUnsupportedOperation, ce.Kind)
}

func TestCompileClassifiesDecodeFailure(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)

	var code []byte
	emit(&code, frontend.Opcode(250), 0, 0)
	ref := compiler.MethodRef{
		System: sys,
		Body: frontend.MethodBody{
			Name: "bad", Code: code, Locals: []*types.Type{}, Scope: ir.ScopeDevice,
		},
	}

	stats := compiler.NewStats()
	opts := defaultOptions()
	opts.Stats = stats

	_, err := compiler.Compile(context.Background(), ref, kernel.BackendPTX,
		capability.Default(), opts, compiler.Diagnostics{})
	require.Error(t, err)

	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, compiler.ErrUnsupportedInstruction, ce.Kind)
	assert.Equal(t, "decode", ce.Stage)
	assert.Equal(t, "bad", ce.Location.MethodName)

	_, failed, _ := stats.Snapshot()
	assert.Equal(t, int64(1), failed)
}

func TestCompileAllSharesOneTypeSystem(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	refs := []compiler.MethodRef{sqrtRef(sys), sqrtRef(sys), sqrtRef(sys)}

	stats := compiler.NewStats()
	opts := defaultOptions()
	opts.Stats = stats

	kernels, err := compiler.CompileAll(context.Background(), refs, kernel.BackendPTX,
		capability.Default(), opts, compiler.Diagnostics{})
	require.NoError(t, err)
	require.Len(t, kernels, 3)
	for _, k := range kernels {
		require.NotNil(t, k)
		assert.Contains(t, string(k.Source), "sqrt.rn.f64")
	}

	succeeded, _, _ := stats.Snapshot()
	assert.Equal(t, int64(3), succeeded)
}

func TestCompileFastMathPropagatesToArithmeticFlags(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f32 := sys.Float32()

	var code []byte
	emit(&code, frontend.OpLoadLocal, 0, 0)
	emit(&code, frontend.OpLoadLocal, 0, 0)
	emit(&code, frontend.OpBinaryArith, int64(ir.OpMul), 0)
	emit(&code, frontend.OpUnaryArith, int64(ir.OpSin), 0)
	emit(&code, frontend.OpReturn, 0, 0)

	ref := compiler.MethodRef{
		System: sys,
		Body: frontend.MethodBody{
			Name:   "fm",
			Params: []*types.Type{f32},
			Locals: []*types.Type{f32},
			Return: f32,
			Scope:  ir.ScopeDevice,
			Code:   code,
		},
	}

	opts := defaultOptions()
	opts.EnableFastMath = true
	k, err := compiler.Compile(context.Background(), ref, kernel.BackendPTX,
		capability.Default(), opts, compiler.Diagnostics{})
	require.NoError(t, err)
	assert.Contains(t, string(k.Source), "sin.approx.f32")
}
