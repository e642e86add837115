package xpujit_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/backend/ptx"
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/optimize"
	"github.com/xyproto/xpujit/types"
)

// TestDeadPureValueAbsentFromEmittedPTX backs scenario 6: a pure value the
// kernel never reads must not survive to the emitted source, and repeat
// compiles of the same input stay byte-identical.
func TestDeadPureValueAbsentFromEmittedPTX(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)

	compileOnce := func() string {
		f32 := sys.Float32()
		u32 := sys.Int32()
		viewF32 := sys.ViewOf(f32, types.Global)
		ptrF32 := sys.PointerTo(f32, types.Global)

		sig := ir.Signature{Params: []*types.Type{viewF32}, Return: sys.Void()}
		m := ir.NewMethod("copy_through", sig, ir.ScopeKernelEntry)
		b := ir.NewBuilder(m)

		data := b.AddBlockParam(m.Entry(), viewF32)

		idx, err := b.CreateGridIndex(u32, ir.GridThreadIdX)
		require.NoError(t, err)

		// Dead: a distinctive constant and a multiply nothing consumes.
		junk, err := b.CreateConst(u32, 424242)
		require.NoError(t, err)
		_, err = b.CreateBinary(ir.OpMul, junk, junk, u32, 0)
		require.NoError(t, err)

		addr, err := b.CreateLoadElementAddress(ptrF32, data, idx)
		require.NoError(t, err)
		val, err := b.CreateLoad(f32, addr)
		require.NoError(t, err)
		_, err = b.CreateStore(sys.Void(), addr, val)
		require.NoError(t, err)
		_, err = b.CreateReturn(-1)
		require.NoError(t, err)

		m, err = optimize.Run(context.Background(), m, optimize.Options{
			Level:             optimize.LevelFull,
			InliningThreshold: 32,
			Capability:        capability.Default(),
		}, nil)
		require.NoError(t, err)

		k, err := ptx.Lower(sys, m, ptx.Options{Capability: capability.Default()})
		require.NoError(t, err)
		return string(k.Source)
	}

	first := compileOnce()
	assert.NotContains(t, first, "424242", "dead constant must be eliminated:\n%s", first)
	assert.False(t, strings.Contains(first, "mul.s32") || strings.Contains(first, "mul.u32"),
		"dead multiply must be eliminated:\n%s", first)

	second := compileOnce()
	assert.Equal(t, first, second)
}
