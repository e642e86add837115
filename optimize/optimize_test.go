package optimize_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/optimize"
	"github.com/xyproto/xpujit/types"
)

func TestFoldPassConstantFolding(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m := ir.NewMethod("k", ir.Signature{Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)

	two, err := b.CreateConst(i32, 2)
	require.NoError(t, err)
	three, err := b.CreateConst(i32, 3)
	require.NoError(t, err)
	sum, err := b.CreateBinary(ir.OpAdd, two, three, i32, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(sum)
	require.NoError(t, err)

	changed, err := optimize.FoldPass{}.Run(m, optimize.Options{})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ir.OpConst, m.Value(sum).Op)
	assert.Equal(t, uint64(5), m.Value(sum).ConstBits)
}

func TestFoldPassAlgebraicIdentity(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m := ir.NewMethod("k", ir.Signature{Params: []*types.Type{i32}, Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)

	param := b.AddBlockParam(m.Entry(), i32)
	zero, err := b.CreateConst(i32, 0)
	require.NoError(t, err)
	sum, err := b.CreateBinary(ir.OpAdd, param, zero, i32, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(sum)
	require.NoError(t, err)

	changed, err := optimize.FoldPass{}.Run(m, optimize.Options{})
	require.NoError(t, err)
	assert.True(t, changed)

	ret := m.Value(m.Block(m.Entry()).Terminator())
	assert.Equal(t, param, ret.Operands[0])
}

func TestDCEPassRemovesUnusedPureValue(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m := ir.NewMethod("k", ir.Signature{Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)

	dead, err := b.CreateConst(i32, 42)
	require.NoError(t, err)
	live, err := b.CreateConst(i32, 1)
	require.NoError(t, err)
	_, err = b.CreateReturn(live)
	require.NoError(t, err)

	changed, err := optimize.DCEPass{}.Run(m, optimize.Options{})
	require.NoError(t, err)
	assert.True(t, changed)

	entry := m.Block(m.Entry())
	for _, id := range entry.Values {
		assert.NotEqual(t, dead, id)
	}
}

func TestRunIsIdempotentOnceAtFixpoint(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m := ir.NewMethod("k", ir.Signature{Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	one, err := b.CreateConst(i32, 1)
	require.NoError(t, err)
	_, err = b.CreateReturn(one)
	require.NoError(t, err)

	opts := optimize.Options{Level: optimize.LevelFull, InliningThreshold: 32}
	_, err = optimize.Run(context.Background(), m, opts, nil)
	require.NoError(t, err)
	before := len(m.Values())

	_, err = optimize.Run(context.Background(), m, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, before, len(m.Values()))
}

func TestRunRespectsCancellation(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m := ir.NewMethod("k", ir.Signature{Return: i32}, ir.ScopeDevice)
	b := ir.NewBuilder(m)
	one, err := b.CreateConst(i32, 1)
	require.NoError(t, err)
	_, err = b.CreateReturn(one)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = optimize.Run(ctx, m, optimize.Options{Level: optimize.LevelBasic}, nil)
	require.Error(t, err)
	var cancelled *optimize.CancelledError
	assert.ErrorAs(t, err, &cancelled)
}
