package ir_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

func newInt32Method(sys *types.System) (*ir.Method, *ir.Builder) {
	i32 := sys.Int32()
	m := ir.NewMethod("add_one", ir.Signature{Params: []*types.Type{i32}, Return: i32}, ir.ScopeDevice)
	return m, ir.NewBuilder(m)
}

func TestBuilderLinearArithmeticAndReturn(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	m, b := newInt32Method(sys)

	one, err := b.CreateConst(i32, 1)
	require.NoError(t, err)
	param := b.AddBlockParam(m.Entry(), i32)
	sum, err := b.CreateBinary(ir.OpAdd, param, one, i32, 0)
	require.NoError(t, err)
	_, err = b.CreateReturn(sum)
	require.NoError(t, err)

	entry := m.Block(m.Entry())
	assert.Equal(t, 3, len(entry.Values)) // const, add, return (block params live in bb.Params, not Values)
	assert.Equal(t, ir.OpReturn, m.Value(entry.Terminator()).Op)
	assert.True(t, entry.Sealed(m))

	uses := m.Uses(one)
	require.Len(t, uses, 1)
	assert.Equal(t, sum, uses[0].User)
}

func TestBuilderRejectsCreationPastTerminator(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m, b := newInt32Method(sys)
	i32 := sys.Int32()

	_, err := b.CreateReturn(-1)
	require.NoError(t, err)

	_, err = b.CreateConst(i32, 42)
	require.Error(t, err)
	var termErr *ir.TerminatorExistsError
	assert.True(t, errors.As(err, &termErr))
	assert.Equal(t, m.Entry(), termErr.Block)
}

func TestBuilderBranchRecordsBlockArgUses(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	b1 := sys.Bool()
	i32 := sys.Int32()
	m := ir.NewMethod("select_like", ir.Signature{Return: i32}, ir.ScopeDevice)
	bld := ir.NewBuilder(m)

	thenBB := bld.NewBlock("then")
	elseBB := bld.NewBlock("else")
	joinBB := bld.NewBlock("join")
	joinParam := bld.AddBlockParam(joinBB, i32)

	cond, err := bld.CreateConst(b1, 1)
	require.NoError(t, err)
	zero, err := bld.CreateConst(i32, 0)
	require.NoError(t, err)
	_, err = bld.CreateBranch(cond, thenBB, elseBB, []ir.ValueID{zero}, []ir.ValueID{zero})
	require.NoError(t, err)

	bld.SetInsertionBlock(thenBB)
	one, err := bld.CreateConst(i32, 1)
	require.NoError(t, err)
	_, err = bld.CreateJump(joinBB, []ir.ValueID{one})
	require.NoError(t, err)

	bld.SetInsertionBlock(elseBB)
	two, err := bld.CreateConst(i32, 2)
	require.NoError(t, err)
	_, err = bld.CreateJump(joinBB, []ir.ValueID{two})
	require.NoError(t, err)

	bld.SetInsertionBlock(joinBB)
	_, err = bld.CreateReturn(joinParam)
	require.NoError(t, err)

	usesOfOne := m.Uses(one)
	require.Len(t, usesOfOne, 1)
	assert.True(t, usesOfOne[0].BlockArg)

	usesOfZero := m.Uses(zero)
	assert.Len(t, usesOfZero, 2) // both branch targets' arg lists
}

func TestWalkVisitsEveryValue(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m, b := newInt32Method(sys)
	i32 := sys.Int32()
	c, _ := b.CreateConst(i32, 7)
	_, _ = b.CreateReturn(c)

	var seen []ir.Opcode
	ir.Walk(m, func(_ ir.BlockID, v *ir.Value) bool {
		seen = append(seen, v.Op)
		return true
	})
	assert.Equal(t, []ir.Opcode{ir.OpConst, ir.OpReturn}, seen)
}

func TestRemoveDeadValue(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m, b := newInt32Method(sys)
	i32 := sys.Int32()
	dead, _ := b.CreateConst(i32, 99)
	live, _ := b.CreateConst(i32, 1)
	_, _ = b.CreateReturn(live)

	require.NoError(t, ir.Remove(m, []ir.ValueID{dead}))
	entry := m.Block(m.Entry())
	assert.Len(t, entry.Values, 2) // live const + return
	for _, id := range entry.Values {
		assert.NotEqual(t, dead, id)
	}
}

func TestRemoveDanglingUseIsRejected(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m, b := newInt32Method(sys)
	i32 := sys.Int32()
	c, _ := b.CreateConst(i32, 99)
	sum, _ := b.CreateBinary(ir.OpAdd, c, c, i32, 0)
	_, _ = b.CreateReturn(sum)

	err := ir.Remove(m, []ir.ValueID{c})
	require.Error(t, err)
	var dangling *ir.DanglingUseError
	assert.True(t, errors.As(err, &dangling))
}

func TestMethodCloneIsIndependent(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	m, b := newInt32Method(sys)
	i32 := sys.Int32()
	c, _ := b.CreateConst(i32, 5)
	_, _ = b.CreateReturn(c)

	clone := m.Clone()
	clone.Value(c).ConstBits = 999

	assert.Equal(t, uint64(5), m.Value(c).ConstBits)
	assert.Equal(t, uint64(999), clone.Value(c).ConstBits)
}
