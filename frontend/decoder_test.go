package frontend_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/frontend"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// emit encodes one fixed-width tape instruction.
func emit(code *[]byte, op frontend.Opcode, operand, operand2 int64) {
	var buf [17]byte
	buf[0] = byte(op)
	binary.LittleEndian.PutUint64(buf[1:], uint64(operand))
	binary.LittleEndian.PutUint64(buf[9:], uint64(operand2))
	*code = append(*code, buf[:]...)
}

func TestDecodeLinearAddOne(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()

	var code []byte
	emit(&code, frontend.OpLoadLocal, 0, 0)
	emit(&code, frontend.OpPushConst, 0, 0)
	emit(&code, frontend.OpBinaryArith, int64(ir.OpAdd), 0)
	emit(&code, frontend.OpReturn, 0, 0)

	body := frontend.MethodBody{
		Name:   "add_one",
		Params: []*types.Type{i32},
		Locals: []*types.Type{i32},
		Return: i32,
		Scope:  ir.ScopeDevice,
		Code:   code,
		Consts: []frontend.ConstValue{{Type: i32, Bits: 1}},
	}

	reg := intrinsics.NewRegistry()
	m, err := frontend.Decode(body, sys, reg, capability.Default())
	require.NoError(t, err)

	entry := m.Block(m.Entry())
	term := m.Value(entry.Terminator())
	assert.Equal(t, ir.OpReturn, term.Op)
}

func TestDecodeBranchMergeSimple(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()
	b1 := sys.Bool()

	type enc struct {
		op   frontend.Opcode
		a, b int64
	}
	// Build instruction list first so offsets are exact multiples of the
	// fixed instruction width, then patch jump targets to those offsets.
	var insts []enc
	insts = append(insts, enc{frontend.OpLoadLocal, 1, 0}) // 0: push cond
	branchIdx := len(insts)
	insts = append(insts, enc{frontend.OpBranchFalse, 0, 0}) // 1: patched below
	insts = append(insts, enc{frontend.OpPushConst, 0, 0})   // 2: push 1
	insts = append(insts, enc{frontend.OpStoreLocal, 0, 0})  // 3
	jumpIdx := len(insts)
	insts = append(insts, enc{frontend.OpJump, 0, 0}) // 4: patched below
	elseStart := len(insts)
	insts = append(insts, enc{frontend.OpPushConst, 1, 0})  // 5: push 2
	insts = append(insts, enc{frontend.OpStoreLocal, 0, 0}) // 6
	joinStart := len(insts)
	insts = append(insts, enc{frontend.OpLoadLocal, 0, 0}) // 7
	insts = append(insts, enc{frontend.OpReturn, 0, 0})    // 8

	const w = 17
	insts[branchIdx].a = int64(elseStart * w)
	insts[jumpIdx].a = int64(joinStart * w)

	var code []byte
	for _, e := range insts {
		emit(&code, e.op, e.a, e.b)
	}

	body := frontend.MethodBody{
		Name:   "select_const",
		Params: []*types.Type{},
		Locals: []*types.Type{i32, b1},
		Return: i32,
		Scope:  ir.ScopeDevice,
		Code:   code,
		Consts: []frontend.ConstValue{
			{Type: i32, Bits: 1},
			{Type: i32, Bits: uint64(math.Float64bits(2))}, // value irrelevant to structural assertions
		},
	}

	reg := intrinsics.NewRegistry()
	m, err := frontend.Decode(body, sys, reg, capability.Default())
	require.NoError(t, err)

	var joinBlockFound bool
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		if len(bb.Params) > 0 {
			joinBlockFound = true
			assert.Equal(t, ir.OpReturn, m.Value(bb.Terminator()).Op)
		}
	}
	assert.True(t, joinBlockFound, "join block should have received block parameters")
}

func TestDecodeRejectsUnbalancedStack(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	i32 := sys.Int32()

	var code []byte
	emit(&code, frontend.OpPushConst, 0, 0)
	emit(&code, frontend.OpReturnVoid, 0, 0) // leaves one value on the stack

	body := frontend.MethodBody{
		Name:   "leaky",
		Locals: []*types.Type{},
		Return: nil,
		Scope:  ir.ScopeDevice,
		Code:   code,
		Consts: []frontend.ConstValue{{Type: i32, Bits: 1}},
	}

	reg := intrinsics.NewRegistry()
	_, err := frontend.Decode(body, sys, reg, capability.Default())
	require.Error(t, err)
}

func TestDecodeUnsupportedInstructionReportsOffset(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	var code []byte
	emit(&code, frontend.Opcode(200), 0, 0)
	body := frontend.MethodBody{Name: "bad", Code: code, Locals: []*types.Type{}}
	reg := intrinsics.NewRegistry()
	_, err := frontend.Decode(body, sys, reg, capability.Default())
	require.Error(t, err)
	var ue *frontend.UnsupportedInstructionError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 0, ue.Offset)
}
