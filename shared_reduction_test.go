package xpujit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyproto/xpujit/backend/ptx"
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// TestSharedMemoryReductionDeclaresBufferAndBarrier backs scenario 2: a
// kernel that stages a per-block value through shared memory and
// synchronizes the group before the next thread reads it must emit a
// `.shared` declaration sized exactly to the allocation and a `bar.sync`
// per synchronization point, with KernelInfo.SharedBytes reporting the
// same total the runtime needs to size the launch.
func TestSharedMemoryReductionDeclaresBufferAndBarrier(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f32 := sys.Float32()
	u32 := sys.Int32()
	viewF32Global := sys.ViewOf(f32, types.Global)
	viewF32Shared := sys.ViewOf(f32, types.Shared)
	ptrF32Global := sys.PointerTo(f32, types.Global)
	ptrF32Shared := sys.PointerTo(f32, types.Shared)

	const n = 1024 // 1024 * 4 bytes == 4096

	sig := ir.Signature{Params: []*types.Type{viewF32Global}, Return: sys.Void()}
	m := ir.NewMethod("block_reduce", sig, ir.ScopeKernelEntry)
	b := ir.NewBuilder(m)

	in := b.AddBlockParam(m.Entry(), viewF32Global)

	tid, err := b.CreateGridIndex(u32, ir.GridThreadIdX)
	require.NoError(t, err)

	count, err := b.CreateConst(u32, n)
	require.NoError(t, err)
	smem, err := b.CreateSharedAlloc(viewF32Shared, count)
	require.NoError(t, err)

	srcAddr, err := b.CreateLoadElementAddress(ptrF32Global, in, tid)
	require.NoError(t, err)
	val, err := b.CreateLoad(f32, srcAddr)
	require.NoError(t, err)

	dstAddr, err := b.CreateLoadElementAddress(ptrF32Shared, smem, tid)
	require.NoError(t, err)
	_, err = b.CreateStore(sys.Void(), dstAddr, val)
	require.NoError(t, err)

	_, err = b.CreateGroupBarrier()
	require.NoError(t, err)

	_, err = b.CreateReturn(-1)
	require.NoError(t, err)

	k, err := ptx.Lower(sys, m, ptx.Options{Capability: capability.Default()})
	require.NoError(t, err)

	src := string(k.Source)
	assert.Contains(t, src, ".shared .align 4 .b8 ")
	assert.Contains(t, src, "[4096];")
	assert.Contains(t, src, "bar.sync 0;")
	assert.Equal(t, 4096, k.KernelInfo.SharedBytes)
}
