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

// TestAtomicFP64RefusedOnSM60 backs scenario 5: a 64-bit atomic on a target
// whose AtomicWidths doesn't include 64 must fail with
// capability.NotSupportedError, not silently emit an unsupported
// instruction (spec.md §8 capability refusal).
func TestAtomicFP64RefusedOnSM60(t *testing.T) {
	sys := types.NewSystem(types.DefaultDataLayout)
	f64 := sys.Float64()
	ptrF64 := sys.PointerTo(f64, types.Global)

	sig := ir.Signature{Params: []*types.Type{ptrF64, f64}, Return: sys.Void()}
	m := ir.NewMethod("atomic_add64", sig, ir.ScopeKernelEntry)
	b := ir.NewBuilder(m)

	addr := b.AddBlockParam(m.Entry(), ptrF64)
	val := b.AddBlockParam(m.Entry(), f64)

	_, err := b.CreateAtomicRMW(f64, ir.AtomicAdd, addr, val)
	require.NoError(t, err)
	_, err = b.CreateReturn(-1)
	require.NoError(t, err)

	capCtx := capability.Default()
	capCtx.Arch = capability.SM60
	capCtx.AtomicWidths = map[int]bool{32: true}

	_, err = ptx.Lower(sys, m, ptx.Options{Capability: capCtx})
	require.Error(t, err)

	var notSupported *capability.NotSupportedError
	assert.ErrorAs(t, err, &notSupported)
	assert.Equal(t, capability.SM70, notSupported.MinArch)
}
