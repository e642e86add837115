package capability_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xyproto/xpujit/capability"
)

func TestDefaultRequiresSyncWarpOps(t *testing.T) {
	ctx := capability.Default()
	assert.True(t, ctx.RequiresSyncWarpOps())
}

func TestLegacyArchDoesNotRequireSync(t *testing.T) {
	ctx := capability.Default()
	ctx.Arch = capability.SM50
	assert.False(t, ctx.RequiresSyncWarpOps())
}

func TestCheckFailsBelowMinArch(t *testing.T) {
	ctx := capability.Default()
	ctx.Arch = capability.SM60
	err := ctx.Check("tensor-core mma", capability.SM70)
	assert.Error(t, err)
	var nse *capability.NotSupportedError
	assert.True(t, errors.As(err, &nse))
	assert.Equal(t, capability.SM70, nse.MinArch)
}

func TestSupportsAtomicWidth(t *testing.T) {
	ctx := capability.Default()
	assert.True(t, ctx.SupportsAtomicWidth(32))
	assert.False(t, ctx.SupportsAtomicWidth(16))
}
