package ptx

import (
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/types"
)

// paramLayout builds the ABI descriptor list for a kernel-entry Method's
// formal parameters (spec.md §4.6 Kernel ABI): scalars pass by value,
// Views pass as a {pointer, length} pair, and Structures above a size
// threshold pass by an implicit pointer rather than by copy.
func paramLayout(sys *types.System, sig ir.Signature) ([]kernel.ParameterLayout, error) {
	const structByCopyThreshold = 64 // bytes; larger aggregates pass by implicit pointer

	out := make([]kernel.ParameterLayout, len(sig.Params))
	for i, t := range sig.Params {
		size, err := sys.Size(t)
		if err != nil {
			return nil, err
		}
		align, err := sys.Align(t)
		if err != nil {
			return nil, err
		}
		layout := kernel.ParameterLayout{Size: size, Align: align}
		switch t.Kind() {
		case types.View:
			layout.Kind = kernel.ParamView
			layout.Space = spaceOf(t.AddressSpace())
		case types.Structure:
			if size > structByCopyThreshold {
				layout.Kind = kernel.ParamStruct
				layout.Space = kernel.SpaceGlobal
			} else {
				layout.Kind = kernel.ParamStruct
			}
		case types.Pointer:
			// A bare pointer is one 64-bit scalar; ParamView is reserved
			// for View's {pointer, length} pair, which passes as two
			// .param slots the embedder fills from a slice's length — a
			// raw pointer argument has no length to supply.
			layout.Kind = kernel.ParamScalar
			layout.Space = spaceOf(t.AddressSpace())
		default:
			layout.Kind = kernel.ParamScalar
		}
		out[i] = layout
	}
	return out, nil
}

func spaceOf(s types.AddressSpace) kernel.AddressSpace {
	switch s {
	case types.Global:
		return kernel.SpaceGlobal
	case types.Shared:
		return kernel.SpaceShared
	case types.Local:
		return kernel.SpaceLocal
	case types.Constant:
		return kernel.SpaceConstant
	default:
		return kernel.SpaceGeneric
	}
}

// memoryFootprint starts the KernelInfo the runtime uses to size its
// launch, seeding LocalBytes with whatever the register allocator spilled.
// The static `.shared`/`.local` allocation totals (SharedMemory.Allocate/
// LocalMemory.Allocate) are added to it afterwards by Lower (emit.go).
func memoryFootprint(spillBytes int) kernel.Info {
	return kernel.Info{LocalBytes: spillBytes}
}

// groupSizeHints picks a conservative launch-size range: a block must be at
// least one full warp, and no larger than the thread-per-block ceiling
// most architectures in this capability range impose.
func groupSizeHints(capCtx capability.Context) (min, max int) {
	return capCtx.WarpSize, 1024
}
