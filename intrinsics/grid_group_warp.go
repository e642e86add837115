package intrinsics

import "github.com/xyproto/xpujit/ir"

// registerGrid wires Grid.{ThreadId,BlockId,BlockDim,GridDim}.{X,Y,Z} to
// OpGridIndex.
func registerGrid(r *Registry) {
	queries := map[string]ir.GridQuery{
		"ThreadIdX": ir.GridThreadIdX, "ThreadIdY": ir.GridThreadIdY, "ThreadIdZ": ir.GridThreadIdZ,
		"BlockIdX": ir.GridBlockIdX, "BlockIdY": ir.GridBlockIdY, "BlockIdZ": ir.GridBlockIdZ,
		"BlockDimX": ir.GridBlockDimX, "BlockDimY": ir.GridBlockDimY, "BlockDimZ": ir.GridBlockDimZ,
		"GridDimX": ir.GridGridDimX, "GridDimY": ir.GridGridDimY, "GridDimZ": ir.GridGridDimZ,
	}
	for name, q := range queries {
		q := q
		r.register(MethodKey{Type: "Grid", Method: name}, CategoryGrid, func(ctx *InvocationContext) error {
			id, err := ctx.Builder.CreateGridIndex(ctx.ResultType, q)
			if err != nil {
				return err
			}
			ctx.Result = id
			return nil
		})
	}
}

// registerGroup wires Group.Barrier to OpGroupBarrier.
func registerGroup(r *Registry) {
	r.register(MethodKey{Type: "Group", Method: "Barrier"}, CategoryGroup, func(ctx *InvocationContext) error {
		_, err := ctx.Builder.CreateGroupBarrier()
		return err
	})
}

// registerWarp wires Warp.{Shuffle,ShuffleUp,ShuffleDown,ShuffleXor} to
// OpWarpShuffle. The backend, not this handler, decides `.sync` vs legacy
// form from CapabilityContext (spec.md §4.6).
func registerWarp(r *Registry) {
	modes := map[string]ir.ShuffleMode{
		"Shuffle": ir.ShuffleIdx, "ShuffleUp": ir.ShuffleUp,
		"ShuffleDown": ir.ShuffleDown, "ShuffleXor": ir.ShuffleXor,
	}
	for name, mode := range modes {
		mode := mode
		r.register(MethodKey{Type: "Warp", Method: name}, CategoryWarp, func(ctx *InvocationContext) error {
			id, err := ctx.Builder.CreateWarpShuffle(ctx.ResultType, mode, ctx.Args[0], ctx.Args[1])
			if err != nil {
				return err
			}
			ctx.Result = id
			return nil
		})
	}
}
