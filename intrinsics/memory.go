package intrinsics

import "github.com/xyproto/xpujit/ir"

// registerMemoryFence wires MemoryFence.{Block,Device,System}.
func registerMemoryFence(r *Registry) {
	scopes := map[string]ir.FenceScope{
		"Block": ir.FenceBlock, "Device": ir.FenceDevice, "System": ir.FenceSystem,
	}
	for name, scope := range scopes {
		scope := scope
		r.register(MethodKey{Type: "MemoryFence", Method: name}, CategoryMemoryFence, func(ctx *InvocationContext) error {
			_, err := ctx.Builder.CreateMemoryFence(scope)
			return err
		})
	}
}

// registerSharedMemory wires SharedMemory.Allocate<T>(count) to
// OpSharedAlloc.
func registerSharedMemory(r *Registry) {
	r.register(MethodKey{Type: "SharedMemory", Method: "Allocate"}, CategorySharedMemory, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateSharedAlloc(ctx.ResultType, ctx.Args[0])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}

// registerLocalMemory wires LocalMemory.Allocate<T>(count) to
// OpLocalAlloc.
func registerLocalMemory(r *Registry) {
	r.register(MethodKey{Type: "LocalMemory", Method: "Allocate"}, CategoryLocalMemory, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateLocalAlloc(ctx.ResultType, ctx.Args[0])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}

// registerView wires View.{Length,ElementAt} over the {pointer,length} view
// representation (spec.md §4.6 kernel-ABI note on views).
func registerView(r *Registry) {
	r.register(MethodKey{Type: "View", Method: "ElementAt"}, CategoryView, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateLoadElementAddress(ctx.ResultType, ctx.Args[0], ctx.Args[1])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
	r.register(MethodKey{Type: "View", Method: "Length"}, CategoryView, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateViewLength(ctx.ResultType, ctx.Args[0])
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}
