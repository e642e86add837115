package intrinsics

import "github.com/xyproto/xpujit/ir"

// registerCompare wires Compare.{Eq,Ne,Lt,Le,Gt,Ge}[U] — the [U] suffix
// selects CmpFlagUnsigned, matching spec.md §4.3's "unsigned-comparison flag
// propagation" note.
func registerCompare(r *Registry) {
	kinds := map[string]ir.CompareKind{
		"Eq": ir.CmpEq, "Ne": ir.CmpNe, "Lt": ir.CmpLt,
		"Le": ir.CmpLe, "Gt": ir.CmpGt, "Ge": ir.CmpGe,
	}
	for name, kind := range kinds {
		kind := kind
		r.register(MethodKey{Type: "Compare", Method: name}, CategoryCompare, func(ctx *InvocationContext) error {
			id, err := ctx.Builder.CreateCompare(ctx.ResultType, kind, ctx.Args[0], ctx.Args[1], 0)
			if err != nil {
				return err
			}
			ctx.Result = id
			return nil
		})
		r.register(MethodKey{Type: "Compare", Method: name + "U"}, CategoryCompare, func(ctx *InvocationContext) error {
			id, err := ctx.Builder.CreateCompare(ctx.ResultType, kind, ctx.Args[0], ctx.Args[1], ir.CmpFlagUnsigned)
			if err != nil {
				return err
			}
			ctx.Result = id
			return nil
		})
	}
}

// registerConvert wires Convert.To — the frontend always supplies the
// concrete target type via ctx.ResultType after resolving numeric widening
// (spec.md §4.3).
func registerConvert(r *Registry) {
	r.register(MethodKey{Type: "Convert", Method: "To"}, CategoryConvert, func(ctx *InvocationContext) error {
		id, err := ctx.Builder.CreateConvert(ctx.Args[0], ctx.ResultType, 0)
		if err != nil {
			return err
		}
		ctx.Result = id
		return nil
	})
}
