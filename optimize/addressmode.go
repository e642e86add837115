package optimize

import "github.com/xyproto/xpujit/ir"

// AddressModeLoweringPass implements the generic-IR share of spec.md §4.5
// step 6: within a block, two `load_element_address(view, index)` values
// computing the identical address are coalesced to one, so the backend's
// instruction selector (which fuses the surviving
// OpLoadElementAddress+OpLoad/OpStore pair into its preferred addressing
// form — see backend/ptx) never has to reconcile duplicate address
// computations feeding the same access. The backend-specific half of this
// step (choosing `ld.global`/`ld.shared`/... and folding the address
// computation into the instruction's operand) is necessarily backend code,
// since "preferred addressing form" is a backend property; it lives in
// backend/ptx's instruction selection instead of here.
type AddressModeLoweringPass struct{}

func (AddressModeLoweringPass) Name() string { return "address-mode-lowering" }

func (AddressModeLoweringPass) Run(m *ir.Method, opts Options) (bool, error) {
	rewriter := ir.NewRewriter()
	var dead []ir.ValueID

	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		seen := make(map[[2]ir.ValueID]ir.ValueID)
		for _, vid := range bb.Values {
			v := m.Value(vid)
			if v.Op != ir.OpLoadElementAddress {
				continue
			}
			key := [2]ir.ValueID{v.Operands[0], v.Operands[1]}
			if existing, ok := seen[key]; ok {
				rewriter.Replace(vid, existing)
				dead = append(dead, vid)
				continue
			}
			seen[key] = vid
		}
	}

	if len(dead) == 0 {
		return false, nil
	}
	rewriter.ApplyToMethod(m)
	if err := ir.Remove(m, dead); err != nil {
		return false, err
	}
	return true, nil
}
