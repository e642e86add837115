package optimize

import (
	"strconv"

	"github.com/xyproto/xpujit/ir"
)

// SSADestructionPass implements the generic-IR share of spec.md §4.5 step
// 7. PTX has no native phi instruction, so the actual "replace block
// parameters with copies on incoming edges" step happens where the
// backend already walks every predecessor edge for instruction selection
// (backend/ptx's instruction selector emits a `mov` per block argument right
// before each predecessor's branch/jump — see moveBlockArgs in
// backend/ptx/select.go).
// This pass runs first and validates the invariant that destruction
// depends on: every predecessor supplies exactly one argument per target
// block parameter (spec.md §3, BasicBlock invariant).
type SSADestructionPass struct{}

func (SSADestructionPass) Name() string { return "ssa-destruction" }

func (SSADestructionPass) Run(m *ir.Method, opts Options) (bool, error) {
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		term := bb.Terminator()
		if term < 0 {
			continue
		}
		tv := m.Value(term)
		for i, target := range tv.Targets {
			want := len(m.Block(target).Params)
			got := len(tv.BlockArgs[i])
			if want != got {
				return false, &ir.TypeMismatchError{
					Op:       tv.Op,
					Expected: strconv.Itoa(want) + " block args",
					Got:      strconv.Itoa(got) + " block args",
				}
			}
		}
	}
	return false, nil
}
