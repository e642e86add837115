package ptx

import (
	"fmt"
	"sort"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// RegClass is one PTX virtual-register pool (spec.md §4.6): predicate,
// 16-bit, 32-bit, or 64-bit. Structure/Function-typed values never reach a
// register directly — they're always accessed field-by-field via
// OpGetField/OpSetField before codegen sees them.
type RegClass int

const (
	ClassPred RegClass = iota
	ClassB16
	ClassB32
	ClassB64
	numClasses
)

func (c RegClass) String() string {
	return [...]string{"pred", "b16", "b32", "b64"}[c]
}

// maxSpillBytesPerThread bounds how much .local spill space one method may
// consume before allocation gives up with RegisterPressureExceededError —
// spilling past this point would make the kernel's per-thread local
// footprint large enough to defeat occupancy, which is the real-world
// reason a register allocator refuses rather than spilling without limit.
const maxSpillBytesPerThread = 4096

// classFor returns the PTX register class v's Type lowers to, or false if v
// is void-typed (stores, branches, barriers, ...) and never occupies a
// register at all.
func classFor(t *types.Type) (RegClass, bool, error) {
	if t == nil {
		return 0, false, nil
	}
	switch t.Kind() {
	case types.Void:
		return 0, false, nil
	case types.Bool:
		return ClassPred, true, nil
	case types.Int8, types.Int16, types.Float16:
		return ClassB16, true, nil
	case types.Int32, types.Float32:
		return ClassB32, true, nil
	case types.Int64, types.Float64, types.Pointer, types.View, types.Handle:
		return ClassB64, true, nil
	default:
		return 0, false, &CodegenInvariantError{Reason: fmt.Sprintf("type %s has no PTX register class", t)}
	}
}

// Allocation is a Value's assigned storage: either a numbered register
// within its class, or a byte offset into the method's `.local` spill
// area. A View-typed value additionally carries a length half (the
// HasLength/Length* fields), since a View lowers to a {pointer, length}
// pair of independent ClassB64 registers (spec.md §4.6) rather than a
// single scalar.
type Allocation struct {
	Class     RegClass
	Number    int
	Spilled   bool
	SpillSlot int

	HasLength       bool
	LengthNumber    int
	LengthSpilled   bool
	LengthSpillSlot int
}

// Name renders the PTX register operand text for a non-spilled allocation,
// e.g. "%r3", "%rd1", "%p0".
func (a Allocation) Name() string {
	prefix := map[RegClass]string{ClassPred: "%p", ClassB16: "%rs", ClassB32: "%r", ClassB64: "%rd"}[a.Class]
	return fmt.Sprintf("%s%d", prefix, a.Number)
}

// LengthName renders the register operand text for a View allocation's
// length half, which is always a plain ClassB64 register.
func (a Allocation) LengthName() string {
	return fmt.Sprintf("%%rdlen%d", a.LengthNumber)
}

// isViewType reports whether t lowers to a {pointer, length} pair rather
// than a single scalar register.
func isViewType(t *types.Type) bool {
	return t != nil && t.Kind() == types.View
}

// classBudget returns the number of concurrently live virtual registers
// this class is allowed before further demand spills to `.local`.
// CapabilityContext.MaxRegistersPerThread is the PTX ISA's per-thread
// register ceiling (255 on modern architectures); it is split evenly
// across classes since the spec gives no finer-grained per-class budget.
func classBudget(capCtx capability.Context) [numClasses]int {
	per := capCtx.MaxRegistersPerThread / int(numClasses)
	if per < 8 {
		per = 8
	}
	return [numClasses]int{per, per, per, per}
}

type liveRange struct {
	id         ir.ValueID
	start, end int
	class      RegClass
	isLength   bool // the length half of a View's paired allocation
}

// linearOrder linearizes m's values in block-arena order, block parameters
// first within each block — the order a liveness pass over "the linearized
// block order" (spec.md §4.6) needs. This is an approximation of true
// dominance-respecting scheduling (it trusts the frontend/optimizer's
// block arena order rather than computing a fresh topological order), kept
// for methods whose CFG is reducible and whose blocks were already emitted
// in a sane order by construction.
func linearOrder(m *ir.Method) []ir.ValueID {
	var order []ir.ValueID
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		for _, p := range bb.Params {
			order = append(order, p.Value)
		}
		order = append(order, bb.Values...)
	}
	return order
}

// Allocate runs the linear-scan register allocator described in spec.md
// §4.6: it walks live ranges in order of definition, reuses registers
// whose range has already expired, and spills to `.local` once a class's
// budget is exhausted.
func Allocate(m *ir.Method, capCtx capability.Context) (map[ir.ValueID]Allocation, error) {
	order := linearOrder(m)
	index := make(map[ir.ValueID]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	var ranges []liveRange
	for _, id := range order {
		v := m.Value(id)
		class, has, err := classFor(v.Type)
		if err != nil {
			return nil, err
		}
		if !has {
			continue
		}
		end := index[id]
		for _, use := range m.Uses(id) {
			if ui, ok := index[use.User]; ok && ui > end {
				end = ui
			}
		}
		ranges = append(ranges, liveRange{id: id, start: index[id], end: end, class: class})
		if isViewType(v.Type) {
			ranges = append(ranges, liveRange{id: id, start: index[id], end: end, class: ClassB64, isLength: true})
		}
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	budget := classBudget(capCtx)
	type activeEntry struct {
		r   liveRange
		reg int
	}
	var active [numClasses][]activeEntry
	var freeRegs [numClasses][]int
	var nextReg [numClasses]int
	alloc := make(map[ir.ValueID]Allocation, len(ranges))
	spillOffset := 0

	// assign records r's storage into alloc[r.id], merging into whatever
	// allocation its sibling range (the pointer half, for a length range)
	// already wrote rather than overwriting it.
	assign := func(r liveRange, spilled bool, reg, slot int) {
		a := alloc[r.id]
		a.Class = r.class
		switch {
		case r.isLength && spilled:
			a.HasLength, a.LengthSpilled, a.LengthSpillSlot = true, true, slot
		case r.isLength:
			a.HasLength, a.LengthNumber = true, reg
		case spilled:
			a.Spilled, a.SpillSlot = true, slot
		default:
			a.Number = reg
		}
		alloc[r.id] = a
	}

	for _, r := range ranges {
		kept := active[r.class][:0]
		for _, a := range active[r.class] {
			if a.r.end < r.start {
				freeRegs[r.class] = append(freeRegs[r.class], a.reg)
			} else {
				kept = append(kept, a)
			}
		}
		active[r.class] = kept

		if regs := freeRegs[r.class]; len(regs) > 0 {
			number := regs[len(regs)-1]
			freeRegs[r.class] = regs[:len(regs)-1]
			assign(r, false, number, 0)
			active[r.class] = append(active[r.class], activeEntry{r: r, reg: number})
			continue
		}
		if nextReg[r.class] < budget[r.class] {
			number := nextReg[r.class]
			nextReg[r.class]++
			assign(r, false, number, 0)
			active[r.class] = append(active[r.class], activeEntry{r: r, reg: number})
			continue
		}

		size := spillSize(r.class)
		if spillOffset+size > maxSpillBytesPerThread {
			return nil, &RegisterPressureExceededError{
				Class:    r.class,
				Overflow: spillOffset + size - maxSpillBytesPerThread,
			}
		}
		assign(r, true, 0, spillOffset)
		spillOffset += size
	}
	return alloc, nil
}

func spillSize(c RegClass) int {
	switch c {
	case ClassPred:
		return 1
	case ClassB16:
		return 2
	case ClassB32:
		return 4
	default:
		return 8
	}
}
