// Package ptx lowers an optimized ir.Method to PTX assembly text, the
// concrete analogue of the teacher's codegen_elf_writer.go/x86_64_codegen.go
// pair: instruction selection + register allocation feed a single
// deterministic text writer instead of an ELF byte-buffer writer.
package ptx

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/types"
)

// Options configures one PTX lowering (spec.md §4.6).
type Options struct {
	Capability capability.Context

	// SwitchJumpTableDensity and SwitchJumpTableMaxSpan gate OpSwitch's
	// dense-case lowering: a switch whose case values span at most
	// SwitchJumpTableMaxSpan slots, at least SwitchJumpTableDensity
	// fraction of which are populated cases, emits a brx.idx jump table
	// instead of a predicate cascade (spec.md §4.6 "threshold is
	// backend-configurable"). Zero takes the package defaults.
	SwitchJumpTableDensity float64
	SwitchJumpTableMaxSpan int
}

// defaultSwitchJumpTableDensity/MaxSpan are the out-of-the-box dense-switch
// thresholds: a table costs one brx.idx plus one label slot per index
// regardless of occupancy, so half-populated spans up to 256 entries are
// judged worth the table over a cascade of one setp/bra pair per case
// (up to 128 pairs at half occupancy, 256 when the span is full).
const (
	defaultSwitchJumpTableDensity = 0.5
	defaultSwitchJumpTableMaxSpan = 256
)

// Lower compiles m (already run through the optimizer) into a packaged
// CompiledKernel. A ScopeKernelEntry method is emitted as an `.entry`; a
// device function (ScopeDevice), normally reached through OpCall, is
// emitted as a `.func` when passed to Lower directly, so embedders that
// want a callable device library kernel can pass one.
func Lower(sys *types.System, m *ir.Method, opts Options) (*kernel.CompiledKernel, error) {
	alloc, err := Allocate(m, opts.Capability)
	if err != nil {
		return nil, err
	}
	symbols, sharedDecls, localDecls, err := declareAllocations(sys, m)
	if err != nil {
		return nil, err
	}

	jumpTableDensity := opts.SwitchJumpTableDensity
	if jumpTableDensity <= 0 {
		jumpTableDensity = defaultSwitchJumpTableDensity
	}
	jumpTableMaxSpan := opts.SwitchJumpTableMaxSpan
	if jumpTableMaxSpan <= 0 {
		jumpTableMaxSpan = defaultSwitchJumpTableMaxSpan
	}

	sel := &selector{
		m: m, alloc: alloc, capCtx: opts.Capability, symbols: symbols,
		jumpTableDensity: jumpTableDensity, jumpTableMaxSpan: jumpTableMaxSpan,
		fused: markFusedMuls(m),
	}

	var body strings.Builder
	for _, bid := range m.Blocks() {
		bb := m.Block(bid)
		if len(bb.Values) == 0 && bid != m.Entry() {
			continue // emptied by a CFG merge; nothing targets it anymore
		}
		fmt.Fprintf(&body, "%s:\n", blockLabel(m, bid))
		for _, vid := range bb.Values {
			v := m.Value(vid)
			if v.IsTerminator() {
				continue
			}
			if err := sel.selectValue(&body, v); err != nil {
				return nil, err
			}
		}
		if err := sel.selectTerminator(&body, bb); err != nil {
			return nil, err
		}
	}

	spillBytes := maxSpillOffset(alloc)
	info := memoryFootprint(spillBytes)
	info.MinGroup, info.MaxGroup = groupSizeHints(opts.Capability)
	info.SharedBytes += sharedDeclBytes(sharedDecls)
	info.LocalBytes += sharedDeclBytes(localDecls)

	params, err := paramLayout(sys, m.Sig)
	if err != nil {
		return nil, err
	}

	var mod strings.Builder
	writeHeader(&mod, opts.Capability)
	writeExterns(&mod, sel.externs)
	writeDecls(&mod, sharedDecls, localDecls)
	if err := writeEntry(&mod, m, params, alloc, spillBytes, &body); err != nil {
		return nil, err
	}

	return &kernel.CompiledKernel{
		Backend:         kernel.BackendPTX,
		EntryPoint:      m.Name,
		Source:          []byte(mod.String()),
		ParameterLayout: params,
		KernelInfo:      info,
	}, nil
}

func blockLabel(m *ir.Method, bid ir.BlockID) string {
	return fmt.Sprintf("BB_%s_%d", m.Name, int(bid))
}

func writeHeader(w *strings.Builder, capCtx capability.Context) {
	fmt.Fprintf(w, ".version 8.3\n")
	fmt.Fprintf(w, ".target %s\n", capCtx.Arch)
	fmt.Fprintf(w, ".address_size 64\n\n")
}

// writeExterns declares the LibDevice routines the body calls, one
// `.extern .func` line per routine in sorted-name order so repeat compiles
// stay byte-identical.
func writeExterns(w *strings.Builder, externs map[string]string) {
	if len(externs) == 0 {
		return
	}
	names := make([]string, 0, len(externs))
	for name := range externs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w.WriteString(externs[name])
		w.WriteString("\n")
	}
	w.WriteString("\n")
}

type sharedDecl struct {
	name      string
	elemBytes uint64
	n         uint64
}

// declareAllocations walks m for OpSharedAlloc/OpLocalAlloc values and
// assigns each a stable module-level symbol name, returning the
// Value->symbol map selectValue's OpSharedAlloc/OpLocalAlloc case needs.
func declareAllocations(sys *types.System, m *ir.Method) (map[ir.ValueID]string, []sharedDecl, []sharedDecl, error) {
	symbols := make(map[ir.ValueID]string)
	var shared, local []sharedDecl
	for _, id := range m.Values() {
		v := m.Value(id)
		switch v.Op {
		case ir.OpSharedAlloc, ir.OpLocalAlloc:
			count := m.Value(v.Operands[0])
			if count.Op != ir.OpConst {
				return nil, nil, nil, &CodegenInvariantError{Reason: "shared/local allocation count must be a compile-time constant"}
			}
			elemSize, err := sys.Size(v.Type.Elem())
			if err != nil {
				return nil, nil, nil, err
			}
			name := fmt.Sprintf("%s_%s_%d", m.Name, v.Op, int(id))
			symbols[id] = name
			decl := sharedDecl{name: name, elemBytes: elemSize, n: count.ConstBits}
			if v.Op == ir.OpSharedAlloc {
				shared = append(shared, decl)
			} else {
				local = append(local, decl)
			}
		}
	}
	return symbols, shared, local, nil
}

func sharedDeclBytes(decls []sharedDecl) int {
	total := 0
	for _, d := range decls {
		total += int(d.elemBytes * d.n)
	}
	return total
}

func writeDecls(w *strings.Builder, shared, local []sharedDecl) {
	for _, d := range shared {
		fmt.Fprintf(w, ".shared .align %d .b8 %s[%d];\n", d.elemBytes, d.name, d.elemBytes*d.n)
	}
	for _, d := range local {
		fmt.Fprintf(w, ".local .align %d .b8 %s[%d];\n", d.elemBytes, d.name, d.elemBytes*d.n)
	}
	if len(shared) > 0 || len(local) > 0 {
		w.WriteString("\n")
	}
}

// writeEntry emits the `.entry`/`.func` parameter list and the entry-block
// `ld.param` sequence. A View parameter declares and loads two `.param`
// slots — pointer and length — per spec.md §4.6's "a view is a {pointer,
// length} pair passed as two scalar params"; every other parameter kind
// gets exactly one.
func writeEntry(w *strings.Builder, m *ir.Method, params []kernel.ParameterLayout, alloc map[ir.ValueID]Allocation, spillBytes int, body *strings.Builder) error {
	directive := ".visible .entry"
	if m.Scope == ir.ScopeDevice {
		directive = ".visible .func"
	}
	fmt.Fprintf(w, "%s %s(\n", directive, m.Name)

	type paramDecl struct {
		ptxType string
		name    string
	}
	var decls []paramDecl
	for i, p := range params {
		name := fmt.Sprintf("%s_param_%d", m.Name, i)
		if p.Kind == kernel.ParamView {
			decls = append(decls, paramDecl{"u64", name}, paramDecl{"u64", name + "_len"})
		} else {
			decls = append(decls, paramDecl{paramPTXType(p), name})
		}
	}
	for i, d := range decls {
		sep := ","
		if i == len(decls)-1 {
			sep = ""
		}
		fmt.Fprintf(w, "\t.param .%s %s%s\n", d.ptxType, d.name, sep)
	}
	w.WriteString(")\n{\n")
	writeRegDecls(w, alloc)
	if spillBytes > 0 {
		fmt.Fprintf(w, "\t.local .align 8 .b8 __spill[%d];\n", spillBytes)
	}

	entryParams := m.Block(m.Entry()).Params
	for i, p := range params {
		if i >= len(entryParams) {
			break
		}
		a, ok := alloc[entryParams[i].Value]
		if !ok {
			continue
		}
		name := fmt.Sprintf("%s_param_%d", m.Name, i)
		if a.Spilled {
			fmt.Fprintf(w, "\tld.param.%s %s, [%s];\n", ptxType(a.Class), scratchName(a.Class), name)
			fmt.Fprintf(w, "\tst.local.%s [__spill+%d], %s;\n", ptxType(a.Class), a.SpillSlot, scratchName(a.Class))
		} else {
			fmt.Fprintf(w, "\tld.param.%s %s, [%s];\n", ptxType(a.Class), a.Name(), name)
		}
		if p.Kind == kernel.ParamView && a.HasLength {
			lenName := name + "_len"
			if a.LengthSpilled {
				fmt.Fprintf(w, "\tld.param.u64 %s, [%s];\n", scratchName(ClassB64), lenName)
				fmt.Fprintf(w, "\tst.local.u64 [__spill+%d], %s;\n", a.LengthSpillSlot, scratchName(ClassB64))
			} else {
				fmt.Fprintf(w, "\tld.param.u64 %s, [%s];\n", a.LengthName(), lenName)
			}
		}
	}

	w.WriteString(body.String())
	w.WriteString("}\n")
	return nil
}

// writeRegDecls declares every virtual register the body references: the
// parameterized per-class pools (`.reg .b32 %r<N>;` declares %r0..%rN-1),
// the View length pool, and the fixed scratch registers spill reloads and
// multi-temporary lowerings use.
func writeRegDecls(w *strings.Builder, alloc map[ir.ValueID]Allocation) {
	var counts [numClasses]int
	lengthCount := 0
	for _, a := range alloc {
		if !a.Spilled && a.Number+1 > counts[a.Class] {
			counts[a.Class] = a.Number + 1
		}
		if a.HasLength && !a.LengthSpilled && a.LengthNumber+1 > lengthCount {
			lengthCount = a.LengthNumber + 1
		}
	}
	prefixes := [numClasses]string{"%p", "%rs", "%r", "%rd"}
	for c := RegClass(0); c < numClasses; c++ {
		if counts[c] > 0 {
			fmt.Fprintf(w, "\t.reg .%s %s<%d>;\n", ptxType(c), prefixes[c], counts[c])
		}
	}
	if lengthCount > 0 {
		fmt.Fprintf(w, "\t.reg .b64 %%rdlen<%d>;\n", lengthCount)
	}
	for c := RegClass(0); c < numClasses; c++ {
		fmt.Fprintf(w, "\t.reg .%s %s, %s;\n", ptxType(c), scratchName(c), scratch2Name(c))
	}
}

func paramPTXType(p kernel.ParameterLayout) string {
	switch p.Size {
	case 1:
		return "u8"
	case 2:
		return "u16"
	case 4:
		return "u32"
	default:
		return "u64"
	}
}

// maxSpillOffset sizes the `.local __spill[]` depot: the end of the
// furthest spill slot across both halves of every allocation — a View's
// length half spills independently of its pointer half (regalloc.go).
func maxSpillOffset(alloc map[ir.ValueID]Allocation) int {
	max := 0
	for _, a := range alloc {
		if a.Spilled {
			if end := a.SpillSlot + spillSize(a.Class); end > max {
				max = end
			}
		}
		if a.LengthSpilled {
			if end := a.LengthSpillSlot + spillSize(ClassB64); end > max {
				max = end
			}
		}
	}
	return max
}
