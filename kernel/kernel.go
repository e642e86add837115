// Package kernel defines the closed artifact a backend hands back to the
// embedder's runtime: CompiledKernel, its ParameterLayout descriptors, and
// the KernelInfo dataflow summary the frontend/backend glue in spec.md §2
// surfaces (shared/local memory totals, group-size hints).
//
// This is the PTX-backend analogue of the teacher's ExecutableBuilder
// (codegen_elf_writer.go/codegen_macho_writer.go/codegen_pe_writer.go)
// assembling a finished byte buffer plus import table — except the
// finished artifact here is handed to an external accelerator runtime
// instead of written to disk, so there is exactly one "writer" shape
// (ParameterLayout + KernelInfo) rather than one per OS executable format.
package kernel

import "fmt"

// Backend identifies which codegen target produced a CompiledKernel.
type Backend int

const (
	BackendPTX Backend = iota
	BackendOpenCL
	BackendNative
)

func (b Backend) String() string {
	switch b {
	case BackendPTX:
		return "ptx"
	case BackendOpenCL:
		return "opencl"
	case BackendNative:
		return "native"
	default:
		return "unknown"
	}
}

// ParamKind is the ABI passing convention of one kernel parameter (spec.md
// §3/§4.6 Kernel ABI).
type ParamKind int

const (
	ParamScalar ParamKind = iota
	ParamView             // {pointer, length} pair
	ParamStruct           // by-value aggregate, passed by copy or by implicit pointer above a size threshold
)

func (k ParamKind) String() string {
	switch k {
	case ParamScalar:
		return "scalar"
	case ParamView:
		return "view"
	case ParamStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// AddressSpace mirrors types.AddressSpace without importing the types
// package, so embedders that only link the kernel package (e.g. a runtime
// shim that never touches the compiler's internal IR) don't pull in the
// whole type system.
type AddressSpace int

const (
	SpaceGeneric AddressSpace = iota
	SpaceGlobal
	SpaceShared
	SpaceLocal
	SpaceConstant
)

func (s AddressSpace) String() string {
	switch s {
	case SpaceGeneric:
		return "generic"
	case SpaceGlobal:
		return "global"
	case SpaceShared:
		return "shared"
	case SpaceLocal:
		return "local"
	case SpaceConstant:
		return "const"
	default:
		return "unknown"
	}
}

// ParameterLayout describes one kernel parameter's ABI shape, in
// declaration order, for the runtime to marshal launch arguments
// (spec.md §3 CompiledKernel.parameter_layout).
type ParameterLayout struct {
	Kind  ParamKind
	Size  uint64
	Align uint64
	Space AddressSpace
	Name  string // diagnostic only; not part of the ABI contract
}

// Info is the frontend<->backend glue surfaced in the packaged kernel
// (spec.md §2 component 10, §3 CompiledKernel.kernel_info): dataflow
// summaries the runtime scheduler uses to pick a launch configuration.
type Info struct {
	SharedBytes int
	LocalBytes  int
	MinGroup    int
	MaxGroup    int
}

// CompiledKernel is the immutable, closed artifact a successful compile
// produces (spec.md §3/§6). Once constructed it owns its byte buffer and
// parameter descriptors and is never mutated.
type CompiledKernel struct {
	Backend         Backend
	EntryPoint      string
	Source          []byte // UTF-8 PTX source / OpenCL C / SPIR-V / native blob
	ParameterLayout []ParameterLayout
	KernelInfo      Info
}

// String renders a short diagnostic summary, not the full source.
func (k *CompiledKernel) String() string {
	return fmt.Sprintf("CompiledKernel{backend=%s entry=%q params=%d shared=%dB local=%dB bytes=%d}",
		k.Backend, k.EntryPoint, len(k.ParameterLayout), k.KernelInfo.SharedBytes, k.KernelInfo.LocalBytes, len(k.Source))
}
