// Package capability describes a target accelerator's feature set as a flat
// record of booleans and small integers, passed by value into every
// optimizer pass and backend lowering. There is no per-feature interface
// hierarchy: a pass that cares about FP64 support reads ctx.FP64 directly,
// the same way flapc's code generators read a target-triple string rather
// than dispatching through a virtual "Architecture" type.
package capability

import "fmt"

// Architecture is a PTX compute-capability tier (sm_XX), ordered so minimum
// comparisons ("requires >= sm_70") are plain integer comparisons.
type Architecture int

const (
	SM50 Architecture = 50
	SM60 Architecture = 60
	SM70 Architecture = 70
	SM75 Architecture = 75
	SM80 Architecture = 80
	SM90 Architecture = 90
)

func (a Architecture) String() string { return fmt.Sprintf("sm_%d", int(a)) }

// Context is the complete feature-gate record for one compilation. It is
// immutable after construction and cheap to copy by value.
type Context struct {
	Arch Architecture

	FP16        bool
	FP64        bool
	TensorCores bool
	SubgroupOps bool // shfl.sync / warp-shuffle family

	// AtomicWidths is the set of bit-widths with hardware atomic support,
	// e.g. {32, 64}.
	AtomicWidths map[int]bool

	MaxRegistersPerThread int
	MaxSharedMemoryBytes  int
	WarpSize              int
}

// Default returns a conservative sm_70 context: FP16/FP64/subgroup ops and
// 32/64-bit atomics available, no tensor cores, a 255-register budget (the
// PTX ISA's own per-thread register ceiling) and 48KiB of shared memory —
// the baseline most CUDA-capable devices since Volta satisfy.
func Default() Context {
	return Context{
		Arch:                  SM70,
		FP16:                  true,
		FP64:                  true,
		TensorCores:           false,
		SubgroupOps:           true,
		AtomicWidths:          map[int]bool{32: true, 64: true},
		MaxRegistersPerThread: 255,
		MaxSharedMemoryBytes:  48 * 1024,
		WarpSize:              32,
	}
}

// RequiresSyncWarpOps reports whether this architecture must use the
// `.sync` family of warp primitives (shfl.sync, vote.sync) rather than the
// legacy unsynchronized forms — true from sm_70 (Volta) onward, per
// spec.md's warp/group primitives note.
func (c Context) RequiresSyncWarpOps() bool { return c.Arch >= SM70 }

// SupportsAtomicWidth reports whether the target has a hardware atomic of
// the given bit width.
func (c Context) SupportsAtomicWidth(bits int) bool { return c.AtomicWidths[bits] }

// Check validates that feature is available, returning a
// NotSupportedError naming the feature and the minimum architecture that
// would support it otherwise.
func (c Context) Check(feature string, minArch Architecture) error {
	if c.Arch < minArch {
		return &NotSupportedError{Feature: feature, MinArch: minArch, Have: c.Arch}
	}
	return nil
}

// NotSupportedError is CapabilityNotSupported(feature, minArch) from
// spec.md §4.4/§4.6/§7.
type NotSupportedError struct {
	Feature string
	MinArch Architecture
	Have    Architecture
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("capability: %s requires %s, target is %s", e.Feature, e.MinArch, e.Have)
}
