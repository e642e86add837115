// Package intrinsics holds the two read-only tables consulted by the
// frontend decoder while translating calls: a remapping table (standard
// library method -> device-safe equivalent) and an intrinsic dispatch table
// (device-safe method -> IR-emitting handler). Both are built once, in a
// fixed registration order, and never mutated afterward — the compile-time
// analogue of the teacher's `FunctionRepository` map in `dependencies.go`,
// minus the network-fetch and environment-variable override (kernels cannot
// depend on the network or filesystem).
package intrinsics

import (
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// MethodKey identifies a callable by its declaring type and method name —
// the lookup key for both tables (spec.md §4.4: "keyed by (declaring-type,
// method-name, parameter-type-list)"; the parameter-type-list is folded into
// overload-specific registration below rather than into the key itself,
// since no category in this registry currently overloads on arity).
type MethodKey struct {
	Type   string
	Method string
}

// Category groups handlers for documentation and diagnostics; it carries no
// behavior of its own.
type Category int

const (
	CategoryAccelerator Category = iota
	CategoryAtomic
	CategoryCompare
	CategoryConvert
	CategoryGrid
	CategoryGroup
	CategoryInterop
	CategoryMath
	CategoryMemoryFence
	CategorySharedMemory
	CategoryLocalMemory
	CategoryView
	CategoryWarp
	CategoryUtility
	CategoryLanguage
)

// InvocationContext is the transient record passed to a Handler: the active
// Builder, the call's source location, its resolved argument values/types,
// the callee being dispatched, and a mutable result slot the handler fills
// in (spec.md §3 "InvocationContext").
type InvocationContext struct {
	Builder    *ir.Builder
	Loc        ir.Location
	System     *types.System
	Capability capability.Context
	Callee     MethodKey
	Args       []ir.ValueID
	ArgTypes   []*types.Type
	ResultType *types.Type

	// Result receives the handler's emitted value; left at -1 for handlers
	// with no return value (e.g. Group.Barrier).
	Result ir.ValueID
}

// Handler emits IR for one call site and is the only thing a registration
// contributes; it returns an error from the package's own taxonomy
// (UnsupportedIntrinsicError/UnsupportedOperationError/
// InvalidInlineAssemblyError) or one bubbled up from the Builder.
type Handler func(ctx *InvocationContext) error

type registration struct {
	key      MethodKey
	category Category
	handler  Handler
}

// Registry is the frozen pair of tables produced by NewRegistry.
type Registry struct {
	remap    map[MethodKey]MethodKey
	dispatch map[MethodKey]registration
}

// Remap resolves a source method to its device-safe target, if one is
// registered. The decoder calls this before intrinsic dispatch on every
// call site (spec.md §4.4).
func (r *Registry) Remap(key MethodKey) (MethodKey, bool) {
	target, ok := r.remap[key]
	return target, ok
}

// Category reports the registered category of key, if dispatched.
func (r *Registry) Category(key MethodKey) (Category, bool) {
	reg, ok := r.dispatch[key]
	return reg.category, ok
}

// Dispatch invokes the handler registered for ctx.Callee. Reflection-style
// calls that were classified as CategoryInterop at registration but carry
// non-trivial arguments are rejected with UnsupportedOperationError by the
// Interop handlers themselves, not here.
func (r *Registry) Dispatch(ctx *InvocationContext) error {
	reg, ok := r.dispatch[ctx.Callee]
	if !ok {
		return &UnsupportedIntrinsicError{DeclaringType: ctx.Callee.Type, Method: ctx.Callee.Method}
	}
	ctx.Result = -1
	return reg.handler(ctx)
}

// NewRegistry builds both tables in the fixed order spec.md's Design Note
// requires for deterministic iteration: Math/remap first (largest table),
// then each intrinsic category in the order spec.md §4.4 lists them.
func NewRegistry() *Registry {
	r := &Registry{
		remap:    make(map[MethodKey]MethodKey),
		dispatch: make(map[MethodKey]registration),
	}
	registerMathRemaps(r)
	registerBitConverterRemaps(r)
	registerInterlockedRemaps(r)

	registerAccelerator(r)
	registerAtomic(r)
	registerCompare(r)
	registerConvert(r)
	registerGrid(r)
	registerGroup(r)
	registerInterop(r)
	registerMath(r)
	registerMemoryFence(r)
	registerSharedMemory(r)
	registerLocalMemory(r)
	registerView(r)
	registerWarp(r)
	registerUtility(r)
	registerLanguage(r)
	return r
}

func (r *Registry) remapTo(from, to MethodKey) {
	r.remap[from] = to
}

func (r *Registry) register(key MethodKey, cat Category, h Handler) {
	r.dispatch[key] = registration{key: key, category: cat, handler: h}
}
