package types

import (
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DataLayout is the backend-supplied description of pointer sizes and
// natural alignment rules a System lays structures out against. PTX's
// generic/global pointers are 64-bit; some historical PTX ISAs used 32-bit
// shared-space pointers, so this is a value supplied at construction time
// rather than a hard-wired constant (spec.md §4.1 "Edge policies").
type DataLayout struct {
	// PointerBits maps an AddressSpace to its pointer width in bits.
	// A space absent from the map defaults to 64.
	PointerBits map[AddressSpace]int
}

func (d DataLayout) pointerBytes(space AddressSpace) uint64 {
	if d.PointerBits == nil {
		return 8
	}
	if bits, ok := d.PointerBits[space]; ok {
		return uint64(bits) / 8
	}
	return 8
}

// DefaultDataLayout is the 64-bit-everywhere layout used by modern PTX
// targets (sm_70 and later).
var DefaultDataLayout = DataLayout{PointerBits: map[AddressSpace]int{
	Generic:  64,
	Global:   64,
	Shared:   64,
	Local:    64,
	Constant: 64,
}}

// System owns the canonical universe of Types for one compilation context.
// It is safe for concurrent use by multiple compilations (spec.md §5: "the
// TypeSystem is the single shared mutable resource across workers"): reads
// take a shared lock, and first-insertion of a novel structural type is
// serialized both by an exclusive lock and, across racing goroutines
// requesting the very same novel type concurrently, collapsed onto a single
// insert via singleflight so only one goroutine actually builds+stores the
// Type and the rest receive the winner's pointer.
type System struct {
	layout DataLayout

	mu    sync.RWMutex
	byKey map[string]*Type

	group singleflight.Group

	primitives map[Kind]*Type
}

// NewSystem constructs a System against the given backend data layout.
func NewSystem(layout DataLayout) *System {
	s := &System{
		layout: layout,
		byKey:  make(map[string]*Type),
	}
	s.primitives = make(map[Kind]*Type, int(Handle)+1)
	for _, k := range []Kind{Void, Bool, Int8, Int16, Int32, Int64, Float16, Float32, Float64, Handle} {
		s.primitives[k] = s.intern(k.String(), &Type{kind: k, sig: k.String()})
	}
	return s
}

// intern returns the canonical Type for key, building it with build() only
// if this is the first time key has been seen (double-checked locking, with
// singleflight collapsing concurrent first-builders).
func (s *System) intern(key string, build *Type) *Type {
	s.mu.RLock()
	if t, ok := s.byKey[key]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	v, _, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t, ok := s.byKey[key]; ok {
			return t, nil
		}
		s.byKey[key] = build
		return build, nil
	})
	return v.(*Type)
}

// Void, Bool, ... return the canonical handle for each primitive kind.
func (s *System) Void() *Type    { return s.primitives[Void] }
func (s *System) Bool() *Type    { return s.primitives[Bool] }
func (s *System) Int8() *Type    { return s.primitives[Int8] }
func (s *System) Int16() *Type   { return s.primitives[Int16] }
func (s *System) Int32() *Type   { return s.primitives[Int32] }
func (s *System) Int64() *Type   { return s.primitives[Int64] }
func (s *System) Float16() *Type { return s.primitives[Float16] }
func (s *System) Float32() *Type { return s.primitives[Float32] }
func (s *System) Float64() *Type { return s.primitives[Float64] }
func (s *System) Handle() *Type  { return s.primitives[Handle] }

// PointerTo interns Pointer{element, space}.
func (s *System) PointerTo(elem *Type, space AddressSpace) *Type {
	key := "ptr(" + elem.sig0() + "," + space.String() + ")"
	return s.intern(key, &Type{kind: Pointer, elem: elem, space: space, sig: key})
}

// ViewOf interns View{element, space}: the {pointer, length} array-slice
// type described in spec.md's glossary.
func (s *System) ViewOf(elem *Type, space AddressSpace) *Type {
	key := "view(" + elem.sig0() + "," + space.String() + ")"
	return s.intern(key, &Type{kind: View, elem: elem, space: space, sig: key})
}

// FunctionOf interns Function{ret, params}.
func (s *System) FunctionOf(ret *Type, params []*Type) *Type {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.sig0()
	}
	key := "fn(" + strings.Join(parts, ",") + ")->" + ret.sig0()
	cp := append([]*Type(nil), params...)
	return s.intern(key, &Type{kind: Function, ret: ret, params: cp, sig: "(" + strings.Join(parts, ",") + ")"})
}

// StructureOf interns Structure{orderedFields}. Field order is significant
// and part of identity: {a,b} and {b,a} are distinct structural types.
func (s *System) StructureOf(fields []Field) *Type {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ":" + f.Elem.sig0()
	}
	key := "struct{" + strings.Join(parts, ",") + "}"
	cp := append([]Field(nil), fields...)
	return s.intern(key, &Type{kind: Structure, fields: cp, sig: "{" + strings.Join(parts, ",") + "}"})
}

// sig0 is the per-Type structural key fragment used when building a
// compound key; for primitives it's just the kind's name.
func (t *Type) sig0() string {
	if t.sig != "" {
		return t.sig
	}
	return t.kind.String()
}

// Size returns the size in bytes of t, per s's data layout.
func (s *System) Size(t *Type) (uint64, error) {
	switch t.kind {
	case Void, Function:
		return 0, &InvalidTypeError{Kind: t.kind, Op: "size"}
	case Bool, Int8:
		return 1, nil
	case Int16, Float16:
		return 2, nil
	case Int32, Float32:
		return 4, nil
	case Int64, Float64, Handle:
		return 8, nil
	case Pointer:
		return s.layout.pointerBytes(t.space), nil
	case View:
		// {pointer, length} pair, per the glossary.
		return s.layout.pointerBytes(t.space) + 8, nil
	case Structure:
		total, _, err := s.structLayout(t)
		return total, err
	default:
		return 0, &InvalidTypeError{Kind: t.kind, Op: "size"}
	}
}

// Align returns the natural alignment in bytes of t.
func (s *System) Align(t *Type) (uint64, error) {
	switch t.kind {
	case Void, Function:
		return 0, &InvalidTypeError{Kind: t.kind, Op: "align"}
	case Structure:
		_, align, err := s.structLayout(t)
		return align, err
	default:
		return s.Size(t)
	}
}

// FieldOffset returns the byte offset of fields[index] within t, which must
// be a Structure type.
func (s *System) FieldOffset(t *Type, index int) (uint64, error) {
	if t.kind != Structure {
		return 0, &InvalidTypeError{Kind: t.kind, Op: "fieldOffset"}
	}
	var offset uint64
	for i, f := range t.fields {
		falign, err := s.Align(f.Elem)
		if err != nil {
			return 0, err
		}
		offset = alignUp(offset, falign)
		if i == index {
			return offset, nil
		}
		fsize, err := s.Size(f.Elem)
		if err != nil {
			return 0, err
		}
		offset += fsize
	}
	return 0, &InvalidTypeError{Kind: t.kind, Op: "fieldOffset:out-of-range:" + strconv.Itoa(index)}
}

// structLayout computes (size, align) for a Structure type with natural
// field alignment and trailing padding to a multiple of the max field
// alignment, mirroring typical C-style ABI layout.
func (s *System) structLayout(t *Type) (size uint64, align uint64, err error) {
	var offset uint64
	var maxAlign uint64 = 1
	for _, f := range t.fields {
		falign, ferr := s.Align(f.Elem)
		if ferr != nil {
			return 0, 0, ferr
		}
		fsize, ferr := s.Size(f.Elem)
		if ferr != nil {
			return 0, 0, ferr
		}
		if falign > maxAlign {
			maxAlign = falign
		}
		offset = alignUp(offset, falign) + fsize
	}
	return alignUp(offset, maxAlign), maxAlign, nil
}

func alignUp(v, align uint64) uint64 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
