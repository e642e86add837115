// Package types implements the compiler's canonical type system: a
// hash-consed universe of primitive, pointer, view, structure, function, and
// opaque handle types, with size/alignment/layout queries driven by a
// backend-supplied data layout.
//
// The shape mirrors the teacher's C67Type (types.go): a small closed Kind
// enum plus a payload struct, with a String() method for diagnostics. Where
// C67Type distinguishes "native" vs "foreign" (C) types for one embedder
// language, Type distinguishes the SSA IR's own primitive/aggregate/pointer
// kinds, because this system has no single host language to defer to.
package types

import "fmt"

// Kind is the category of a Type.
type Kind int

const (
	Void Kind = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Float16
	Float32
	Float64
	Pointer
	View
	Structure
	Function
	Handle
)

func (k Kind) String() string {
	switch k {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int8:
		return "i8"
	case Int16:
		return "i16"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Float16:
		return "f16"
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Pointer:
		return "ptr"
	case View:
		return "view"
	case Structure:
		return "struct"
	case Function:
		return "func"
	case Handle:
		return "handle"
	default:
		return "unknown"
	}
}

// AddressSpace is a disjoint device memory region. It is part of the
// structural identity of Pointer and View types: two pointers with the same
// element type but different address spaces are distinct types.
type AddressSpace int

const (
	Generic AddressSpace = iota
	Global
	Shared
	Local
	Constant
)

func (a AddressSpace) String() string {
	switch a {
	case Generic:
		return "generic"
	case Global:
		return "global"
	case Shared:
		return "shared"
	case Local:
		return "local"
	case Constant:
		return "const"
	default:
		return "unknown"
	}
}

// Field is one member of a Structure type, in declaration order.
type Field struct {
	Name string
	Elem *Type
}

// Type is the canonical, interned representation of a type. Two *Type
// pointers produced by the same System are equal (==) if and only if they
// describe the same structural type — this is the hash-consing invariant
// from spec.md §3: "equality is reference equality of canonical handles."
//
// Type is immutable once a System has interned it.
type Type struct {
	kind Kind

	// Pointer / View
	elem  *Type
	space AddressSpace

	// Structure
	fields []Field

	// Function
	ret    *Type
	params []*Type

	// cached signature used as the intern-table key; computed once.
	sig string
}

func (t *Type) Kind() Kind { return t.kind }

// Elem returns the pointed-to/viewed type for Pointer and View kinds, or nil
// otherwise.
func (t *Type) Elem() *Type { return t.elem }

// AddressSpace returns the address space for Pointer and View kinds, or
// Generic otherwise.
func (t *Type) AddressSpace() AddressSpace { return t.space }

// Fields returns the ordered field list for Structure kinds, or nil
// otherwise. The returned slice must not be mutated.
func (t *Type) Fields() []Field { return t.fields }

// Return and Params expose a Function type's signature.
func (t *Type) Return() *Type   { return t.ret }
func (t *Type) Params() []*Type { return t.params }

func (t *Type) String() string {
	switch t.kind {
	case Pointer:
		return fmt.Sprintf("ptr<%s,%s>", t.elem, t.space)
	case View:
		return fmt.Sprintf("view<%s,%s>", t.elem, t.space)
	case Structure:
		return fmt.Sprintf("struct%s", t.sig)
	case Function:
		return fmt.Sprintf("func%s->%s", t.sig, t.ret)
	default:
		return t.kind.String()
	}
}

// IsNumeric reports whether arithmetic opcodes accept this type directly.
func (t *Type) IsNumeric() bool {
	switch t.kind {
	case Int8, Int16, Int32, Int64, Float16, Float32, Float64, Bool:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the type is one of the Float{16,32,64} kinds.
func (t *Type) IsFloat() bool {
	switch t.kind {
	case Float16, Float32, Float64:
		return true
	default:
		return false
	}
}

// IsInt reports whether the type is one of the Int{8,16,32,64} kinds.
func (t *Type) IsInt() bool {
	switch t.kind {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}
