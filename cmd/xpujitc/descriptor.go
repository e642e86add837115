package main

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/xyproto/xpujit/compiler"
	"github.com/xyproto/xpujit/frontend"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/types"
)

// methodDescriptor is the on-disk JSON shape of one compiler.MethodRef
// input: a method reference plus its byte-array body, exactly the
// contract spec.md §6 describes for the compiler entry point. It exists
// only so this harness has something human-editable to hand
// compiler.Compile; the pipeline itself never parses JSON.
type methodDescriptor struct {
	Name            string             `json:"name"`
	Scope           string             `json:"scope"` // "kernel" or "device"
	Params          []string           `json:"params"`
	Locals          []string           `json:"locals"`
	Return          string             `json:"return"`
	EnableDebugInfo bool               `json:"enable_debug_info"`
	CodeBase64      string             `json:"code_base64"`
	Consts          []constDescriptor  `json:"consts,omitempty"`
	Callees         []calleeDescriptor `json:"callees,omitempty"`
	Types           []string           `json:"types,omitempty"`
}

type constDescriptor struct {
	Type string `json:"type"`
	Bits uint64 `json:"bits"`
}

type calleeDescriptor struct {
	// Either (KeyType, KeyMethod) for an intrinsic/remapped call, or
	// LocalMethod for a same-unit device-function call, or AsmTemplate
	// for a Language (inline-assembly) call.
	KeyType     string   `json:"key_type,omitempty"`
	KeyMethod   string   `json:"key_method,omitempty"`
	LocalMethod string   `json:"local_method,omitempty"`
	ArgTypes    []string `json:"arg_types,omitempty"`
	Result      string   `json:"result,omitempty"`

	AsmTemplate   string   `json:"asm_template,omitempty"`
	AsmDirections []string `json:"asm_directions,omitempty"`
}

// toMethodRef resolves every type name against a fresh types.System built
// on the PTX backend's data layout, and decodes the base64 bytecode tape,
// producing the MethodRef compiler.Compile accepts.
func (d methodDescriptor) toMethodRef() (compiler.MethodRef, error) {
	sys := types.NewSystem(types.DefaultDataLayout)

	params, err := parseTypeList(sys, d.Params)
	if err != nil {
		return compiler.MethodRef{}, fmt.Errorf("params: %w", err)
	}
	locals, err := parseTypeList(sys, d.Locals)
	if err != nil {
		return compiler.MethodRef{}, fmt.Errorf("locals: %w", err)
	}
	ret, err := parseType(sys, d.Return)
	if err != nil {
		return compiler.MethodRef{}, fmt.Errorf("return: %w", err)
	}
	sideTypes, err := parseTypeList(sys, d.Types)
	if err != nil {
		return compiler.MethodRef{}, fmt.Errorf("types: %w", err)
	}

	scope := ir.ScopeDevice
	if strings.EqualFold(d.Scope, "kernel") {
		scope = ir.ScopeKernelEntry
	}

	code, err := base64.StdEncoding.DecodeString(d.CodeBase64)
	if err != nil {
		return compiler.MethodRef{}, fmt.Errorf("code_base64: %w", err)
	}

	consts := make([]frontend.ConstValue, len(d.Consts))
	for i, c := range d.Consts {
		t, err := parseType(sys, c.Type)
		if err != nil {
			return compiler.MethodRef{}, fmt.Errorf("consts[%d]: %w", i, err)
		}
		consts[i] = frontend.ConstValue{Type: t, Bits: c.Bits}
	}

	callees := make([]frontend.Callee, len(d.Callees))
	for i, c := range d.Callees {
		argTypes, err := parseTypeList(sys, c.ArgTypes)
		if err != nil {
			return compiler.MethodRef{}, fmt.Errorf("callees[%d].arg_types: %w", i, err)
		}
		var resultType *types.Type
		if c.Result != "" {
			resultType, err = parseType(sys, c.Result)
			if err != nil {
				return compiler.MethodRef{}, fmt.Errorf("callees[%d].result: %w", i, err)
			}
		}
		cal := frontend.Callee{
			LocalMethod: c.LocalMethod,
			ArgTypes:    argTypes,
			ResultType:  resultType,
		}
		if c.KeyType != "" {
			cal.Key = intrinsics.MethodKey{Type: c.KeyType, Method: c.KeyMethod}
		}
		if c.AsmTemplate != "" {
			cal.AsmTemplate = c.AsmTemplate
			cal.AsmDirections = make([]ir.Direction, len(c.AsmDirections))
			for j, dir := range c.AsmDirections {
				cal.AsmDirections[j] = parseDirection(dir)
			}
		}
		callees[i] = cal
	}

	body := frontend.MethodBody{
		Name:            d.Name,
		Params:          params,
		Locals:          locals,
		Return:          ret,
		Scope:           scope,
		Code:            code,
		Callees:         callees,
		Consts:          consts,
		Types:           sideTypes,
		EnableDebugInfo: d.EnableDebugInfo,
	}
	return compiler.MethodRef{Body: body, System: sys}, nil
}

func parseDirection(s string) ir.Direction {
	switch strings.ToLower(s) {
	case "out":
		return ir.DirOut
	case "inout":
		return ir.DirInOut
	default:
		return ir.DirIn
	}
}

func parseTypeList(sys *types.System, names []string) ([]*types.Type, error) {
	out := make([]*types.Type, len(names))
	for i, n := range names {
		t, err := parseType(sys, n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// parseType resolves a short type name to a canonical *types.Type. Views
// and pointers are written "view:elem[:space]" / "ptr:elem[:space]"; space
// defaults to Global when omitted, since that's the overwhelmingly common
// case for kernel parameters.
func parseType(sys *types.System, name string) (*types.Type, error) {
	if name == "" {
		return nil, nil
	}
	switch name {
	case "void":
		return sys.Void(), nil
	case "bool":
		return sys.Bool(), nil
	case "i8":
		return sys.Int8(), nil
	case "i16":
		return sys.Int16(), nil
	case "i32":
		return sys.Int32(), nil
	case "i64":
		return sys.Int64(), nil
	case "f16":
		return sys.Float16(), nil
	case "f32":
		return sys.Float32(), nil
	case "f64":
		return sys.Float64(), nil
	case "handle":
		return sys.Handle(), nil
	}
	if rest, ok := strings.CutPrefix(name, "view:"); ok {
		elem, space, err := splitElemSpace(sys, rest)
		if err != nil {
			return nil, err
		}
		return sys.ViewOf(elem, space), nil
	}
	if rest, ok := strings.CutPrefix(name, "ptr:"); ok {
		elem, space, err := splitElemSpace(sys, rest)
		if err != nil {
			return nil, err
		}
		return sys.PointerTo(elem, space), nil
	}
	return nil, fmt.Errorf("unrecognized type name %q", name)
}

func splitElemSpace(sys *types.System, rest string) (*types.Type, types.AddressSpace, error) {
	parts := strings.SplitN(rest, ":", 2)
	elem, err := parseType(sys, parts[0])
	if err != nil {
		return nil, 0, err
	}
	space := types.Global
	if len(parts) == 2 {
		space, err = parseAddressSpace(parts[1])
		if err != nil {
			return nil, 0, err
		}
	}
	return elem, space, nil
}

func parseAddressSpace(s string) (types.AddressSpace, error) {
	switch strings.ToLower(s) {
	case "generic":
		return types.Generic, nil
	case "global":
		return types.Global, nil
	case "shared":
		return types.Shared, nil
	case "local":
		return types.Local, nil
	case "const", "constant":
		return types.Constant, nil
	default:
		return 0, fmt.Errorf("unrecognized address space %q", s)
	}
}

// parseArch turns "sm_70"-style strings (or a bare integer) into a
// capability.Architecture, for the --arch flag.
func parseArch(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "sm_")
	return strconv.Atoi(s)
}
