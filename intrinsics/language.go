package intrinsics

import (
	"strconv"
	"strings"

	"github.com/xyproto/xpujit/ir"
)

// ParseInlineAssembly splits an inline-assembly template into literal spans
// and `%N` argument references (spec.md §4.4). `%%` escapes a literal
// percent sign. argCount bounds valid argument indices; an index at or
// beyond it, or any other `%`-escape, fails with InvalidInlineAssemblyError.
func ParseInlineAssembly(template string, argCount int) ([]ir.AsmSpan, error) {
	var spans []ir.AsmSpan
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			spans = append(spans, ir.AsmSpan{Literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(template)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '%' {
			lit.WriteRune(c)
			continue
		}
		if i+1 >= len(runes) {
			return nil, &InvalidInlineAssemblyError{Template: template, Reason: "trailing '%' with no escape"}
		}
		next := runes[i+1]
		if next == '%' {
			lit.WriteRune('%')
			i++
			continue
		}
		if next < '0' || next > '9' {
			return nil, &InvalidInlineAssemblyError{Template: template, Reason: "unknown escape '%" + string(next) + "'"}
		}
		j := i + 1
		for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
			j++
		}
		n, err := strconv.Atoi(string(runes[i+1 : j]))
		if err != nil {
			return nil, &InvalidInlineAssemblyError{Template: template, Reason: "malformed argument index"}
		}
		if n < 0 || n >= argCount {
			return nil, &InvalidInlineAssemblyError{Template: template, Reason: "argument index %" + strconv.Itoa(n) + " out of range"}
		}
		flush()
		spans = append(spans, ir.AsmSpan{IsArg: true, Arg: n})
		i = j - 1
	}
	flush()
	return spans, nil
}

// LanguageCall is the decoded call-site shape a Language-intrinsic handler
// needs beyond the common InvocationContext fields: the raw template text
// and the per-operand direction vector, both supplied by the frontend from
// the call's Callee entry (its AsmTemplate and AsmDirections fields).
type LanguageCall struct {
	Template   string
	Directions []ir.Direction
}

// registerLanguage wires the single Language.Emit entry point. Its handler
// always refuses when reached through Dispatch; the frontend builds a
// LanguageCall per call site and calls EmitInline directly instead.
func registerLanguage(r *Registry) {
	r.register(MethodKey{Type: "Language", Method: "Emit"}, CategoryLanguage, func(ctx *InvocationContext) error {
		return &UnsupportedIntrinsicError{DeclaringType: "Language", Method: "Emit"}
	})
}

// EmitInline builds the OpLanguageEmit value directly; the frontend calls
// this instead of Dispatch for Language intrinsics because it needs the
// template and directions that arrive outside the generic
// InvocationContext/Args shape.
func EmitInline(ctx *InvocationContext, call LanguageCall) error {
	// The direction vector parallels the template's argument slots; the
	// operand vector supplies a value only for In/InOut slots (an Out slot
	// binds to the emitted value's own result register).
	inputs := 0
	for _, d := range call.Directions {
		if d == ir.DirIn || d == ir.DirInOut {
			inputs++
		}
	}
	if inputs != len(ctx.Args) {
		return &InvalidInlineAssemblyError{Template: call.Template, Reason: "input direction count does not match operand count"}
	}
	spans, err := ParseInlineAssembly(call.Template, len(call.Directions))
	if err != nil {
		return err
	}
	id, err := ctx.Builder.CreateLanguageEmit(ctx.ResultType, spans, ctx.Args, call.Directions)
	if err != nil {
		return err
	}
	ctx.Result = id
	return nil
}
