// Package optimize implements the ordered, closed IR->IR transforms of
// spec.md §4.5: folding & algebraic simplification, dead-code elimination,
// CFG simplification, inlining, loop-invariant hoisting, address-mode
// lowering, and (validated, backend-realized) SSA destruction.
//
// This generalizes the teacher's optimizer.go Optimizer/OptimizationPass
// pair — the same per-pass Name()/Run(), the same fixed-point-with-a-round-
// cap driver — from flapc's Program/AST node tree to ir.Method/SSA values,
// with the dominance and use-def bookkeeping spec.md requires that an AST
// rewrite never needed.
package optimize

import (
	"context"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/ir"
)

// Level selects how many passes run, mirroring spec.md §6's
// optimization_level configuration option.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelFull
)

// Options configures one pipeline run.
type Options struct {
	Level Level

	// InliningThreshold is the IR-value count below which a callee not
	// explicitly marked Inlinable is still inlined unconditionally
	// (spec.md §4.5 step 4).
	InliningThreshold int

	Capability capability.Context
}

// Pass is one closed IR->IR transform over a single Method.
type Pass interface {
	Name() string
	Run(m *ir.Method, opts Options) (changed bool, err error)
}

// Passes returns the ordered pass list for opts.Level. Callees supplies
// every device method in the compilation unit addressable by call symbol,
// consulted only by InlinePass.
func Passes(opts Options, callees map[string]*ir.Method) []Pass {
	switch opts.Level {
	case LevelNone:
		return nil
	case LevelBasic:
		return []Pass{FoldPass{}, DCEPass{}, CFGSimplifyPass{}}
	default: // LevelFull
		return []Pass{
			FoldPass{},
			DCEPass{},
			CFGSimplifyPass{},
			InlinePass{Callees: callees, Threshold: opts.InliningThreshold},
			DCEPass{},
			LICMPass{},
			AddressModeLoweringPass{},
			SSADestructionPass{},
		}
	}
}

// CancelledError is returned when ctx is done at a pass boundary (spec.md
// §5: "a compilation is cancellable only at pass boundaries").
type CancelledError struct {
	Pass string
}

func (e *CancelledError) Error() string {
	return "optimize: cancelled before pass " + e.Pass
}

// maxRounds bounds the fixed-point iteration: each pass can unlock further
// work for another (fold exposes dead code, CFG simplification exposes
// more folding opportunities, and so on), so the driver reruns the whole
// pass list until nothing changes or this cap is hit.
const maxRounds = 16

// Run iterates Passes(opts, callees) to a fixpoint over m, checking ctx
// between every pass so a cancelled compilation (spec.md §5) stops with no
// partial substitution of m. Passes mutate m in place through the Builder/
// Rewriter primitives; Run returns the same *ir.Method it was given.
func Run(ctx context.Context, m *ir.Method, opts Options, callees map[string]*ir.Method) (*ir.Method, error) {
	passes := Passes(opts, callees)
	for round := 0; round < maxRounds; round++ {
		anyChanged := false
		for _, p := range passes {
			if err := ctx.Err(); err != nil {
				return nil, &CancelledError{Pass: p.Name()}
			}
			changed, err := p.Run(m, opts)
			if err != nil {
				return nil, err
			}
			anyChanged = anyChanged || changed
		}
		if !anyChanged {
			break
		}
	}
	return m, nil
}
