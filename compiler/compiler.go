package compiler

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/xyproto/xpujit/backend/ptx"
	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/frontend"
	"github.com/xyproto/xpujit/intrinsics"
	"github.com/xyproto/xpujit/ir"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/optimize"
	"github.com/xyproto/xpujit/types"
)

// MethodRef is the compiler entry point's input: a decodable method body
// plus the System that owns its parameter/return types (spec.md §6).
type MethodRef struct {
	Body   frontend.MethodBody
	System *types.System
}

// registry is built once per process, in the fixed order intrinsics.NewRegistry
// establishes, and is read-only thereafter — every Compile call shares it.
var registry = intrinsics.NewRegistry()

// Compile decodes, optimizes, and lowers one method to a packaged kernel
// for the requested backend. It checks ctx between every pipeline stage
// and returns ErrCancelled with no partial CompiledKernel if the caller's
// context is done (spec.md §6 Cancellation).
func Compile(ctx context.Context, ref MethodRef, backend kernel.Backend, capCtx capability.Context, opts Options, diag Diagnostics) (k *kernel.CompiledKernel, err error) {
	defer func() {
		if err != nil {
			opts.Stats.recordFailure(err)
		} else {
			opts.Stats.recordSuccess()
		}
	}()

	log := diag.logger()
	loc := ir.Location{MethodName: ref.Body.Name}

	if opts.EnableFastMath {
		ref.Body.EnableFastMath = true
	}
	if opts.EnableDebugInfo {
		ref.Body.EnableDebugInfo = true
	}
	if opts.TargetArchitecture != 0 {
		capCtx.Arch = opts.TargetArchitecture
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, wrap(ErrCancelled, "pre-decode", loc, err)
	}

	log.V(1).Info("decoding method body", "method", ref.Body.Name, "bytes", len(ref.Body.Code))
	m, err := frontend.Decode(ref.Body, ref.System, registry, capCtx)
	if err != nil {
		return nil, enrichLocation(ctx, ref, opts, classifyFrontendError(ref.Body.Name, err))
	}
	if ref.Body.Code != nil {
		m.Inlinable = len(m.Values()) < opts.InliningThreshold
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, wrap(ErrCancelled, "post-decode", loc, err)
	}

	optOpts := optimize.Options{
		Level:             opts.OptimizationLevel,
		InliningThreshold: opts.InliningThreshold,
		Capability:        capCtx,
	}
	log.V(1).Info("running optimizer", "level", opts.OptimizationLevel)
	m, err = optimize.Run(ctx, m, optOpts, nil)
	if err != nil {
		return nil, enrichLocation(ctx, ref, opts, classifyOptimizeError(ref.Body.Name, err))
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, wrap(ErrCancelled, "pre-lowering", loc, err)
	}

	switch backend {
	case kernel.BackendPTX:
		log.V(1).Info("lowering to PTX", "method", ref.Body.Name, "arch", capCtx.Arch)
		k, err := ptx.Lower(ref.System, m, ptx.Options{Capability: capCtx})
		if err != nil {
			return nil, enrichLocation(ctx, ref, opts, classifyBackendError(ref.Body.Name, err))
		}
		return k, nil
	default:
		return nil, wrap(ErrUnsupportedOperation, "lowering", loc,
			fmt.Errorf("backend %s has no lowering implementation in this build", backend))
	}
}

// CompileAll compiles refs concurrently, fanning out with errgroup bounded
// to GOMAXPROCS running compiles at a time, sharing the single process-wide
// intrinsics registry and each ref's own *types.System (spec.md §5
// "separate workers", generalized from flapc's per-architecture build
// fan-out to N independent methods).
func CompileAll(ctx context.Context, refs []MethodRef, backend kernel.Backend, capCtx capability.Context, opts Options, diag Diagnostics) ([]*kernel.CompiledKernel, error) {
	results := make([]*kernel.CompiledKernel, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			k, err := Compile(gctx, ref, backend, capCtx, opts, diag)
			if err != nil {
				return err
			}
			results[i] = k
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
