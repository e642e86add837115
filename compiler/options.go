package compiler

import (
	"github.com/go-logr/logr"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/debuginfo"
	"github.com/xyproto/xpujit/optimize"
)

// Options is the plain configuration struct threaded through one Compile
// call — no flags, env vars, or on-disk state feed the pipeline itself
// (spec.md §1 Non-goal), mirroring the teacher's CommandContext shape
// (cli.go) but confined to library configuration.
type Options struct {
	OptimizationLevel   optimize.Level
	InliningThreshold   int
	EnableDebugInfo     bool
	EnableFastMath      bool
	TargetArchitecture  capability.Architecture
	AllowedCapabilities capability.Context
	Diagnostics         Diagnostics

	// DebugInfo, when non-nil and EnableDebugInfo is set, resolves a
	// failing instruction's bytecode offset to a source sequence point
	// (spec.md §2 component 9, §6 "Debug-symbol provider"). Its absence,
	// or any lookup miss, is tolerated: the compile error still carries
	// the method name and bytecode offset either way.
	DebugInfo  *debuginfo.Loader
	AssemblyID string

	// Stats, when non-nil, accumulates compile outcome counters across
	// every call that shares it; embedders that don't track this can
	// leave it nil.
	Stats *Stats
}

// Diagnostics is the sink Compile reports warnings and recoverable
// conditions to; embedders that don't care can pass
// Diagnostics{Log: logr.Discard()}.
type Diagnostics struct {
	Log logr.Logger
}

func (d Diagnostics) logger() logr.Logger {
	if d.Log.GetSink() == nil {
		return logr.Discard()
	}
	return d.Log
}
