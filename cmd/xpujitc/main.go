// Command xpujitc is a developer convenience wrapping compiler.Compile: it
// reads a JSON method descriptor plus a base64 bytecode blob, compiles it
// for the PTX backend, and prints the emitted source or a formatted
// CompileError. It is not part of the compiler core's external contract
// (spec.md §6 "No CLI ... are part of this core") — compiler.Options is
// never populated from flags or environment variables inside the
// compiler package itself; this binary only assembles Options before
// calling in, the same separation the teacher's main.go/cli.go keep
// between flag parsing and CompileC67WithOptions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/xyproto/env/v2"

	"github.com/xyproto/xpujit/capability"
	"github.com/xyproto/xpujit/compiler"
	"github.com/xyproto/xpujit/kernel"
	"github.com/xyproto/xpujit/optimize"
)

// CommandContext bundles this run's flags, generalizing the teacher's own
// CommandContext (cli.go) from CLI-compiler flags to this harness's much
// smaller surface.
type CommandContext struct {
	Verbose   bool
	Arch      string
	OptLevel  string
	FastMath  bool
	DebugInfo bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	subcmd := os.Args[1]
	switch subcmd {
	case "compile":
		if err := cmdCompile(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "xpujitc:", err)
			os.Exit(1)
		}
	case "dump":
		if err := cmdDump(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "xpujitc:", err)
			os.Exit(1)
		}
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "xpujitc: unknown command %q\n\n", subcmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`xpujitc - developer harness for the PTX compiler core

USAGE:
    xpujitc compile <descriptor.json>   compile a method, print PTX source
    xpujitc dump <descriptor.json>      compile a method, print a full dump
                                         (PTX source, parameter layout, KernelInfo)
    xpujitc help                        show this message

FLAGS:
    -arch <sm_NN>     target PTX architecture (default sm_70, or $XPUJIT_ARCH)
    -opt <level>      none|basic|full   (default full, or $XPUJIT_OPT_LEVEL)
    -fast-math        enable fast-math arithmetic flags
    -debug            request source locations in CompileErrors
    -v                verbose: log pipeline stage progress to stderr
`)
}

// newCommandContext seeds flag defaults from environment variable
// overrides the same way the teacher's dependencies.go lets
// FLAPC_<FUNCNAME> override FunctionRepository — here XPUJIT_VERBOSE,
// XPUJIT_ARCH, and XPUJIT_OPT_LEVEL override the compiled-in defaults
// before flag parsing applies any explicit -flag the user passed.
func newCommandContext(args []string) (*CommandContext, []string, error) {
	fs := flag.NewFlagSet("xpujitc", flag.ContinueOnError)
	ctx := &CommandContext{}
	fs.BoolVar(&ctx.Verbose, "v", env.Bool("XPUJIT_VERBOSE"), "verbose")
	fs.StringVar(&ctx.Arch, "arch", env.Str("XPUJIT_ARCH", "sm_70"), "target architecture")
	fs.StringVar(&ctx.OptLevel, "opt", env.Str("XPUJIT_OPT_LEVEL", "full"), "optimization level")
	fs.BoolVar(&ctx.FastMath, "fast-math", false, "enable fast-math flags")
	fs.BoolVar(&ctx.DebugInfo, "debug", false, "request debug info")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return ctx, fs.Args(), nil
}

func (c *CommandContext) logger() logr.Logger {
	if !c.Verbose {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: 1})
}

func (c *CommandContext) capability() (capability.Context, error) {
	n, err := parseArch(c.Arch)
	if err != nil {
		return capability.Context{}, fmt.Errorf("invalid -arch %q: %w", c.Arch, err)
	}
	cc := capability.Default()
	cc.Arch = capability.Architecture(n)
	return cc, nil
}

func (c *CommandContext) optLevel() (optimize.Level, error) {
	switch c.OptLevel {
	case "none":
		return optimize.LevelNone, nil
	case "basic":
		return optimize.LevelBasic, nil
	case "full", "":
		return optimize.LevelFull, nil
	default:
		return 0, fmt.Errorf("invalid -opt %q (want none|basic|full)", c.OptLevel)
	}
}

func loadDescriptor(path string) (methodDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return methodDescriptor{}, err
	}
	var d methodDescriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return methodDescriptor{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return d, nil
}

func compileFromArgs(args []string) (*kernel.CompiledKernel, error) {
	ctx, rest, err := newCommandContext(args)
	if err != nil {
		return nil, err
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("usage: xpujitc <compile|dump> [flags] <descriptor.json>")
	}
	desc, err := loadDescriptor(rest[0])
	if err != nil {
		return nil, err
	}
	ref, err := desc.toMethodRef()
	if err != nil {
		return nil, fmt.Errorf("descriptor: %w", err)
	}
	capCtx, err := ctx.capability()
	if err != nil {
		return nil, err
	}
	level, err := ctx.optLevel()
	if err != nil {
		return nil, err
	}

	opts := compiler.Options{
		OptimizationLevel:   level,
		InliningThreshold:   32,
		EnableDebugInfo:     ctx.DebugInfo,
		EnableFastMath:      ctx.FastMath,
		TargetArchitecture:  capCtx.Arch,
		AllowedCapabilities: capCtx,
		Stats:               compiler.NewStats(),
	}
	diag := compiler.Diagnostics{Log: ctx.logger()}

	return compiler.Compile(context.Background(), ref, kernel.BackendPTX, capCtx, opts, diag)
}

func cmdCompile(args []string) error {
	k, err := compileFromArgs(args)
	if err != nil {
		return formatCompileErr(err)
	}
	fmt.Print(string(k.Source))
	return nil
}

func cmdDump(args []string) error {
	k, err := compileFromArgs(args)
	if err != nil {
		return formatCompileErr(err)
	}
	fmt.Println(k.String())
	fmt.Println("--- parameter layout ---")
	for i, p := range k.ParameterLayout {
		fmt.Printf("  [%d] %s size=%d align=%d space=%s\n", i, p.Kind, p.Size, p.Align, p.Space)
	}
	fmt.Println("--- source ---")
	fmt.Print(string(k.Source))
	return nil
}

func formatCompileErr(err error) error {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return fmt.Errorf("[%s] %s: %s (%s)", ce.Kind, ce.Stage, ce.Err, ce.Location)
	}
	return err
}
