// Package debuginfo is the optional, lazy loader for source-level debug
// metadata described in spec.md §2 component 9 and §6 "Debug-symbol
// provider": given an assembly identifier it returns PDB-equivalent bytes,
// or tolerates the provider having none at all.
//
// The embedder owns the actual symbol store (on-disk PDB, a remote symbol
// server, anything); this package only defines the contract and maps the
// result onto ir.Location sequence points the backend can thread through
// debug directives. Fetching is retried with a bounded exponential backoff
// — the same shape the pack's host-metadata provider uses for its own
// flaky external dependency — because a slow or momentarily-unavailable
// symbol server should degrade to "no debug info" rather than fail or
// stall a compile that doesn't otherwise need it.
package debuginfo

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Provider is the embedder-supplied contract: given an assembly identifier,
// return debug metadata bytes, or (nil, nil) if none exist for it. Any
// non-nil error is treated as a transient fetch failure and retried.
type Provider interface {
	LoadDebugInfo(ctx context.Context, assemblyID string) ([]byte, error)
}

// SequencePoint maps one bytecode offset in a method back to a source
// position, the unit DebugInformation is ultimately after.
type SequencePoint struct {
	Offset int
	File   string
	Line   int
	Column int
}

// Table is the parsed, queryable form of one assembly's debug metadata:
// a sequence-point list per method, sorted by Offset.
type Table struct {
	points map[string][]SequencePoint
}

// Lookup returns the sequence point active at or immediately before offset
// within method, and whether one was found at all. Absence is not an
// error — plenty of compiler-synthesized or fully-inlined instructions
// have no source mapping.
func (t *Table) Lookup(method string, offset int) (SequencePoint, bool) {
	if t == nil {
		return SequencePoint{}, false
	}
	pts := t.points[method]
	var best SequencePoint
	found := false
	for _, p := range pts {
		if p.Offset > offset {
			break
		}
		best, found = p, true
	}
	return best, found
}

// Loader fetches and parses debug metadata on first request per assembly,
// then caches the result (including a "known absent" result) for the
// lifetime of the Loader. It is safe for concurrent use by multiple
// compilations the same way types.System is (spec.md §5).
type Loader struct {
	provider   Provider
	parse      func([]byte) (*Table, error)
	maxRetries uint
	maxElapsed time.Duration

	mu    sync.Mutex
	cache map[string]*Table
}

// Options configures retry behavior around the embedder's Provider.
type Options struct {
	// MaxRetries bounds the number of fetch attempts; 0 selects a default
	// of 3.
	MaxRetries uint
	// MaxElapsed bounds total time spent retrying one assembly's fetch
	// before giving up and treating it as absent; 0 selects a default of
	// 2 seconds, well under any reasonable per-method compile budget.
	MaxElapsed time.Duration
}

// NewLoader constructs a Loader around provider, parsing successfully
// fetched bytes with parse. A nil provider is valid and makes every Load
// call return (nil, nil) immediately, matching "absence is tolerated".
func NewLoader(provider Provider, parse func([]byte) (*Table, error), opts Options) *Loader {
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	maxElapsed := opts.MaxElapsed
	if maxElapsed == 0 {
		maxElapsed = 2 * time.Second
	}
	return &Loader{
		provider:   provider,
		parse:      parse,
		maxRetries: maxRetries,
		maxElapsed: maxElapsed,
		cache:      make(map[string]*Table),
	}
}

// Load returns the parsed debug Table for assemblyID, lazily fetching and
// caching it on first use. A nil Table with a nil error means no debug
// info is available (provider returned nothing, or is itself nil); a
// non-nil error means every retry against a responding-but-failing
// provider was exhausted, which the caller should report as a warning to
// the diagnostic sink (spec.md §7: "does not fail the compile").
func (l *Loader) Load(ctx context.Context, assemblyID string) (*Table, error) {
	if l.provider == nil {
		return nil, nil
	}

	l.mu.Lock()
	t, ok := l.cache[assemblyID]
	l.mu.Unlock()
	if ok {
		return t, nil
	}

	eb := backoff.NewExponentialBackOff()

	raw, err := backoff.Retry(ctx, func() ([]byte, error) {
		return l.provider.LoadDebugInfo(ctx, assemblyID)
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(l.maxRetries), backoff.WithMaxElapsedTime(l.maxElapsed))
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if raw == nil {
		l.cache[assemblyID] = nil
		return nil, nil
	}

	table, err := l.parse(raw)
	if err != nil {
		return nil, err
	}
	l.cache[assemblyID] = table
	return table, nil
}
