// Package sandbox implements the per-session, collectible module loader
// described in spec.md §4.5.
//
// There is no in-process managed loader to borrow in Go the way a
// reflection-based host runtime would use one, so each session's sandbox
// is modeled as its own child process (the strategy spec.md §9's Design
// Notes calls out explicitly): the process itself is the unit of
// collectible isolation, a fresh one runs each Invoke and is gone before
// Invoke returns, "dispose" removes the work directory, and "collectible"
// becomes literally true - once the process exits, every module it had
// loaded is gone, no GC cycle required. The subprocess pattern itself
// (context timeout, process-group kill) matches the one used for shell
// tool execution elsewhere in this repo.
package sandbox

import (
	"context"
	"errors"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// ErrBlockedModule is returned by LoadWithPolicy when source references a module on
// the active SecurityPolicy's blocklist.
var ErrBlockedModule = errors.New("sandbox: blocked module")

// ErrDisposed is returned by any call on a Sandbox after Dispose.
var ErrDisposed = errors.New("sandbox: disposed")

// InvokeResult is the raw outcome of running a loaded artifact's entry
// point, before the engine derives an ExecutionOutcome from it.
type InvokeResult struct {
	Stdout        string
	Stderr        string
	ReturnValue   *string
	TimedOut      bool
	MemoryExceeded bool
	RuntimePanic  string // non-empty if the invoked code threw/panicked
}

// Sandbox is the narrow capability the execution engine depends on: load
// an artifact, attach dependency artifacts, invoke its entry point under
// the caller's context (which carries the timeout), and dispose. Nothing
// above this package inspects how a Sandbox is implemented.
type Sandbox interface {
	// Load loads the compiled artifact. usings lists every top-level
	// "using X;" directive found in the rewritten source that produced
	// the artifact, so the loader can refuse blocked modules without
	// needing its own parser.
	Load(artifact []byte, usings []string) error

	// AttachDependency makes an additional local artifact path available
	// for resolution during the next Invoke.
	AttachDependency(path string) error

	// Invoke runs the loaded artifact's entry point. ctx carries both the
	// caller's cancellation and, via the engine, the execution timeout;
	// policy's MaxMemoryBytes (when EnforceMemory is set) bounds the
	// sampled allocation delta during the call.
	Invoke(ctx context.Context, policy types.SecurityPolicy) (InvokeResult, error)

	// Dispose releases the sandbox. All modules it loaded become
	// reclaimable. Safe to call more than once.
	Dispose() error

	// Alive reports whether the sandbox's underlying process/instance is
	// still live. Used by collectibility tests: after Dispose, Alive
	// must observe false within a bounded number of checks.
	Alive() bool
}
