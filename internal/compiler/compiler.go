// Package compiler defines the narrow contract the execution engine uses
// to turn rewritten source text into a loadable artifact. The compiler
// itself is treated as an opaque external collaborator: this package
// never inspects compiler internals, only the result shape.
package compiler

import (
	"context"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// Result is what a Compiler produces for one compilation.
type Result struct {
	Success bool
	// ArtifactBytes is the compiled console-application artifact, present
	// when Success is true.
	ArtifactBytes []byte
	// SymbolBytes is the companion debug-symbol blob, if the compiler
	// produced one. May be nil even on success.
	SymbolBytes []byte
	Diagnostics []types.DiagnosticRecord
}

// Compiler compiles source text against a set of reference assembly
// paths, with optimization enabled and unsafe constructs disabled, per
// spec.md §4.4. Implementations must treat ctx cancellation/deadline as
// authoritative and return promptly once it fires.
type Compiler interface {
	Compile(ctx context.Context, sourceText string, references []string) (Result, error)
}
