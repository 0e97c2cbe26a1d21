package compiler

import (
	"context"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// FakeCompiler is an in-process stand-in for a real compiler, used by
// tests (and available to callers who have no toolchain configured). It
// performs only a shallow brace-balance check and otherwise "compiles"
// successfully, returning the source text itself as the artifact bytes so
// a matching FakeSandbox (see internal/sandbox) can execute it without a
// real runtime.
type FakeCompiler struct{}

func (FakeCompiler) Compile(_ context.Context, sourceText string, _ []string) (Result, error) {
	if depth := braceBalance(sourceText); depth != 0 {
		return Result{
			Success: false,
			Diagnostics: []types.DiagnosticRecord{{
				Code:     types.CodeCompileError,
				Message:  "CS1513: } expected",
				Severity: types.SeverityError,
				Line:     1,
				Column:   1,
			}},
		}, nil
	}

	return Result{
		Success:       true,
		ArtifactBytes: []byte(sourceText),
	}, nil
}

// braceBalance returns the net nesting depth of '{'/'}' in src, ignoring
// occurrences inside string or char literals.
func braceBalance(src string) int {
	depth := 0
	inString, inChar := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case inChar:
			if c == '\\' {
				i++
			} else if c == '\'' {
				inChar = false
			}
		case c == '"':
			inString = true
		case c == '\'':
			inChar = true
		case c == '{':
			depth++
		case c == '}':
			depth--
		}
	}
	return depth
}
