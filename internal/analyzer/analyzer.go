// Package analyzer implements the static pre-compile check that rejects
// forbidden identifiers in rewritten C# source. It walks the same
// lexical token stream as the rewriter package rather than a full syntax
// tree - see rewriter/lexer.go for why - but is deliberately restricted to
// identifier-name tokens outside of strings and comments, which is enough
// to defeat both naive string search (comments, interpolation) and the
// false positives a string search would produce (identifiers appearing
// inside a string literal are never reachable C# code).
package analyzer

import (
	"github.com/roslyn-stone/roslyn-stone/internal/rewriter"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// Analyze walks source for identifier tokens matching policy's forbidden
// set. When policy.RestrictAPIs is false it returns no diagnostics - the
// analyzer is skipped entirely per spec. Source is expected to already be
// rewritten (post SourceRewriter); analyzer does not itself rewrite.
func Analyze(source string, policy types.SecurityPolicy) []types.DiagnosticRecord {
	if !policy.RestrictAPIs {
		return nil
	}

	var diags []types.DiagnosticRecord
	for _, ident := range rewriter.IdentifierTokens(source) {
		if !policy.IsForbidden(ident.Text) {
			continue
		}
		diags = append(diags, types.DiagnosticRecord{
			Code:     types.CodeForbiddenAPI,
			Message:  "forbidden identifier: " + ident.Text,
			Severity: types.SeverityError,
			Line:     ident.Line,
			Column:   ident.Column,
		})
	}
	return diags
}

// HasErrors reports whether diags contains at least one Error-severity
// record, the condition under which the engine short-circuits per §4.3.
func HasErrors(diags []types.DiagnosticRecord) bool {
	for _, d := range diags {
		if d.Severity == types.SeverityError {
			return true
		}
	}
	return false
}
