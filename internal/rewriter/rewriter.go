// Package rewriter turns a REPL-style C# snippet into a self-contained
// top-level program: bare return statements become empty statements,
// value-carrying ones become print calls, a trailing expression statement
// is printed the same way,
// and the namespace imports the rewritten code needs are injected.
//
// There is no C# parser in the reference corpus this package was built
// from, so rewriting works over a hand-rolled lexer (see lexer.go) rather
// than a real syntax tree. The lexer is string/comment aware and tracks
// brace/paren/bracket depth, which is enough to find statement boundaries
// and avoid matching keywords that appear inside literals or comments.
// Edits are applied as byte-range splices over the original source, so
// every rune the lexer doesn't touch - all whitespace and comments -
// survives untouched.
package rewriter

import (
	"sort"
	"strings"
)

// edit is a half-open byte range [start, end) in the original source to be
// replaced with ins. A zero-width edit (start == end) is a pure insertion.
type edit struct {
	start, end int
	ins        string
}

// controlKeywords are statement-leading keywords that can never start a
// bare expression statement, used to keep rule 3 from wrapping things like
// "if (x) { ... }" or "return x;".
var controlKeywords = map[string]bool{
	"return": true, "throw": true, "break": true, "continue": true,
	"goto": true, "yield": true, "if": true, "for": true, "foreach": true,
	"while": true, "do": true, "switch": true, "try": true, "using": true,
	"lock": true, "checked": true, "unchecked": true, "fixed": true,
	"class": true, "struct": true, "interface": true, "namespace": true,
	"public": true, "private": true, "protected": true, "internal": true,
	"static": true, "void": true, "var": true,
}

// Rewrite applies the spec's rewrite rules to snippet and returns a program
// text a standard top-level-statements compile accepts. When no rule fires,
// the only change is import injection (rule 4/5); Rewrite never reports an
// error - syntactically ambiguous input is left for the compiler to reject.
func Rewrite(snippet string) string {
	toks := lex(snippet)

	hasReturn := false
	var edits []edit

	for i, t := range toks {
		if !isWord(t, "return") {
			continue
		}
		hasReturn = true

		j := firstSignificant(toks, i+1)
		if j == -1 {
			continue
		}

		if toks[j].kind == tokPunct && toks[j].text == ";" {
			// Rule 1: bare "return;" becomes a no-op statement. Removing
			// just the keyword leaves "   ;", a valid empty statement,
			// and preserves every byte of surrounding trivia.
			edits = append(edits, edit{t.start, t.end, ""})
			continue
		}

		// Rule 2: "return <expr>;" prints <expr>. Find the statement's own
		// terminating ';' - the first one at the same brace/paren depth as
		// the return keyword itself.
		semi := -1
		for k := j; k < len(toks); k++ {
			if toks[k].kind == tokPunct && toks[k].text == ";" && toks[k].depth == t.depth {
				semi = k
				break
			}
		}
		if semi == -1 {
			continue // unterminated; leave for the compiler to reject
		}
		edits = append(edits, edit{t.start, t.end, ""})
		edits = append(edits, edit{toks[j].start, toks[j].start, "Console.WriteLine("})
		edits = append(edits, edit{toks[semi].start, toks[semi].start, ")"})
	}

	// Rule 3: implicit REPL result. Fires at most once, on the final
	// top-level statement, only when no return appears anywhere.
	if !hasReturn {
		spans := splitTopLevelStatements(toks)
		if len(spans) > 0 {
			if first, ok := exprStatementInsertionPoints(toks, spans[len(spans)-1]); ok {
				edits = append(edits, edit{toks[first.openAt].start, toks[first.openAt].start, "Console.WriteLine("})
				if first.hasTerminator {
					edits = append(edits, edit{toks[first.closeAt].start, toks[first.closeAt].start, ")"})
				} else {
					edits = append(edits, edit{toks[first.closeAt].end, toks[first.closeAt].end, ");"})
				}
			}
		}
	}

	body := applyEdits(snippet, edits)

	var prefix strings.Builder
	if containsWord(toks, "await") && !hasTopLevelUsing(toks, "System.Threading.Tasks") {
		prefix.WriteString("using System.Threading.Tasks;\n")
	}
	if !hasTopLevelUsing(toks, "System") {
		prefix.WriteString("using System;\n")
	}

	return prefix.String() + body
}

// stmtSpan is a top-level statement: token indices [startTok, endTok]
// inclusive. If terminated, endTok is the terminating ';' or '}' itself;
// otherwise the span runs to end of input with no terminator (the common
// shape for a REPL snippet's trailing expression, e.g. "2 + 3" with no
// semicolon at all).
type stmtSpan struct {
	startTok, endTok int
	terminated       bool
	terminatorIsBrace bool
}

func splitTopLevelStatements(toks []token) []stmtSpan {
	var spans []stmtSpan
	start := 0
	for i, t := range toks {
		if t.kind != tokPunct {
			continue
		}
		if t.text == ";" && t.depth == 0 {
			spans = append(spans, stmtSpan{start, i, true, false})
			start = i + 1
		} else if t.text == "}" && t.depth == 0 {
			spans = append(spans, stmtSpan{start, i, true, true})
			start = i + 1
		}
	}
	if start < len(toks) {
		for i := start; i < len(toks); i++ {
			if toks[i].kind != tokTrivia {
				spans = append(spans, stmtSpan{start, len(toks) - 1, false, false})
				break
			}
		}
	}
	return spans
}

type insertionPoints struct {
	openAt        int
	closeAt       int
	hasTerminator bool
}

// exprStatementInsertionPoints reports whether sp looks like a bare
// expression statement (as opposed to a declaration, a control-flow
// construct, or a block) and, if so, where to splice the wrapping call in.
//
// The classifier is a heuristic, not a parser: a statement is treated as a
// declaration - and left unwrapped - whenever its first two significant
// tokens are both identifiers ("int x", "var name", "List x" for a
// non-generic type). Statements led by a control keyword ("if (...)",
// "for (...)" etc.) are excluded separately, via controlKeywords.
func exprStatementInsertionPoints(toks []token, sp stmtSpan) (insertionPoints, bool) {
	if sp.terminatorIsBrace {
		return insertionPoints{}, false
	}

	limit := sp.endTok
	if sp.terminated {
		limit = sp.endTok - 1
	}

	first, second := -1, -1
	for i := sp.startTok; i <= limit; i++ {
		if toks[i].kind == tokTrivia {
			continue
		}
		if first == -1 {
			first = i
			continue
		}
		second = i
		break
	}
	if first == -1 {
		return insertionPoints{}, false
	}
	if toks[first].kind == tokWord && controlKeywords[toks[first].text] {
		return insertionPoints{}, false
	}
	if second != -1 && toks[first].kind == tokWord && toks[second].kind == tokWord {
		return insertionPoints{}, false
	}

	if sp.terminated {
		return insertionPoints{openAt: first, closeAt: sp.endTok, hasTerminator: true}, true
	}
	return insertionPoints{openAt: first, closeAt: sp.endTok, hasTerminator: false}, true
}

func containsWord(toks []token, word string) bool {
	for _, t := range toks {
		if isWord(t, word) {
			return true
		}
	}
	return false
}

// hasTopLevelUsing reports whether toks already contains a depth-0
// "using <dotted-name>;" directive for name.
func hasTopLevelUsing(toks []token, name string) bool {
	parts := strings.Split(name, ".")
	for i, t := range toks {
		if !(t.kind == tokWord && t.text == "using" && t.depth == 0) {
			continue
		}
		pos := i + 1
		matched := true
		for pi, part := range parts {
			if pi > 0 {
				pos = firstSignificant(toks, pos)
				if pos == -1 || !(toks[pos].kind == tokPunct && toks[pos].text == ".") {
					matched = false
					break
				}
				pos++
			}
			pos = firstSignificant(toks, pos)
			if pos == -1 || !(toks[pos].kind == tokWord && toks[pos].text == part) {
				matched = false
				break
			}
			pos++
		}
		if !matched {
			continue
		}
		pos = firstSignificant(toks, pos)
		if pos != -1 && toks[pos].kind == tokPunct && toks[pos].text == ";" {
			return true
		}
	}
	return false
}

func applyEdits(src string, edits []edit) string {
	if len(edits) == 0 {
		return src
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out strings.Builder
	cur := 0
	for _, e := range edits {
		if e.start < cur {
			continue // overlapping edit from a malformed snippet; skip rather than corrupt output
		}
		out.WriteString(src[cur:e.start])
		out.WriteString(e.ins)
		cur = e.end
	}
	out.WriteString(src[cur:])
	return out.String()
}
