package rewriter

// Identifier is a single identifier-or-keyword token's text and 1-based
// source position, exposed for the static analyzer.
type Identifier struct {
	Text   string
	Line   int
	Column int
}

// IdentifierTokens returns every word token (identifier, keyword, or
// numeric literal) in
// source, in order, with 1-based line/column positions. The analyzer uses
// this instead of lexing source itself so both packages agree on exactly
// what counts as an identifier - outside strings, chars, and comments.
func IdentifierTokens(source string) []Identifier {
	toks := lex(source)
	var idents []Identifier

	line, col := 1, 1
	pos := 0
	advance := func(upTo int) {
		for pos < upTo {
			if source[pos] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			pos++
		}
	}

	for _, t := range toks {
		advance(t.start)
		if t.kind == tokWord {
			idents = append(idents, Identifier{Text: t.text, Line: line, Column: col})
		}
		advance(t.end)
	}
	return idents
}

// TopLevelUsings returns the dotted names referenced by every depth-0
// "using <name>;" directive in source, in source order. Used by the
// sandbox loader to refuse blocked modules before an artifact is loaded.
func TopLevelUsings(source string) []string {
	toks := lex(source)
	var names []string

	for i, t := range toks {
		if !(t.kind == tokWord && t.text == "using" && t.depth == 0) {
			continue
		}
		pos := firstSignificant(toks, i+1)
		if pos == -1 || toks[pos].kind != tokWord {
			continue
		}
		// "using static X;" and "using Alias = X;" are not module imports
		// in the sense the blocklist cares about; skip "static" and any
		// directive containing "=" before its terminating ';'.
		if toks[pos].text == "static" {
			continue
		}

		var parts []string
		for pos != -1 && toks[pos].kind == tokWord {
			parts = append(parts, toks[pos].text)
			next := firstSignificant(toks, pos+1)
			if next == -1 || !(toks[next].kind == tokPunct && toks[next].text == ".") {
				pos = next
				break
			}
			pos = firstSignificant(toks, next+1)
		}
		if pos != -1 && toks[pos].kind == tokPunct && toks[pos].text == ";" && len(parts) > 0 {
			var name string
			for i, p := range parts {
				if i > 0 {
					name += "."
				}
				name += p
			}
			names = append(names, name)
		}
	}
	return names
}

// topLevelDeclKeywords introduce a type or namespace declaration rather
// than an executable statement, when seen as the first significant token
// of a depth-0 span (after skipping access/other modifiers).
var topLevelDeclKeywords = map[string]bool{
	"namespace": true, "class": true, "struct": true,
	"interface": true, "record": true, "enum": true,
}

var typeDeclModifiers = map[string]bool{
	"public": true, "internal": true, "private": true, "protected": true,
	"static": true, "sealed": true, "abstract": true, "partial": true,
	"readonly": true, "file": true,
}

// HasEntryPoint reports whether source, as rewritten by Rewrite, has a
// runnable entry point: either a top-level executable statement (anything
// at depth 0 besides "using" directives and type/namespace declarations),
// or a "static ... Main" method. This is a lexical heuristic, not a real
// symbol check - the same tradeoff the rest of this package makes in the
// absence of a real C# parser - but it matches what Rewrite actually
// produces: every accepted REPL snippet ends up with top-level statements.
func HasEntryPoint(source string) bool {
	toks := lex(source)

	i := 0
	for i < len(toks) {
		t := toks[i]
		if t.kind == tokTrivia || t.depth != 0 {
			i++
			continue
		}
		if t.kind == tokWord && t.text == "using" {
			i = skipToSemicolon(toks, i)
			continue
		}
		if t.kind == tokWord && (typeDeclModifiers[t.text] || topLevelDeclKeywords[t.text]) {
			if topLevelDeclKeywords[t.text] {
				return hasMainMethod(toks)
			}
			i++
			continue
		}
		// Any other depth-0, non-trivia token is an executable statement.
		return true
	}
	return hasMainMethod(toks)
}

func skipToSemicolon(toks []token, from int) int {
	for i := from; i < len(toks); i++ {
		if toks[i].kind == tokPunct && toks[i].text == ";" && toks[i].depth == 0 {
			return i + 1
		}
	}
	return len(toks)
}

func hasMainMethod(toks []token) bool {
	for i, t := range toks {
		if t.kind == tokWord && t.text == "Main" {
			for j := i - 1; j >= 0 && j >= i-6; j-- {
				if toks[j].kind == tokWord && toks[j].text == "static" {
					return true
				}
			}
		}
	}
	return false
}
