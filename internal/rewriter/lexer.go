package rewriter

// tokenKind classifies a lexical span of C# source text. The lexer is
// deliberately shallow: it knows just enough about strings, characters, and
// comments to avoid matching keywords inside them, and tracks brace/paren
// depth so the rewriter can find top-level statement boundaries without a
// full parse.
type tokenKind int

const (
	tokTrivia tokenKind = iota // whitespace, comments
	tokString                  // string and char literals, verbatim/raw/interpolated
	tokWord                    // identifier, keyword, or numeric literal
	tokPunct                   // everything else, one rune at a time
)

type token struct {
	kind       tokenKind
	text       string
	start, end int // byte offsets into the original source
	depth      int // brace/paren/bracket depth *before* this token
}

// lex splits src into tokens whose concatenated text reconstructs src
// exactly. Depth tracks nesting of (), [], {} so callers can find top-level
// statement boundaries.
func lex(src string) []token {
	var toks []token
	depth := 0
	i := 0
	n := len(src)

	isWordStart := func(c byte) bool {
		return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	isWordCont := func(c byte) bool {
		return isWordStart(c) || (c >= '0' && c <= '9')
	}

	for i < n {
		c := src[i]
		start := i

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			for i < n && (src[i] == ' ' || src[i] == '\t' || src[i] == '\r' || src[i] == '\n') {
				i++
			}
			toks = append(toks, token{tokTrivia, src[start:i], start, i, depth})

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
			toks = append(toks, token{tokTrivia, src[start:i], start, i, depth})

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
			toks = append(toks, token{tokTrivia, src[start:i], start, i, depth})

		case c == '"':
			i = lexString(src, i, '"', false)
			toks = append(toks, token{tokString, src[start:i], start, i, depth})

		case c == '\'':
			i = lexString(src, i, '\'', false)
			toks = append(toks, token{tokString, src[start:i], start, i, depth})

		case c == '@' && i+1 < n && src[i+1] == '"':
			i = lexString(src, i+1, '"', true)
			toks = append(toks, token{tokString, src[start:i], start, i, depth})

		case isWordStart(c):
			i++
			for i < n && isWordCont(src[i]) {
				i++
			}
			toks = append(toks, token{tokWord, src[start:i], start, i, depth})

		case c >= '0' && c <= '9':
			i++
			for i < n && (isWordCont(src[i]) || src[i] == '.' || src[i] == '_') {
				i++
			}
			toks = append(toks, token{tokWord, src[start:i], start, i, depth})

		case c == '(' || c == '[' || c == '{':
			depth++
			i++
			toks = append(toks, token{tokPunct, src[start:i], start, i, depth - 1})

		case c == ')' || c == ']' || c == '}':
			if depth > 0 {
				depth--
			}
			i++
			toks = append(toks, token{tokPunct, src[start:i], start, i, depth})

		default:
			i++
			toks = append(toks, token{tokPunct, src[start:i], start, i, depth})
		}
	}

	return toks
}

// lexString consumes a string/char literal starting at the opening quote at
// i (quote rune q), returning the index just past the closing quote.
// Verbatim strings (preceded by @) treat "" as an escaped quote and ignore
// backslashes; ordinary strings treat backslash as an escape.
func lexString(src string, i int, q byte, verbatim bool) int {
	n := len(src)
	i++ // past opening quote
	for i < n {
		c := src[i]
		if c == q {
			if verbatim && i+1 < n && src[i+1] == q {
				i += 2
				continue
			}
			i++
			return i
		}
		if !verbatim && c == '\\' && i+1 < n {
			i += 2
			continue
		}
		if !verbatim && c == '\n' {
			return i // unterminated; stop at line end
		}
		i++
	}
	return i
}

// isWord reports whether t is a word token whose text equals word exactly
// (case-sensitive; C# keywords are lowercase).
func isWord(t token, word string) bool {
	return t.kind == tokWord && t.text == word
}

// firstSignificant returns the index of the first non-trivia token at or
// after from, or -1.
func firstSignificant(toks []token, from int) int {
	for i := from; i < len(toks); i++ {
		if toks[i].kind != tokTrivia {
			return i
		}
	}
	return -1
}

// lastSignificant returns the index of the last non-trivia token at or
// before from, or -1.
func lastSignificant(toks []token, from int) int {
	for i := from; i >= 0; i-- {
		if toks[i].kind != tokTrivia {
			return i
		}
	}
	return -1
}
