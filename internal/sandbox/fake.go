package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// FakeSandbox is a test double standing in for a real runtime. It does not
// execute C# - nothing in this corpus gives us a Go-native C# runtime to
// call - but it interprets the tiny arithmetic subset the rewriter and
// analyzer tests exercise (integer declarations, "+ - * /" expressions
// over previously declared variables, and Console.WriteLine calls), which
// is enough to exercise the engine's accumulated-state and isolation
// contracts end to end without a real compiler or CLR.
//
// Source is taken directly from FakeCompiler's artifact bytes, which are
// just the rewritten source text.
type FakeSandbox struct {
	mu        sync.Mutex
	vars      map[string]int64
	disposed  bool
	loaded    []byte
	blockedBy []string

	// statelessInvoke, when set, clears vars before every Invoke, the way
	// a freshly exec'd child process would start with nothing retained
	// from a previous call. Production's ProcessSandbox is always like
	// this; the default FakeSandbox keeps vars across calls instead,
	// standing in for an in-process runtime with a real continuation
	// token. See NewStatelessFakeSandbox.
	statelessInvoke bool
}

// NewFakeSandbox returns an empty sandbox with no accumulated variables.
func NewFakeSandbox() *FakeSandbox {
	return &FakeSandbox{vars: make(map[string]int64)}
}

// NewStatelessFakeSandbox returns a sandbox that forgets every variable
// between calls, modeling a sandbox with no native continuation (like
// ProcessSandbox's fresh child process per Invoke). Tests use it to prove
// that REPL continuation works by engine-level source accumulation, not
// by a sandbox retaining state on its own.
func NewStatelessFakeSandbox() *FakeSandbox {
	return &FakeSandbox{vars: make(map[string]int64), statelessInvoke: true}
}

func (f *FakeSandbox) Load(artifact []byte, usings []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return ErrDisposed
	}
	f.loaded = artifact
	f.blockedBy = usings
	return nil
}

func (f *FakeSandbox) LoadWithPolicy(artifact []byte, usings []string, policy types.SecurityPolicy) error {
	for _, u := range usings {
		if policy.IsBlockedModule(u) {
			return fmt.Errorf("%w: %s", ErrBlockedModule, u)
		}
	}
	return f.Load(artifact, usings)
}

func (f *FakeSandbox) AttachDependency(string) error { return nil }

func (f *FakeSandbox) Invoke(ctx context.Context, policy types.SecurityPolicy) (InvokeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disposed {
		return InvokeResult{}, ErrDisposed
	}
	if f.statelessInvoke {
		f.vars = make(map[string]int64)
	}

	var out strings.Builder
	stmts := strings.Split(string(f.loaded), ";")
	for _, raw := range stmts {
		select {
		case <-ctx.Done():
			return InvokeResult{Stdout: out.String(), TimedOut: true}, nil
		default:
		}

		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		if err := f.execStatement(stmt, &out); err != nil {
			return InvokeResult{Stdout: out.String(), RuntimePanic: err.Error()}, nil
		}
	}

	result := InvokeResult{Stdout: out.String()}
	if result.Stdout != "" {
		trimmed := strings.TrimSpace(result.Stdout)
		result.ReturnValue = &trimmed
	}
	return result, nil
}

func (f *FakeSandbox) execStatement(stmt string, out *strings.Builder) error {
	switch {
	case strings.HasPrefix(stmt, "using "):
		return nil

	case strings.HasPrefix(stmt, "Console.WriteLine(") && strings.HasSuffix(stmt, ")"):
		expr := strings.TrimSpace(stmt[len("Console.WriteLine(") : len(stmt)-1])
		if lit, ok := stringLiteral(expr); ok {
			fmt.Fprintf(out, "%s\n", lit)
			return nil
		}
		v, err := f.eval(expr)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", v)
		return nil

	default:
		if name, expr, ok := parseDeclOrAssign(stmt); ok {
			v, err := f.eval(expr)
			if err != nil {
				return err
			}
			f.vars[name] = v
			return nil
		}
		// Bare expression statement left over after rewriting, or a
		// construct this interpreter doesn't model; ignore silently
		// rather than fail the whole invocation.
		return nil
	}
}

// stringLiteral reports whether expr is a double-quoted C# string literal
// and, if so, returns its unquoted contents. Used for the history
// accumulation boundary marker and other plain string prints; the fake
// doesn't otherwise model string values.
func stringLiteral(expr string) (string, bool) {
	if len(expr) >= 2 && strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`) {
		return expr[1 : len(expr)-1], true
	}
	return "", false
}

// parseDeclOrAssign recognizes "[type] name = expr" and "name = expr".
func parseDeclOrAssign(stmt string) (name, expr string, ok bool) {
	eq := strings.Index(stmt, "=")
	if eq == -1 || (eq+1 < len(stmt) && stmt[eq+1] == '=') {
		return "", "", false
	}
	lhs := strings.Fields(strings.TrimSpace(stmt[:eq]))
	if len(lhs) == 0 {
		return "", "", false
	}
	name = lhs[len(lhs)-1]
	expr = strings.TrimSpace(stmt[eq+1:])
	return name, expr, true
}

// eval evaluates a minimal left-to-right +,-,*,/ expression over integer
// literals and previously declared variables. No operator precedence, no
// parentheses - enough for the snippets this test double needs to run.
func (f *FakeSandbox) eval(expr string) (int64, error) {
	expr = strings.TrimSpace(expr)
	tokens := splitArith(expr)
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty expression")
	}

	acc, err := f.operand(tokens[0])
	if err != nil {
		return 0, err
	}
	for i := 1; i+1 < len(tokens); i += 2 {
		op := tokens[i]
		rhs, err := f.operand(tokens[i+1])
		if err != nil {
			return 0, err
		}
		switch op {
		case "+":
			acc += rhs
		case "-":
			acc -= rhs
		case "*":
			acc *= rhs
		case "/":
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			acc /= rhs
		default:
			return 0, fmt.Errorf("unsupported operator %q", op)
		}
	}
	return acc, nil
}

func (f *FakeSandbox) operand(tok string) (int64, error) {
	if v, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return v, nil
	}
	if v, ok := f.vars[tok]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("undefined variable %q", tok)
}

func splitArith(expr string) []string {
	var toks []string
	var cur strings.Builder
	for _, r := range expr {
		switch r {
		case '+', '-', '*', '/':
			if cur.Len() > 0 {
				toks = append(toks, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
			toks = append(toks, string(r))
		case ' ', '\t':
			// fall through to default via explicit space handling below
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		toks = append(toks, s)
	}
	for i, t := range toks {
		toks[i] = strings.TrimSpace(t)
	}
	return toks
}

func (f *FakeSandbox) Dispose() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed = true
	return nil
}

func (f *FakeSandbox) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disposed
}
