package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// spyCompiler wraps a Compiler and records every sourceText it was asked
// to compile, so tests can inspect what the engine actually sent down the
// pipeline on a given call.
type spyCompiler struct {
	inner compiler.Compiler

	mu      sync.Mutex
	sources []string
}

func (c *spyCompiler) Compile(ctx context.Context, sourceText string, references []string) (compiler.Result, error) {
	c.mu.Lock()
	c.sources = append(c.sources, sourceText)
	c.mu.Unlock()
	return c.inner.Compile(ctx, sourceText, references)
}

func newTestEngine(policy types.SecurityPolicy) (*Engine, *session.Manager) {
	mgr := session.NewManager(time.Hour, time.Hour, false)
	e := New(Config{
		Sessions: mgr,
		Compiler: &compiler.FakeCompiler{},
		NewSandbox: func(string) (sandbox.Sandbox, error) {
			return sandbox.NewFakeSandbox(), nil
		},
		Policy: policy,
	})
	return e, mgr
}

func TestExecute_AccumulatesStateAcrossCalls(t *testing.T) {
	e, mgr := newTestEngine(types.DevelopmentPolicy())
	id := mgr.Create()

	out1, err := e.Execute(context.Background(), id, "int x = 10;", nil)
	require.NoError(t, err)
	assert.True(t, out1.Success)

	out2, err := e.Execute(context.Background(), id, "x + 5", nil)
	require.NoError(t, err)
	require.True(t, out2.Success)
	require.NotNil(t, out2.ReturnValue)
	assert.Equal(t, "15", *out2.ReturnValue)
}

// TestExecute_AccumulatesStateViaSourceReplay_NotSandboxMemory uses a
// sandbox that forgets every variable between calls - the way
// ProcessSandbox's fresh child process does - to rule out the sandbox's
// own memory as the source of continuity. If the engine stopped
// replaying session history (buildAccumulatedSource), this test fails
// with an undefined-variable runtime panic instead of return_value "15".
func TestExecute_AccumulatesStateViaSourceReplay_NotSandboxMemory(t *testing.T) {
	mgr := session.NewManager(time.Hour, time.Hour, false)
	e := New(Config{
		Sessions: mgr,
		Compiler: &compiler.FakeCompiler{},
		NewSandbox: func(string) (sandbox.Sandbox, error) {
			return sandbox.NewStatelessFakeSandbox(), nil
		},
		Policy: types.DevelopmentPolicy(),
	})
	id := mgr.Create()

	out1, err := e.Execute(context.Background(), id, "int x = 10;", nil)
	require.NoError(t, err)
	require.True(t, out1.Success)

	out2, err := e.Execute(context.Background(), id, "x + 5", nil)
	require.NoError(t, err)
	require.Truef(t, out2.Success, "x must resolve from replayed history, not sandbox memory: %+v", out2.Diagnostics)
	require.NotNil(t, out2.ReturnValue)
	assert.Equal(t, "15", *out2.ReturnValue)
}

// TestExecute_SecondCallCompilesFirstCallsSourceAsPrefix inspects what
// the engine actually hands the compiler, proving accumulation happens
// in the pipeline (session history, replayed into source) rather than
// being an artifact of a stateful test double.
func TestExecute_SecondCallCompilesFirstCallsSourceAsPrefix(t *testing.T) {
	spy := &spyCompiler{inner: &compiler.FakeCompiler{}}
	mgr := session.NewManager(time.Hour, time.Hour, false)
	e := New(Config{
		Sessions: mgr,
		Compiler: spy,
		NewSandbox: func(string) (sandbox.Sandbox, error) {
			return sandbox.NewFakeSandbox(), nil
		},
		Policy: types.DevelopmentPolicy(),
	})
	id := mgr.Create()

	_, err := e.Execute(context.Background(), id, "int x = 10;", nil)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), id, "x + 5", nil)
	require.NoError(t, err)

	require.Len(t, spy.sources, 2)
	assert.Contains(t, spy.sources[1], "int x = 10;")
	assert.Contains(t, spy.sources[1], "x + 5")
}

func TestExecute_TrailingExpressionBecomesReturnValue(t *testing.T) {
	e, mgr := newTestEngine(types.DevelopmentPolicy())
	id := mgr.Create()

	out, err := e.Execute(context.Background(), id, "2 + 3", nil)
	require.NoError(t, err)
	require.True(t, out.Success)
	require.NotNil(t, out.ReturnValue)
	assert.Equal(t, "5", *out.ReturnValue)
}

func TestExecute_ForbiddenIdentifierShortCircuitsBeforeCompile(t *testing.T) {
	e, mgr := newTestEngine(types.ProductionPolicy())
	id := mgr.Create()

	out, err := e.Execute(context.Background(), id, "var f = new File();", nil)
	require.NoError(t, err)
	assert.False(t, out.Success)
	require.NotEmpty(t, out.Diagnostics)
	assert.Equal(t, types.CodeForbiddenAPI, out.Diagnostics[0].Code)
}

func TestExecute_SessionBusyOnConcurrentExecution(t *testing.T) {
	e, mgr := newTestEngine(types.DevelopmentPolicy())
	id := mgr.Create()

	s, ok := mgr.Get(id)
	require.True(t, ok)
	require.True(t, s.TryLock()) // simulate an execution already in flight
	defer s.Unlock()

	out, err := e.Execute(context.Background(), id, "1 + 1", nil)
	require.NoError(t, err)
	assert.False(t, out.Success)
	require.NotEmpty(t, out.Diagnostics)
	assert.Equal(t, types.CodeSessionBusy, out.Diagnostics[0].Code)
}

func TestExecute_UnknownSessionFails(t *testing.T) {
	e, _ := newTestEngine(types.DevelopmentPolicy())
	_, err := e.Execute(context.Background(), "nonexistent", "1", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExecute_IsolationBetweenSessions(t *testing.T) {
	e, mgr := newTestEngine(types.DevelopmentPolicy())
	idA := mgr.Create()
	idB := mgr.Create()

	_, err := e.Execute(context.Background(), idA, "int x = 10;", nil)
	require.NoError(t, err)
	_, err = e.Execute(context.Background(), idB, "int x = 99;", nil)
	require.NoError(t, err)

	outA, err := e.Execute(context.Background(), idA, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "10", *outA.ReturnValue)

	outB, err := e.Execute(context.Background(), idB, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "99", *outB.ReturnValue)
}
