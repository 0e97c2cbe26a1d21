package facade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/engine"
	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

func newTestFacade(t *testing.T, policy types.SecurityPolicy) *Facade {
	t.Helper()
	mgr := session.NewManager(time.Hour, time.Hour, false)
	fakeCompiler := &compiler.FakeCompiler{}
	eng := engine.New(engine.Config{
		Sessions: mgr,
		Compiler: fakeCompiler,
		NewSandbox: func(string) (sandbox.Sandbox, error) {
			return sandbox.NewFakeSandbox(), nil
		},
		Policy: policy,
	})
	return New(Config{
		Sessions: mgr,
		Engine:   eng,
		Compiler: fakeCompiler,
		Policy:   policy,
	})
}

func TestEvaluate_CreatesSessionWhenNoneSupplied(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())

	out, err := f.Evaluate(context.Background(), EvaluateRequest{Code: "1 + 1"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.SessionID)
}

func TestEvaluate_ReusesSuppliedSession(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())
	id := f.sessions.Create()

	out1, err := f.Evaluate(context.Background(), EvaluateRequest{Code: "int x = 1;", SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, id, out1.SessionID)

	out2, err := f.Evaluate(context.Background(), EvaluateRequest{Code: "x", SessionID: id})
	require.NoError(t, err)
	require.NotNil(t, out2.ReturnValue)
	assert.Equal(t, "1", *out2.ReturnValue)
}

func TestValidate_DoesNotExecute(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())

	result := f.Validate(context.Background(), "int x = 1;", "")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Diagnostics)
}

func TestValidate_FlagsForbiddenIdentifier(t *testing.T) {
	f := newTestFacade(t, types.ProductionPolicy())

	result := f.Validate(context.Background(), "var f = new File();", "")
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, types.CodeForbiddenAPI, result.Diagnostics[0].Code)
}

func TestReset_RemovesSingleSession(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())
	id := f.sessions.Create()
	f.sessions.Create()

	cleared := f.Reset(id)
	assert.Equal(t, 1, cleared)
	assert.False(t, f.sessions.Exists(id))
	assert.Equal(t, 1, f.sessions.Count())
}

func TestReset_RemovesAllSessionsWhenNoIDGiven(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())
	f.sessions.Create()
	f.sessions.Create()

	cleared := f.Reset("")
	assert.Equal(t, 2, cleared)
	assert.Equal(t, 0, f.sessions.Count())
}

func TestGetInfo_ReportsCapabilitiesAndSessionMetadata(t *testing.T) {
	f := newTestFacade(t, types.ProductionPolicy())
	id := f.sessions.Create()

	info := f.GetInfo(id)
	assert.Contains(t, info.Capabilities, "static_analysis")
	assert.Contains(t, info.Capabilities, "execution_timeout")
	assert.Contains(t, info.Capabilities, "memory_limit")
	assert.Equal(t, 1, info.ActiveSessionCount)
	require.NotNil(t, info.SessionMetadata)
	assert.Equal(t, id, info.SessionMetadata.SessionID)
}

func TestGetInfo_NoSessionMetadataWhenIDOmitted(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())
	info := f.GetInfo("")
	assert.Nil(t, info.SessionMetadata)
}

func TestLoadPackage_WithoutResolverConfiguredFails(t *testing.T) {
	f := newTestFacade(t, types.DevelopmentPolicy())
	_, _, err := f.LoadPackage(context.Background(), "", "Newtonsoft.Json", "")
	assert.Error(t, err)
}
