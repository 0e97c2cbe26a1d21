package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/engine"
	"github.com/roslyn-stone/roslyn-stone/internal/facade"
	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

func newTestServerAndFacade(t *testing.T, policy types.SecurityPolicy) *facade.Facade {
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
	return facade.New(facade.Config{
		Sessions: mgr,
		Engine:   eng,
		Compiler: fakeCompiler,
		Policy:   policy,
	})
}

func toolResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestEvaluateCsharp_ReturnsTrailingExpressionValue(t *testing.T) {
	f := newTestServerAndFacade(t, types.DevelopmentPolicy())
	srv := NewServer(f)

	tool := srv.GetTool("EvaluateCsharp")
	require.NotNil(t, tool)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"code": "2 + 2"}

	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal([]byte(toolResultText(t, result)), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ReturnValue)
	assert.Equal(t, "4", *resp.ReturnValue)
	assert.NotEmpty(t, resp.ContextID)
}

func TestEvaluateCsharp_MissingCodeIsToolError(t *testing.T) {
	f := newTestServerAndFacade(t, types.DevelopmentPolicy())
	srv := NewServer(f)
	tool := srv.GetTool("EvaluateCsharp")

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestValidateCsharp_FlagsForbiddenIdentifier(t *testing.T) {
	f := newTestServerAndFacade(t, types.ProductionPolicy())
	srv := NewServer(f)
	tool := srv.GetTool("ValidateCsharp")

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"code": "var f = new File();"}

	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(toolResultText(t, result)), &resp))
	assert.False(t, resp.IsValid)
	require.NotEmpty(t, resp.Issues)
	assert.Equal(t, types.CodeForbiddenAPI, resp.Issues[0].Code)
}

func TestResetRepl_ClearsAllContextsWhenNoneGiven(t *testing.T) {
	f := newTestServerAndFacade(t, types.DevelopmentPolicy())
	srv := NewServer(f)

	evalTool := srv.GetTool("EvaluateCsharp")
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"code": "1"}
	_, err := evalTool.Handler(context.Background(), req)
	require.NoError(t, err)

	resetTool := srv.GetTool("ResetRepl")
	resetReq := mcp.CallToolRequest{}
	resetReq.Params.Arguments = map[string]any{}
	result, err := resetTool.Handler(context.Background(), resetReq)
	require.NoError(t, err)

	var resp resetResponse
	require.NoError(t, json.Unmarshal([]byte(toolResultText(t, result)), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.SessionsCleared)
}

func TestGetReplInfo_ReportsCapabilities(t *testing.T) {
	f := newTestServerAndFacade(t, types.ProductionPolicy())
	srv := NewServer(f)
	tool := srv.GetTool("GetReplInfo")

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)

	var resp replInfoResponse
	require.NoError(t, json.Unmarshal([]byte(toolResultText(t, result)), &resp))
	assert.Contains(t, resp.Capabilities, "static_analysis")
	assert.Equal(t, "C#", resp.Language)
}

func TestLoadNuGetPackage_WithoutResolverReturnsToolError(t *testing.T) {
	f := newTestServerAndFacade(t, types.DevelopmentPolicy())
	srv := NewServer(f)
	tool := srv.GetTool("LoadNuGetPackage")

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"packageName": "Newtonsoft.Json"}
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
