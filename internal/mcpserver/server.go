// Package mcpserver exposes the ToolFacade over the Model Context Protocol,
// per spec.md §6: five JSON-RPC tools mapping 1:1 to internal/facade's
// contracts, plus the repl:// introspection resources.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/roslyn-stone/roslyn-stone/internal/facade"
)

const serverInstructions = `Roslyn-Stone runs C# snippets in a stateful, sandboxed REPL. ` +
	`Use EvaluateCsharp to run code against a context, ValidateCsharp to check ` +
	`a snippet compiles without running it, GetReplInfo to see capabilities and ` +
	`session state, ResetRepl to clear one or all contexts, and LoadNuGetPackage ` +
	`to attach a package to a context before evaluating code that depends on it.`

// NewServer builds the MCP server, registering every tool in spec.md §6
// against f.
func NewServer(f *facade.Facade) *server.MCPServer {
	s := server.NewMCPServer(
		"roslyn-stone",
		facade.RuntimeVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithInstructions(serverInstructions),
	)

	registerTools(s, f)
	registerResources(s, f)
	return s
}

func registerTools(s *server.MCPServer, f *facade.Facade) {
	s.AddTool(
		mcp.NewTool("EvaluateCsharp",
			mcp.WithDescription("Compile and run a C# snippet against a stateful REPL context. Variables, types, and using directives declared in one call are visible to later calls against the same contextId."),
			mcp.WithString("code", mcp.Required(), mcp.Description("C# source: a sequence of statements, or a single expression to evaluate")),
			mcp.WithString("contextId", mcp.Description("Existing context to evaluate against. Omit to start a new one.")),
			mcp.WithBoolean("createContext", mcp.Description("Force creation of a new context even if contextId is set")),
			mcp.WithArray("nugetPackages", mcp.Description("Packages to resolve and attach before running code"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"packageName": map[string]any{"type": "string"},
						"version":     map[string]any{"type": "string"},
					},
					"required": []string{"packageName"},
				}),
			),
		),
		handleEvaluate(f),
	)

	s.AddTool(
		mcp.NewTool("ValidateCsharp",
			mcp.WithDescription("Check that a C# snippet passes static analysis and compiles, without running it."),
			mcp.WithString("code", mcp.Required(), mcp.Description("C# source to validate")),
			mcp.WithString("contextId", mcp.Description("Context whose attached packages should be used as compile references")),
		),
		handleValidate(f),
	)

	s.AddTool(
		mcp.NewTool("ResetRepl",
			mcp.WithDescription("Clear one REPL context, or every active context when contextId is omitted."),
			mcp.WithString("contextId", mcp.Description("Context to clear. Omit to clear all contexts.")),
		),
		handleReset(f),
	)

	s.AddTool(
		mcp.NewTool("GetReplInfo",
			mcp.WithDescription("Report engine capabilities, active context count, and one context's metadata when contextId is given."),
			mcp.WithString("contextId", mcp.Description("Context to report metadata for")),
		),
		handleInfo(f),
	)

	s.AddTool(
		mcp.NewTool("LoadNuGetPackage",
			mcp.WithDescription("Resolve a NuGet package and attach it to a REPL context so later EvaluateCsharp calls can reference it."),
			mcp.WithString("packageName", mcp.Required(), mcp.Description("NuGet package ID")),
			mcp.WithString("version", mcp.Description("Exact version. Omit for the latest stable release.")),
			mcp.WithString("contextId", mcp.Description("Context to attach the package to. Omit to create a new one.")),
		),
		handleLoadPackage(f),
	)
}
