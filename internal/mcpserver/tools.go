package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/roslyn-stone/roslyn-stone/internal/engine"
	"github.com/roslyn-stone/roslyn-stone/internal/facade"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// evaluateResponse is the §6 return shape for EvaluateCsharp.
type evaluateResponse struct {
	Success       bool    `json:"success"`
	ReturnValue   *string `json:"returnValue,omitempty"`
	Output        string  `json:"output"`
	Errors        []issue `json:"errors,omitempty"`
	Warnings      []issue `json:"warnings,omitempty"`
	ExecutionTime float64 `json:"executionTime"`
	ContextID     string  `json:"contextId"`
}

type issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func toIssues(diags []types.DiagnosticRecord) []issue {
	out := make([]issue, 0, len(diags))
	for _, d := range diags {
		out = append(out, issue{
			Code:     d.Code,
			Message:  d.Message,
			Severity: string(d.Severity),
			Line:     d.Line,
			Column:   d.Column,
		})
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleEvaluate(f *facade.Facade) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		code, _ := args["code"].(string)
		if code == "" {
			return mcp.NewToolResultError("code is required"), nil
		}
		contextID, _ := args["contextId"].(string)
		createContext, _ := args["createContext"].(bool)

		var extraDeps []engine.ExtraDependency
		if raw, ok := args["nugetPackages"].([]any); ok {
			for _, item := range raw {
				pkg, ok := item.(map[string]any)
				if !ok {
					continue
				}
				name, _ := pkg["packageName"].(string)
				if name == "" {
					continue
				}
				version, _ := pkg["version"].(string)
				extraDeps = append(extraDeps, engine.ExtraDependency{PackageID: name, Version: version})
			}
		}

		if createContext {
			contextID = ""
		}

		outcome, err := f.Evaluate(ctx, facade.EvaluateRequest{
			Code:      code,
			SessionID: contextID,
			ExtraDeps: extraDeps,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		resp := evaluateResponse{
			Success:       outcome.Success,
			ReturnValue:   outcome.ReturnValue,
			Output:        outcome.Stdout,
			Errors:        toIssues(outcome.Diagnostics),
			Warnings:      toIssues(outcome.Warnings),
			ExecutionTime: outcome.Elapsed.Seconds(),
			ContextID:     outcome.SessionID,
		}
		return jsonResult(resp)
	}
}

type validateResponse struct {
	IsValid bool    `json:"isValid"`
	Issues  []issue `json:"issues,omitempty"`
}

func handleValidate(f *facade.Facade) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		code, _ := args["code"].(string)
		if code == "" {
			return mcp.NewToolResultError("code is required"), nil
		}
		contextID, _ := args["contextId"].(string)

		result := f.Validate(ctx, code, contextID)
		return jsonResult(validateResponse{
			IsValid: result.Valid,
			Issues:  toIssues(result.Diagnostics),
		})
	}
}

type resetResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	SessionsCleared int    `json:"sessionsCleared"`
}

func handleReset(f *facade.Facade) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextID, _ := req.GetArguments()["contextId"].(string)
		cleared := f.Reset(contextID)
		msg := "all contexts cleared"
		if contextID != "" {
			msg = fmt.Sprintf("context %q cleared", contextID)
		}
		return jsonResult(resetResponse{
			Success:         true,
			Message:         msg,
			SessionsCleared: cleared,
		})
	}
}

type replInfoResponse struct {
	FrameworkVersion   string                 `json:"frameworkVersion"`
	Language           string                 `json:"language"`
	State              string                 `json:"state"`
	ActiveSessionCount int                    `json:"activeSessionCount"`
	ContextID          string                 `json:"contextId,omitempty"`
	DefaultImports     []string               `json:"defaultImports"`
	Capabilities       []string               `json:"capabilities"`
	Tips               []string               `json:"tips"`
	Examples           []string               `json:"examples"`
	SessionMetadata    *types.SessionMetadata `json:"sessionMetadata,omitempty"`
}

func handleInfo(f *facade.Facade) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		contextID, _ := req.GetArguments()["contextId"].(string)
		info := f.GetInfo(contextID)

		resp := replInfoResponse{
			FrameworkVersion:   info.RuntimeVersion,
			Language:           "C#",
			State:              "ready",
			ActiveSessionCount: info.ActiveSessionCount,
			ContextID:          contextID,
			DefaultImports:     []string{"System", "System.Linq", "System.Collections.Generic"},
			Capabilities:       info.Capabilities,
			Tips: []string{
				"Declare variables without a trailing semicolon-only statement to get them back as returnValue",
				"Use LoadNuGetPackage before referencing a package's types",
			},
			Examples:        []string{"1 + 1", "var x = 10; x * 2", `"hi".ToUpper()`},
			SessionMetadata: info.SessionMetadata,
		}
		return jsonResult(resp)
	}
}

type loadPackageResponse struct {
	Success       bool     `json:"success"`
	AttachedPaths []string `json:"attachedPaths,omitempty"`
	ContextID     string   `json:"contextId"`
}

func handleLoadPackage(f *facade.Facade) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		packageName, _ := args["packageName"].(string)
		if packageName == "" {
			return mcp.NewToolResultError("packageName is required"), nil
		}
		version, _ := args["version"].(string)
		contextID, _ := args["contextId"].(string)

		result, sessionID, err := f.LoadPackage(ctx, contextID, packageName, version)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(loadPackageResponse{
			Success:       result.Success,
			AttachedPaths: result.AttachedPaths,
			ContextID:     sessionID,
		})
	}
}
