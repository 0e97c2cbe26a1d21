package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/roslyn-stone/roslyn-stone/internal/facade"
)

// registerResources wires the repl:// introspection resources from
// spec.md §6. The doc:// and nuget:// resources belong to external
// collaborators and are out of scope here.
func registerResources(s *server.MCPServer, f *facade.Facade) {
	s.AddResource(
		mcp.NewResource("repl://state", "REPL engine state",
			mcp.WithResourceDescription("Engine capabilities and active context count"),
			mcp.WithMIMEType("application/json"),
		),
		handleStateResource(f),
	)

	s.AddResource(
		mcp.NewResource("repl://sessions", "Active REPL contexts",
			mcp.WithResourceDescription("Count of live contexts"),
			mcp.WithMIMEType("application/json"),
		),
		handleSessionsResource(f),
	)

	s.AddResourceTemplate(
		mcp.NewResourceTemplate("repl://sessions/{id}/state", "Single REPL context state",
			mcp.WithTemplateDescription("Metadata for one context, by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		handleSessionStateResource(f),
	)
}

func jsonResourceContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func handleStateResource(f *facade.Facade) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info := f.GetInfo("")
		return jsonResourceContents(req.Params.URI, map[string]any{
			"frameworkVersion":   info.RuntimeVersion,
			"activeSessionCount": info.ActiveSessionCount,
			"capabilities":       info.Capabilities,
		})
	}
}

func handleSessionsResource(f *facade.Facade) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		info := f.GetInfo("")
		return jsonResourceContents(req.Params.URI, map[string]any{
			"activeSessionCount": info.ActiveSessionCount,
		})
	}
}

func handleSessionStateResource(f *facade.Facade) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := sessionIDFromURI(req.Params.URI)
		if id == "" {
			return nil, fmt.Errorf("malformed session resource URI: %s", req.Params.URI)
		}
		info := f.GetInfo(id)
		if info.SessionMetadata == nil {
			return nil, fmt.Errorf("no such context: %s", id)
		}
		return jsonResourceContents(req.Params.URI, info.SessionMetadata)
	}
}

func sessionIDFromURI(uri string) string {
	const prefix = "repl://sessions/"
	const suffix = "/state"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return uri[len(prefix) : len(uri)-len(suffix)]
}
