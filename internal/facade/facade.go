// Package facade implements ToolFacade from spec.md §4.9: the stateless
// surface the MCP layer calls into. It translates transport-level
// arguments into calls against the session manager, execution engine,
// compiler, analyzer, and dependency resolver, and back into the
// response shapes §6 specifies.
package facade

import (
	"context"

	"github.com/roslyn-stone/roslyn-stone/internal/analyzer"
	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/engine"
	"github.com/roslyn-stone/roslyn-stone/internal/resolver"
	"github.com/roslyn-stone/roslyn-stone/internal/rewriter"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// RuntimeVersion identifies the runtime capability GetInfo reports to
// clients. Set at build time in production wiring.
var RuntimeVersion = "unknown"

// Facade is the ToolFacade.
type Facade struct {
	sessions *session.Manager
	engine   *engine.Engine
	compiler compiler.Compiler
	resolver *resolver.Resolver
	policy   types.SecurityPolicy
}

// Config bundles Facade's collaborators.
type Config struct {
	Sessions *session.Manager
	Engine   *engine.Engine
	Compiler compiler.Compiler
	Resolver *resolver.Resolver
	Policy   types.SecurityPolicy
}

func New(cfg Config) *Facade {
	return &Facade{
		sessions: cfg.Sessions,
		engine:   cfg.Engine,
		compiler: cfg.Compiler,
		resolver: cfg.Resolver,
		policy:   cfg.Policy,
	}
}

// EvaluateRequest is the input to Evaluate.
type EvaluateRequest struct {
	Code      string
	SessionID string
	ExtraDeps []engine.ExtraDependency
}

// Evaluate runs the full §4.7 pipeline, creating a session first if
// SessionID is empty or names a session that no longer exists.
func (f *Facade) Evaluate(ctx context.Context, req EvaluateRequest) (types.ExecutionOutcome, error) {
	sessionID := req.SessionID
	if sessionID == "" || !f.sessions.Exists(sessionID) {
		sessionID = f.sessions.Create()
	}
	return f.engine.Execute(ctx, sessionID, req.Code, req.ExtraDeps)
}

// Validate runs SourceRewriter + StaticAnalyzer + Compiler without
// executing, per spec.md §4.9.
func (f *Facade) Validate(ctx context.Context, code, sessionID string) types.ValidationResult {
	rewritten := rewriter.Rewrite(code)

	diags := analyzer.Analyze(rewritten, f.policy)
	if analyzer.HasErrors(diags) {
		return types.ValidationResult{Valid: false, Diagnostics: diags}
	}

	var references []string
	if sessionID != "" {
		if s, ok := f.sessions.Get(sessionID); ok {
			s.Lock()
			references = s.AttachedArtifactPaths()
			s.Unlock()
		}
	}

	result, err := f.compiler.Compile(ctx, rewritten, references)
	if err != nil {
		return types.ValidationResult{
			Valid: false,
			Diagnostics: []types.DiagnosticRecord{{
				Code:     types.CodeCompileError,
				Message:  err.Error(),
				Severity: types.SeverityError,
			}},
		}
	}
	return types.ValidationResult{Valid: result.Success, Diagnostics: result.Diagnostics}
}

// Reset removes one session (by id) or all sessions, returning the count
// cleared.
func (f *Facade) Reset(sessionID string) int {
	if sessionID != "" {
		if f.sessions.Remove(sessionID) {
			return 1
		}
		return 0
	}
	cleared := 0
	for _, id := range f.sessions.ActiveIDs() {
		if f.sessions.Remove(id) {
			cleared++
		}
	}
	return cleared
}

// Info is the result of GetInfo.
type Info struct {
	RuntimeVersion     string
	Capabilities       []string
	ActiveSessionCount int
	SessionMetadata    *types.SessionMetadata
}

// GetInfo reports engine capabilities and, when sessionID names a live
// session, its metadata.
func (f *Facade) GetInfo(sessionID string) Info {
	info := Info{
		RuntimeVersion:     RuntimeVersion,
		Capabilities:       capabilities(f.policy),
		ActiveSessionCount: f.sessions.Count(),
	}
	if sessionID != "" {
		if md, ok := f.sessions.Metadata(sessionID); ok {
			info.SessionMetadata = &md
		}
	}
	return info
}

func capabilities(policy types.SecurityPolicy) []string {
	caps := []string{"session_state", "nuget_packages"}
	if policy.RestrictAPIs {
		caps = append(caps, "static_analysis")
	}
	if policy.EnforceTimeout {
		caps = append(caps, "execution_timeout")
	}
	if policy.EnforceMemory {
		caps = append(caps, "memory_limit")
	}
	return caps
}

// LoadPackageResult is the result of LoadPackage.
type LoadPackageResult struct {
	Success       bool
	AttachedPaths []string
}

// LoadPackage resolves packageID (optionally pinned to version) against
// the dependency resolver and attaches the resulting artifact paths to
// sessionID (creating the session if none was supplied), per spec.md §4.6.
func (f *Facade) LoadPackage(ctx context.Context, sessionID, packageID, version string) (LoadPackageResult, string, error) {
	if f.resolver == nil {
		return LoadPackageResult{}, sessionID, errNoResolver
	}

	if sessionID == "" || !f.sessions.Exists(sessionID) {
		sessionID = f.sessions.Create()
	}

	paths, err := f.resolver.Resolve(ctx, packageID, version)
	if err != nil {
		return LoadPackageResult{}, sessionID, err
	}

	s, ok := f.sessions.Get(sessionID)
	if !ok {
		return LoadPackageResult{}, sessionID, errNoResolver
	}
	s.Lock()
	s.AttachArtifactPaths(paths...)
	all := s.AttachedArtifactPaths()
	s.Unlock()

	return LoadPackageResult{Success: true, AttachedPaths: all}, sessionID, nil
}

var errNoResolver = noResolverError{}

type noResolverError struct{}

func (noResolverError) Error() string { return "facade: no dependency resolver configured" }
