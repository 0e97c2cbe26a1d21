// Package engine implements the ExecutionEngine of spec.md §4.7: the
// pipeline that turns a REPL snippet into a compiled, sandboxed
// execution against one session's accumulated state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roslyn-stone/roslyn-stone/internal/analyzer"
	"github.com/roslyn-stone/roslyn-stone/internal/compiler"
	"github.com/roslyn-stone/roslyn-stone/internal/event"
	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/internal/resolver"
	"github.com/roslyn-stone/roslyn-stone/internal/rewriter"
	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/internal/session"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// ErrSessionNotFound is returned when session_id names no live session.
var ErrSessionNotFound = errors.New("engine: session not found")

// SandboxFactory creates a fresh Sandbox for a session. Production wiring
// passes a function constructing a sandbox.ProcessSandbox; tests pass one
// constructing a sandbox.FakeSandbox.
type SandboxFactory func(sessionID string) (sandbox.Sandbox, error)

// Engine is the ExecutionEngine. One Engine is shared by every session;
// per-session serialization is provided by session.Session's lock.
type Engine struct {
	sessions           *session.Manager
	compiler           compiler.Compiler
	resolver           *resolver.Resolver
	newSandbox         SandboxFactory
	policy             types.SecurityPolicy
	defaultReferences  []string
	executionGracePeriod time.Duration
}

// Config bundles Engine's collaborators and tunables.
type Config struct {
	Sessions             *session.Manager
	Compiler             compiler.Compiler
	Resolver             *resolver.Resolver // nil disables extra_deps resolution
	NewSandbox           SandboxFactory
	Policy               types.SecurityPolicy
	DefaultReferences    []string
	ExecutionGracePeriod time.Duration // bounded wait after a cancelled worker before giving up
}

// New constructs an Engine from cfg.
func New(cfg Config) *Engine {
	grace := cfg.ExecutionGracePeriod
	if grace <= 0 {
		grace = 500 * time.Millisecond
	}
	return &Engine{
		sessions:             cfg.Sessions,
		compiler:             cfg.Compiler,
		resolver:             cfg.Resolver,
		newSandbox:           cfg.NewSandbox,
		policy:               cfg.Policy,
		defaultReferences:    cfg.DefaultReferences,
		executionGracePeriod: grace,
	}
}

// ExtraDependency names a package to resolve and attach before compiling,
// per spec.md §4.7 step 2.
type ExtraDependency struct {
	PackageID string
	Version   string // empty means latest stable
}

// Execute runs the full spec.md §4.7 pipeline against sessionID's
// accumulated state. ctx carries the caller's cancellation, linked with
// the policy's execution timeout per spec.md §5.
func (e *Engine) Execute(ctx context.Context, sessionID, snippet string, extraDeps []ExtraDependency) (types.ExecutionOutcome, error) {
	s, ok := e.sessions.Get(sessionID)
	if !ok {
		return types.ExecutionOutcome{}, ErrSessionNotFound
	}

	// Step 1: acquire exclusive right to run on this session.
	if !s.TryLock() {
		return failureOutcome(sessionID, types.CodeSessionBusy, "another execution is already in progress on this session", 0), nil
	}
	defer s.Unlock()

	start := time.Now()
	event.Publish(event.Event{Type: event.ExecutionStarted, Data: event.ExecutionStartedData{SessionID: sessionID}})
	outcome := e.run(ctx, s, sessionID, snippet, extraDeps, start)
	event.Publish(event.Event{Type: event.ExecutionFinished, Data: event.ExecutionFinishedData{
		SessionID: sessionID,
		Success:   outcome.Success,
		Code:      firstDiagnosticCode(outcome),
		ElapsedMS: outcome.Elapsed.Milliseconds(),
	}})
	return outcome, nil
}

func (e *Engine) run(ctx context.Context, s *session.Session, sessionID, snippet string, extraDeps []ExtraDependency, start time.Time) types.ExecutionOutcome {
	// Step 2: resolve extra deps and attach to the session before compile.
	if len(extraDeps) > 0 {
		if e.resolver == nil {
			return failureOutcome(sessionID, types.CodePackageDownloadFail, "no dependency resolver configured", time.Since(start))
		}
		for _, dep := range extraDeps {
			paths, err := e.resolver.Resolve(ctx, dep.PackageID, dep.Version)
			if err != nil {
				return failureOutcome(sessionID, resolverErrorCode(err), err.Error(), time.Since(start))
			}
			s.AttachArtifactPaths(paths...)
			event.Publish(event.Event{Type: event.PackageResolved, Data: event.PackageResolvedData{
				SessionID:     sessionID,
				PackageID:     dep.PackageID,
				Version:       dep.Version,
				ArtifactPaths: paths,
			}})
		}
	}

	// Step 3: rewrite the session's accumulated_state - its prior
	// successful snippets, replayed so their declarations stay in scope -
	// plus the new snippet, into a runnable top-level program.
	combinedSource := buildAccumulatedSource(s.History(), snippet)
	rewritten := rewriter.Rewrite(combinedSource)

	// Step 4: analyze; short-circuit on errors.
	diags := analyzer.Analyze(rewritten, e.policy)
	if analyzer.HasErrors(diags) {
		event.Publish(event.Event{Type: event.ForbiddenAPIHit, Data: event.ForbiddenAPIHitData{
			SessionID:  sessionID,
			Identifier: strings.TrimPrefix(diags[0].Message, "forbidden identifier: "),
			Line:       diags[0].Line,
			Column:     diags[0].Column,
		}})
		logging.Warn().
			Str("session", logging.SessionID(sessionID, e.policy.MaskSessionIDsInLogs)).
			Str("code", diags[0].Code).
			Msg("forbidden API hit")
		return types.ExecutionOutcome{
			Success:     false,
			Diagnostics: diags,
			Elapsed:     time.Since(start),
			SessionID:   sessionID,
		}
	}

	// Step 5: compile with default references plus session-attached paths.
	references := append(append([]string{}, e.defaultReferences...), s.AttachedArtifactPaths()...)
	compileResult, err := e.compiler.Compile(ctx, rewritten, references)
	if err != nil {
		return failureOutcome(sessionID, types.CodeCompileError, err.Error(), time.Since(start))
	}
	if !compileResult.Success {
		return types.ExecutionOutcome{
			Success:     false,
			Diagnostics: compileResult.Diagnostics,
			Elapsed:     time.Since(start),
			SessionID:   sessionID,
		}
	}

	// Step 7: locate the entry point. Checked after a successful compile
	// so a genuine syntax error surfaces the compiler's own CS####
	// diagnostic rather than this heuristic's generic message.
	if !rewriter.HasEntryPoint(rewritten) {
		return failureOutcome(sessionID, types.CodeNoEntryPoint, "snippet has no runnable entry point", time.Since(start))
	}

	// Step 6: load into the session's sandbox, creating it lazily. Runs
	// after step 7's entry-point check - no point loading a program with
	// nothing to invoke.
	sb := s.Sandbox()
	if sb == nil {
		created, err := e.newSandbox(sessionID)
		if err != nil {
			return failureOutcome(sessionID, types.CodeExecutionError, fmt.Sprintf("create sandbox: %v", err), time.Since(start))
		}
		s.SetSandbox(created)
		sb = created
	}

	usings := rewriter.TopLevelUsings(rewritten)
	var loadErr error
	if pl, ok := sb.(interface {
		LoadWithPolicy([]byte, []string, types.SecurityPolicy) error
	}); ok {
		loadErr = pl.LoadWithPolicy(compileResult.ArtifactBytes, usings, e.policy)
	} else {
		loadErr = sb.Load(compileResult.ArtifactBytes, usings)
	}
	if loadErr != nil {
		if errors.Is(loadErr, sandbox.ErrBlockedModule) {
			event.Publish(event.Event{Type: event.BlockedModuleAttempt, Data: event.BlockedModuleAttemptData{
				SessionID:  sessionID,
				ModuleName: strings.TrimPrefix(loadErr.Error(), sandbox.ErrBlockedModule.Error()+": "),
			}})
			return failureOutcome(sessionID, types.CodeForbiddenAPI, loadErr.Error(), time.Since(start))
		}
		return failureOutcome(sessionID, types.CodeExecutionError, loadErr.Error(), time.Since(start))
	}

	// 7-12: invoke under timeout/memory guard, on a worker "thread"
	// (goroutine) linked to the caller's cancellation.
	execCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	invokeDone := make(chan struct {
		res sandbox.InvokeResult
		err error
	}, 1)
	go func() {
		res, err := sb.Invoke(execCtx, e.policy)
		invokeDone <- struct {
			res sandbox.InvokeResult
			err error
		}{res, err}
	}()

	var invoked sandbox.InvokeResult
	select {
	case r := <-invokeDone:
		if r.err != nil {
			return failureOutcome(sessionID, types.CodeRuntimeError, r.err.Error(), time.Since(start))
		}
		invoked = r.res
	case <-execCtx.Done():
		// Cancellation (timeout or caller) fired; cancellation is
		// cooperative per spec, so wait a bounded grace period for the
		// worker to unwind before reporting a timeout anyway.
		select {
		case r := <-invokeDone:
			invoked = r.res
		case <-time.After(e.executionGracePeriod):
			invoked = sandbox.InvokeResult{TimedOut: true}
		}
	}

	// Replaying history on every call (step 3) means invoked.Stdout holds
	// earlier calls' output too; isolate what this call actually printed
	// before it becomes part of the outcome or the derived return value.
	invoked.Stdout = currentCallOutput(invoked.Stdout)
	invoked.ReturnValue = nil
	if trimmed := strings.TrimSpace(invoked.Stdout); trimmed != "" {
		invoked.ReturnValue = &trimmed
	}

	if invoked.TimedOut {
		event.Publish(event.Event{Type: event.LimitBreached, Data: event.LimitBreachedData{SessionID: sessionID, Limit: "timeout"}})
		logging.Warn().
			Str("session", logging.SessionID(sessionID, e.policy.MaskSessionIDsInLogs)).
			Str("limit", "timeout").
			Msg("execution limit breached")
		return types.ExecutionOutcome{
			Success:   false,
			Stdout:    invoked.Stdout,
			Diagnostics: []types.DiagnosticRecord{{
				Code:     types.CodeExecutionTimeout,
				Message:  "execution exceeded the configured timeout",
				Severity: types.SeverityError,
			}},
			Elapsed:   e.timeoutFor(),
			SessionID: sessionID,
		}
	}
	if invoked.MemoryExceeded {
		event.Publish(event.Event{Type: event.LimitBreached, Data: event.LimitBreachedData{SessionID: sessionID, Limit: "memory"}})
		logging.Warn().
			Str("session", logging.SessionID(sessionID, e.policy.MaskSessionIDsInLogs)).
			Str("limit", "memory").
			Msg("execution limit breached")
		return types.ExecutionOutcome{
			Success: false,
			Stdout:  invoked.Stdout,
			Diagnostics: []types.DiagnosticRecord{{
				Code:     types.CodeMemoryLimitExceeded,
				Message:  "execution exceeded the configured memory ceiling",
				Severity: types.SeverityError,
			}},
			Elapsed:   time.Since(start),
			SessionID: sessionID,
		}
	}
	if invoked.RuntimePanic != "" {
		return types.ExecutionOutcome{
			Success: false,
			Stdout:  invoked.Stdout,
			Diagnostics: []types.DiagnosticRecord{{
				Code:     types.CodeRuntimeError,
				Message:  invoked.RuntimePanic,
				Severity: types.SeverityError,
			}},
			Elapsed:   time.Since(start),
			SessionID: sessionID,
		}
	}

	// Step 13: the return value was already derived, from this call's own
	// slice of stdout, right after invoke returned.

	// Step 14: on success, record state: accumulated_state grows by this
	// call's snippet, execution_count and last_used_at advance.
	s.RecordSuccess(time.Now())
	s.AppendHistory(snippet)
	logging.Debug().Str("session", logging.SessionID(sessionID, e.policy.MaskSessionIDsInLogs)).Msg("execution succeeded")

	return types.ExecutionOutcome{
		Success:     true,
		ReturnValue: invoked.ReturnValue,
		Stdout:      invoked.Stdout,
		Elapsed:     time.Since(start),
		SessionID:   sessionID,
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if !e.policy.EnforceTimeout || e.policy.ExecutionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.policy.ExecutionTimeout)
}

func (e *Engine) timeoutFor() time.Duration {
	if !e.policy.EnforceTimeout || e.policy.ExecutionTimeout <= 0 {
		return 0
	}
	return e.policy.ExecutionTimeout
}

func failureOutcome(sessionID string, code, message string, elapsed time.Duration) types.ExecutionOutcome {
	return types.ExecutionOutcome{
		Success: false,
		Diagnostics: []types.DiagnosticRecord{{
			Code:     code,
			Message:  message,
			Severity: types.SeverityError,
		}},
		Elapsed:   elapsed,
		SessionID: sessionID,
	}
}

// firstDiagnosticCode returns the leading diagnostic code for an
// execution.finished event, or "" on a clean success.
func firstDiagnosticCode(outcome types.ExecutionOutcome) string {
	if len(outcome.Diagnostics) == 0 {
		return ""
	}
	return outcome.Diagnostics[0].Code
}

func resolverErrorCode(err error) string {
	var rErr *resolver.Error
	if errors.As(err, &rErr) {
		return string(rErr.Code)
	}
	return types.CodePackageDownloadFail
}
