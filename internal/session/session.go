// Package session implements the SessionManager of spec.md §4.8: a
// concurrent key-value map from session id to Session, plus the
// background sweep that evicts idle sessions.
package session

import (
	"sync"
	"time"

	"github.com/roslyn-stone/roslyn-stone/internal/sandbox"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// Session is one REPL context: its sandbox, its attached dependency
// artifacts, and the metadata exposed by Manager.Metadata.
//
// mu is the "per-session lock" spec.md §4.8 and §5 both refer to: Touch
// takes it briefly to update LastUsedAt, the execution engine (via TryLock
// and Unlock) holds it for an entire execution so at most one
// execution runs per session at a time, and Sweep only ever TryLocks it -
// a session whose lock is held never gets evicted out from under a
// running execution, which is the only coordination spec.md §5 requires
// between the sweeper and the engine.
type Session struct {
	mu sync.Mutex

	id             string
	createdAt      time.Time
	lastUsedAt     time.Time
	executionCount int
	initialized    bool

	sandbox               sandbox.Sandbox
	attachedArtifactPaths []string

	// history is the session's accumulated_state (spec.md §3): the
	// ordered list of raw snippets from every successful execution so
	// far. Real continuation tokens need an in-process runtime this
	// repo's process-per-session sandbox doesn't have; spec.md §9
	// sanctions recompiling the concatenation of history + the new
	// snippet instead, which is what the engine does with this field.
	history []string
}

func newSession(id string, now time.Time) *Session {
	return &Session{id: id, createdAt: now, lastUsedAt: now}
}

// Lock acquires the session's execution lock. Callers (the engine) must
// hold it for the whole duration of one execution.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the execution lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// TryLock attempts to acquire the execution lock without blocking. Used
// by the engine to fail fast with SESSION_BUSY, and by Sweep to skip
// sessions with an execution in flight.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Sandbox returns the session's sandbox, or nil if none has been created
// yet (the sandbox is created lazily on first execution, per spec.md §4.5).
// Callers must hold the session's lock.
func (s *Session) Sandbox() sandbox.Sandbox { return s.sandbox }

// SetSandbox installs the session's sandbox. Callers must hold the
// session's lock.
func (s *Session) SetSandbox(sb sandbox.Sandbox) { s.sandbox = sb }

// AttachedArtifactPaths returns the paths attached to this session so far,
// in attachment order. Callers must hold the session's lock.
func (s *Session) AttachedArtifactPaths() []string {
	out := make([]string, len(s.attachedArtifactPaths))
	copy(out, s.attachedArtifactPaths)
	return out
}

// AttachArtifactPaths appends paths not already present, de-duplicated by
// absolute path, per spec.md §4.6's attachment semantics. Callers must
// hold the session's lock.
func (s *Session) AttachArtifactPaths(paths ...string) {
	existing := make(map[string]struct{}, len(s.attachedArtifactPaths))
	for _, p := range s.attachedArtifactPaths {
		existing[p] = struct{}{}
	}
	for _, p := range paths {
		if _, ok := existing[p]; ok {
			continue
		}
		existing[p] = struct{}{}
		s.attachedArtifactPaths = append(s.attachedArtifactPaths, p)
	}
}

// RecordSuccess updates executionCount/lastUsedAt/initialized after a
// successful execution, per spec.md §4.7 step 14. Callers must hold the
// session's lock.
func (s *Session) RecordSuccess(now time.Time) {
	s.executionCount++
	s.initialized = true
	s.lastUsedAt = now
}

// History returns the raw snippets accumulated by every successful
// execution so far, oldest first. Callers must hold the session's lock.
func (s *Session) History() []string {
	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

// AppendHistory records snippet as part of accumulated_state after a
// successful execution. Callers must hold the session's lock.
func (s *Session) AppendHistory(snippet string) {
	s.history = append(s.history, snippet)
}

func (s *Session) metadata() types.SessionMetadata {
	return types.SessionMetadata{
		SessionID:      s.id,
		CreatedAt:      s.createdAt,
		LastUsedAt:     s.lastUsedAt,
		ExecutionCount: s.executionCount,
		Initialized:    s.initialized,
	}
}
