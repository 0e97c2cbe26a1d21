package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// memorySampleInterval matches spec.md §4.7 step 11's ≈50ms cadence.
const memorySampleInterval = 50 * time.Millisecond

// ProcessSandbox is the production Sandbox: each session's loaded program
// runs in its own child process, started fresh for every Invoke against
// the artifact and dependency paths attached so far. The process is the
// unit of collectibility - each one exits (or has its process group
// killed on timeout or memory breach) before Invoke returns, and anything
// it had "loaded" (its own address space) is reclaimed by the OS, no
// managed GC cycle needed. Dispose removes the sandbox's work directory.
type ProcessSandbox struct {
	sessionID       string
	runtimeCommand  string   // e.g. "dotnet"
	runtimeArgs     []string // flags before the artifact path
	workDir         string
	artifactPath    string
	dependencyPaths []string

	mu       sync.Mutex
	disposed bool
	alive    atomic.Bool
}

// NewProcessSandbox returns a sandbox for one session that will invoke
// runtimeCommand (with runtimeArgs prepended) to run loaded artifacts.
func NewProcessSandbox(sessionID, runtimeCommand string, runtimeArgs []string) (*ProcessSandbox, error) {
	dir, err := os.MkdirTemp("", "roslyn-stone-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("create sandbox workdir: %w", err)
	}
	s := &ProcessSandbox{
		sessionID:      sessionID,
		runtimeCommand: runtimeCommand,
		runtimeArgs:    runtimeArgs,
		workDir:        dir,
	}
	s.alive.Store(true)
	return s, nil
}

func (s *ProcessSandbox) Load(artifact []byte, usings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	// usings is accepted for interface symmetry with LoadWithPolicy, which
	// the engine actually calls and where the blocklist check happens.

	path := filepath.Join(s.workDir, "artifact.dll")
	if err := os.WriteFile(path, artifact, 0644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	s.artifactPath = path
	return nil
}

// LoadWithPolicy is Load plus the blocklist check spec.md §4.5 requires.
// The engine calls this (not Load) in normal operation; Load alone exists
// so tests can construct a loaded sandbox without a policy in hand.
func (s *ProcessSandbox) LoadWithPolicy(artifact []byte, usings []string, policy types.SecurityPolicy) error {
	for _, u := range usings {
		if policy.IsBlockedModule(u) {
			logging.Warn().
				Str("session", logging.SessionID(s.sessionID, policy.MaskSessionIDsInLogs)).
				Str("module", u).
				Msg("refused to load blocked module")
			return fmt.Errorf("%w: %s", ErrBlockedModule, u)
		}
	}
	return s.Load(artifact, usings)
}

func (s *ProcessSandbox) AttachDependency(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	for _, p := range s.dependencyPaths {
		if p == path {
			return nil
		}
	}
	s.dependencyPaths = append(s.dependencyPaths, path)
	return nil
}

func (s *ProcessSandbox) Invoke(ctx context.Context, policy types.SecurityPolicy) (InvokeResult, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return InvokeResult{}, ErrDisposed
	}
	artifactPath := s.artifactPath
	deps := append([]string{}, s.dependencyPaths...)
	s.mu.Unlock()

	if artifactPath == "" {
		return InvokeResult{}, fmt.Errorf("sandbox: no artifact loaded")
	}

	args := append([]string{}, s.runtimeArgs...)
	args = append(args, artifactPath)
	for _, d := range deps {
		args = append(args, "--dependency", d)
	}

	cmd := exec.CommandContext(ctx, s.runtimeCommand, args...)
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return InvokeResult{}, fmt.Errorf("start sandbox process: %w", err)
	}

	memExceeded := make(chan struct{}, 1)
	sampleCtx, stopSampling := context.WithCancel(context.Background())
	defer stopSampling()
	if policy.EnforceMemory && policy.MaxMemoryBytes > 0 {
		go sampleMemory(sampleCtx, cmd.Process.Pid, policy.MaxMemoryBytes, memExceeded)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var result InvokeResult
	select {
	case err := <-done:
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		if err != nil {
			if _, ok := err.(*exec.ExitError); ok {
				result.RuntimePanic = strings.TrimSpace(stderr.String())
			} else {
				return result, err
			}
		}
	case <-memExceeded:
		killProcessGroup(cmd)
		<-done
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		result.MemoryExceeded = true
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		result.TimedOut = true
	}

	if result.Stdout != "" {
		trimmed := strings.TrimSpace(result.Stdout)
		result.ReturnValue = &trimmed
	}
	return result, nil
}

func (s *ProcessSandbox) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	s.alive.Store(false)
	return os.RemoveAll(s.workDir)
}

func (s *ProcessSandbox) Alive() bool {
	return s.alive.Load()
}

// sampleMemory polls /proc/<pid>/status for VmRSS every
// memorySampleInterval and signals exceeded once the delta from the first
// sample exceeds ceiling. On platforms without /proc (non-Linux), sampling
// silently does nothing - the timeout guard still bounds runaway loops,
// just not pure allocation.
func sampleMemory(ctx context.Context, pid int, ceiling int64, exceeded chan<- struct{}) {
	baseline, ok := readRSSBytes(pid)
	if !ok {
		return
	}
	ticker := time.NewTicker(memorySampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur, ok := readRSSBytes(pid)
			if !ok {
				continue
			}
			if cur-baseline > ceiling {
				select {
				case exceeded <- struct{}{}:
				default:
				}
				return
			}
		}
	}
}

func readRSSBytes(pid int) (int64, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if runtime.GOOS == "windows" {
		exec.Command("taskkill", "/pid", fmt.Sprint(pid), "/f", "/t").Run()
		return
	}
	syscall.Kill(-pid, syscall.SIGTERM)
	time.Sleep(200 * time.Millisecond)
	syscall.Kill(-pid, syscall.SIGKILL)
}
