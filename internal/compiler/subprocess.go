package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// SubprocessCompiler shells out to an external compiler binary, the same
// os/exec + context timeout + process-group kill pattern used elsewhere in
// this repo for sandboxed child processes.
//
// Contract with the child process: it is invoked as
//
//	<command> <args...> --source <tmpdir>/snippet.cs --out <tmpdir>/artifact.dll
//
// and must write exactly one JSON object to stdout before exiting:
//
//	{"success": bool, "diagnostics": [{"code","message","severity","line","column"}, ...]}
//
// On success it must also have written the compiled artifact to the --out
// path (and, optionally, a --out path + ".symbols" companion file).
type SubprocessCompiler struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// NewSubprocessCompiler returns a SubprocessCompiler invoking command with
// a fixed argument prefix and per-call timeout.
func NewSubprocessCompiler(command string, args []string, timeout time.Duration) *SubprocessCompiler {
	return &SubprocessCompiler{Command: command, Args: args, Timeout: timeout}
}

type subprocessOutput struct {
	Success     bool                     `json:"success"`
	Diagnostics []types.DiagnosticRecord `json:"diagnostics"`
}

func (c *SubprocessCompiler) Compile(ctx context.Context, sourceText string, references []string) (Result, error) {
	dir, err := os.MkdirTemp("", "roslyn-stone-compile-*")
	if err != nil {
		return Result{}, fmt.Errorf("create compile workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	sourcePath := filepath.Join(dir, "snippet.cs")
	artifactPath := filepath.Join(dir, "artifact.dll")
	if err := os.WriteFile(sourcePath, []byte(sourceText), 0644); err != nil {
		return Result{}, fmt.Errorf("write snippet source: %w", err)
	}

	args := append([]string{}, c.Args...)
	args = append(args, "--source", sourcePath, "--out", artifactPath)
	for _, ref := range references {
		args = append(args, "--reference", ref)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.Command, args...)
	if runtime.GOOS != "windows" {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdout, err := cmd.Output()
	if cmdCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		return Result{}, fmt.Errorf("compiler timed out after %s", timeout)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			logging.Warn().Str("stderr", string(exitErr.Stderr)).Msg("compiler process exited non-zero")
		}
		return Result{}, fmt.Errorf("run compiler: %w", err)
	}

	var out subprocessOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return Result{}, fmt.Errorf("parse compiler output: %w", err)
	}

	result := Result{Success: out.Success, Diagnostics: out.Diagnostics}
	if !out.Success {
		return result, nil
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		return Result{}, fmt.Errorf("read compiled artifact: %w", err)
	}
	result.ArtifactBytes = artifact

	if symbols, err := os.ReadFile(artifactPath + ".symbols"); err == nil {
		result.SymbolBytes = symbols
	}
	return result, nil
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
