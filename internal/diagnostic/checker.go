package diagnostic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// DefaultTimeout bounds a single checker invocation.
const DefaultTimeout = 60 * time.Second

// FilePlaceholder in a checker command is replaced by the artifact path.
const FilePlaceholder = "{file}"

// Checker computes diagnostics for an artifact.
type Checker interface {
	CheckDiagnostics(ctx context.Context, artifact string) ([]models.Diagnostic, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, artifact string) ([]models.Diagnostic, error)

// CheckDiagnostics calls f.
func (f CheckerFunc) CheckDiagnostics(ctx context.Context, artifact string) ([]models.Diagnostic, error) {
	return f(ctx, artifact)
}

// CommandChecker writes the artifact to a temporary file and runs an external
// static checker on it.
type CommandChecker struct {
	// Command is the checker argv. FilePlaceholder is replaced with the
	// artifact path; without a placeholder the path is appended.
	Command []string
	// FileExtension is the artifact file extension (e.g. ".ts").
	FileExtension string
	// Timeout bounds the checker run. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewCommandChecker creates a checker for the given command and file extension.
func NewCommandChecker(command []string, ext string, timeout time.Duration) *CommandChecker {
	if !strings.HasPrefix(ext, ".") && ext != "" {
		ext = "." + ext
	}
	return &CommandChecker{Command: command, FileExtension: ext, Timeout: timeout}
}

// CheckDiagnostics runs the checker. A zero exit status yields no diagnostics.
// A timeout yields a single TIMEOUT diagnostic rather than an error, and a
// failing run with unparseable output yields a single UNKNOWN diagnostic.
func (c *CommandChecker) CheckDiagnostics(ctx context.Context, artifact string) ([]models.Diagnostic, error) {
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("no diagnostic command configured")
	}

	dir, err := os.MkdirTemp("", "dispatch-check-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "artifact"+c.FileExtension)
	if err := os.WriteFile(path, []byte(artifact), 0644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := c.args(path)
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if runErr == nil {
		return nil, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return []models.Diagnostic{{
			Code:    CodeTimeout,
			Message: fmt.Sprintf("diagnostic check timed out after %s", timeout),
		}}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return nil, fmt.Errorf("%s: %w", args[0], runErr)
	}

	diags := Parse(strings.ReplaceAll(out.String(), path, filepath.Base(path)))
	if len(diags) == 0 {
		return []models.Diagnostic{Unknown(out.String())}, nil
	}
	return diags, nil
}

func (c *CommandChecker) args(path string) []string {
	args := make([]string, 0, len(c.Command)+1)
	replaced := false
	for _, a := range c.Command {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, path)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, path)
	}
	return args
}
