package diagnostic

import (
	"context"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandChecker_ZeroExit(t *testing.T) {
	requireShell(t)
	c := NewCommandChecker([]string{"sh", "-c", "test -f {file}"}, "ts", time.Second)

	diags, err := c.CheckDiagnostics(context.Background(), "const x = 1;")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, ".ts", c.FileExtension)
}

func TestCommandChecker_ParsesOutput(t *testing.T) {
	requireShell(t)
	script := `echo "{file}(3,7): error TS2304: Cannot find name 'foo'."; exit 2`
	c := NewCommandChecker([]string{"sh", "-c", script}, ".ts", time.Second)

	diags, err := c.CheckDiagnostics(context.Background(), "foo")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "TS2304", diags[0].Code)
	assert.Equal(t, 3, diags[0].Line)
	assert.Equal(t, 7, diags[0].Column)
	assert.Equal(t, "artifact.ts", diags[0].File)
}

func TestCommandChecker_UnparseableFailure(t *testing.T) {
	requireShell(t)
	c := NewCommandChecker([]string{"sh", "-c", "echo something broke; exit 1 # {file}"}, ".ts", time.Second)

	diags, err := c.CheckDiagnostics(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnknown, diags[0].Code)
	assert.Contains(t, diags[0].Message, "something broke")
}

func TestCommandChecker_Timeout(t *testing.T) {
	requireShell(t)
	c := NewCommandChecker([]string{"sh", "-c", "exec sleep 5 # {file}"}, ".ts", 100*time.Millisecond)

	start := time.Now()
	diags, err := c.CheckDiagnostics(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeTimeout, diags[0].Code)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandChecker_NoCommand(t *testing.T) {
	c := &CommandChecker{}
	_, err := c.CheckDiagnostics(context.Background(), "x")
	assert.Error(t, err)
}

func TestCommandChecker_AppendsPath(t *testing.T) {
	c := &CommandChecker{Command: []string{"tsc", "--noEmit"}}
	assert.Equal(t, []string{"tsc", "--noEmit", "/tmp/a.ts"}, c.args("/tmp/a.ts"))

	c = &CommandChecker{Command: []string{"check", "--file={file}"}}
	assert.Equal(t, []string{"check", "--file=/tmp/a.ts"}, c.args("/tmp/a.ts"))
}

func TestCachedChecker(t *testing.T) {
	var calls atomic.Int32
	inner := CheckerFunc(func(ctx context.Context, artifact string) ([]models.Diagnostic, error) {
		calls.Add(1)
		if artifact == "slow" {
			return []models.Diagnostic{{Code: CodeTimeout}}, nil
		}
		return []models.Diagnostic{{Code: "TS1005", Line: 1}}, nil
	})

	c, err := NewCachedChecker(inner, 0)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		diags, err := c.CheckDiagnostics(ctx, "same content")
		require.NoError(t, err)
		require.Len(t, diags, 1)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, _ = c.CheckDiagnostics(ctx, "slow")
	_, _ = c.CheckDiagnostics(ctx, "slow")
	assert.Equal(t, int32(3), calls.Load(), "timeouts are not cached")
	assert.Equal(t, 1, c.Len())
}

func TestHash(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
	assert.Len(t, Hash(""), 64)
}
