package orchestrator

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/progress"
)

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests need a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found in PATH")
	}
	return sh
}

func TestExec_StreamsAndExitCode(t *testing.T) {
	sh := requireShell(t)
	o := &Orchestrator{Shell: sh}

	task := o.Start(context.Background(), job(
		Phase{Name: "ok", Module: "lib", Command: "echo hello; echo oops 1>&2"},
		Phase{Name: "fail", Module: "lib", Command: "exit 3"},
		Phase{Name: "never", Module: "lib", Command: "echo unreachable"},
	))
	events := collect(task)
	res := task.Wait()

	assert.Equal(t, Failed, res.State)
	var cmdErr *CommandError
	require.True(t, errors.As(res.Err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "fail", cmdErr.Phase)

	assert.Equal(t, []string{"hello"}, messages(events, progress.StreamStdout))
	assert.Equal(t, []string{"oops"}, messages(events, progress.StreamStderr))
}

func TestExec_ArgumentsAndWorkingDir(t *testing.T) {
	sh := requireShell(t)
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	task := (&Orchestrator{Shell: sh}).Start(context.Background(), job(
		Phase{Name: "args", Command: `printf '%s|'`, Args: []string{"a b", "c"}},
		Phase{Name: "pwd", Command: "pwd -P", Dir: dir},
	))
	events := collect(task)
	require.Equal(t, Succeeded, task.Wait().State)

	assert.Equal(t, []string{"a b|c|", dir}, messages(events, progress.StreamStdout))
}

func TestExec_WithoutShell(t *testing.T) {
	requireShell(t)
	t.Setenv("MODKIT_TEST_WORD", "expanded")

	task := (&Orchestrator{}).Start(context.Background(), job(
		Phase{Name: "echo", Command: "echo $MODKIT_TEST_WORD"},
	))
	events := collect(task)
	require.Equal(t, Succeeded, task.Wait().State)
	assert.Equal(t, []string{"expanded"}, messages(events, progress.StreamStdout))
}

func TestExec_HaltTerminatesProcessGroup(t *testing.T) {
	sh := requireShell(t)

	task := (&Orchestrator{Shell: sh}).Start(context.Background(), job(
		Phase{Name: "long", Command: "echo started; sleep 30; echo finished"},
	))

	for e := range task.Events() {
		if e.Message == "started" {
			break
		}
	}
	begin := time.Now()
	task.Halt()
	assert.Empty(t, collect(task))

	res := task.Wait()
	assert.Equal(t, Cancelled, res.State)
	assert.True(t, errors.Is(res.Err, oerrors.ErrCancelled))
	assert.Less(t, time.Since(begin), 10*time.Second)
}

func TestExec_Timeout(t *testing.T) {
	sh := requireShell(t)

	task := (&Orchestrator{Shell: sh, Timeout: 200 * time.Millisecond}).Start(context.Background(), job(
		Phase{Name: "slow", Command: "sleep 30"},
	))
	collect(task)
	res := task.Wait()

	assert.Equal(t, Failed, res.State)
	assert.True(t, errors.Is(res.Err, oerrors.ErrTimeout))
}
