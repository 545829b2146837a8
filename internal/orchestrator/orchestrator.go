// Package orchestrator runs the ordered external build phases one process
// at a time, streaming their output as events and supporting halt.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	oerrors "github.com/modkit/cli/internal/errors"
	"github.com/modkit/cli/internal/output"
	"github.com/modkit/cli/internal/progress"
)

// DefaultTimeout bounds a phase that sets no timeout of its own.
const DefaultTimeout = time.Hour

// maxLineSize is the longest output line forwarded as one event.
const maxLineSize = 1 << 20

// State is the lifecycle state of a build task.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Phase is one external command of a job.
type Phase struct {
	Name   string
	Module string
	// Dir is the working directory of the process.
	Dir     string
	Command string
	// Args are appended to the parsed command line.
	Args            []string
	Timeout         time.Duration
	TolerateFailure bool
}

// Job is the ordered list of phases of one build.
type Job struct {
	Phases []Phase
}

// Result is the terminal outcome of a task.
type Result struct {
	State State
	Err   error
	// Completed counts the phases that finished, tolerated failures included.
	Completed int
}

// Orchestrator starts build tasks.
type Orchestrator struct {
	// Starter launches processes. Defaults to ExecStarter.
	Starter Starter
	// Shell, when set, runs every phase as `<Shell> -c <command line>`.
	Shell string
	// Timeout applies to phases without their own. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Buffer is the capacity of the event channel. Defaults to
	// progress.DefaultBuffer.
	Buffer int
}

// Task is a running build. Events must be drained until closed, or the
// task halted, for the task to make progress.
type Task struct {
	o        *Orchestrator
	progress *progress.Channel
	done     chan struct{}
	cancel   context.CancelFunc

	mu     sync.Mutex
	state  State
	result Result
}

// Start runs job in the background and returns its handle.
func (o *Orchestrator) Start(ctx context.Context, job Job) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		o:        o,
		progress: progress.NewChannel(o.Buffer),
		done:     make(chan struct{}),
		cancel:   cancel,
		state:    Running,
	}
	go t.run(ctx, job)
	return t
}

// Events returns the progress stream. It is closed when the task ends.
func (t *Task) Events() <-chan progress.Event {
	return t.progress.Events()
}

// Halt terminates the running process and discards every later event. The
// task then ends Cancelled. Calling Halt more than once is harmless.
func (t *Task) Halt() {
	t.progress.Halt()
	t.cancel()
}

// Wait blocks until the task ends and returns its result.
func (t *Task) Wait() Result {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Done is closed when the task ends.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) status(p Phase, format string, args ...any) {
	t.progress.Emit(progress.Event{Module: p.Module, Phase: p.Name, Stream: progress.StreamStatus, Message: fmt.Sprintf(format, args...)})
}

func (t *Task) finish(state State, err error, completed int) {
	t.mu.Lock()
	t.state = state
	t.result = Result{State: state, Err: err, Completed: completed}
	t.mu.Unlock()
	t.cancel()
	t.progress.Close()
	close(t.done)
}

func (t *Task) run(ctx context.Context, job Job) {
	for i, p := range job.Phases {
		if t.progress.IsHalted() || ctx.Err() != nil {
			t.finish(Cancelled, oerrors.Wrap(oerrors.ErrCancelled, fmt.Sprintf("build halted before phase %s", p.Name)), i)
			return
		}

		err := t.runPhase(ctx, p)
		if err == nil {
			continue
		}
		if errors.Is(err, oerrors.ErrCancelled) {
			t.finish(Cancelled, err, i)
			return
		}
		t.status(p, "%v", err)
		t.finish(Failed, err, i)
		return
	}
	t.finish(Succeeded, nil, len(job.Phases))
}

func (t *Task) runPhase(ctx context.Context, p Phase) error {
	cmd, err := BuildCommand(p, t.o.Shell)
	if err != nil {
		return &CommandError{Phase: p.Name, Module: p.Module, Command: p.Command, Args: p.Args, Dir: p.Dir, ExitCode: -1, Err: err}
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = t.o.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	starter := t.o.Starter
	if starter == nil {
		starter = ExecStarter{}
	}

	t.status(p, "%s", output.FormatCommand(cmd.Name, cmd.Args))
	output.Debug("starting phase", "phase", p.Name, "module", p.Module, "dir", cmd.Dir, "timeout", timeout)

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	var pumps errgroup.Group
	pumps.Go(func() error { return t.pump(outR, p, progress.StreamStdout) })
	pumps.Go(func() error { return t.pump(errR, p, progress.StreamStderr) })

	proc, err := starter.Start(phaseCtx, cmd, outW, errW)
	if err == nil {
		err = proc.Wait()
	}
	outW.Close()
	errW.Close()
	if perr := pumps.Wait(); perr != nil {
		output.Warn("lost part of the phase output", "phase", p.Name, "error", perr)
	}

	switch {
	case ctx.Err() != nil:
		return oerrors.Wrap(oerrors.ErrCancelled, fmt.Sprintf("build halted during phase %s", p.Name))
	case errors.Is(phaseCtx.Err(), context.DeadlineExceeded):
		return &TimeoutError{Phase: p.Name, Module: p.Module, Command: cmd.String(), Timeout: timeout}
	case err == nil:
		return nil
	}

	code := -1
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		code = coder.ExitCode()
	}
	if p.TolerateFailure {
		t.status(p, "%s failed (exit code %d), continuing", cmd.String(), code)
		return nil
	}
	return &CommandError{
		Phase:    p.Name,
		Module:   p.Module,
		Command:  cmd.Name,
		Args:     cmd.Args,
		Dir:      cmd.Dir,
		ExitCode: code,
		Err:      err,
	}
}

// pump forwards r line by line. After an oversized line the rest of the
// stream is drained so the process never blocks on a full pipe.
func (t *Task) pump(r *io.PipeReader, p Phase, stream progress.Stream) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		t.progress.Emit(progress.Event{Module: p.Module, Phase: p.Name, Stream: stream, Message: sc.Text()})
	}
	if err := sc.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return fmt.Errorf("%s: %w", stream, err)
	}
	return nil
}
