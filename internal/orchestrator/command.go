package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"
	"mvdan.cc/sh/v3/syntax"
)

// DefaultWaitDelay bounds how long a terminated process may keep its
// output pipes open before they are closed forcibly.
const DefaultWaitDelay = 10 * time.Second

// Command is a fully resolved process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String renders the invocation for progress output.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// BuildCommand resolves the command line of p. Without a shell the line is
// split into words the way a POSIX shell would, expanding environment
// variables, and p.Args are appended. With a shell the line is passed to
// `<shell> -c` verbatim with p.Args quoted onto it.
func BuildCommand(p Phase, shellPath string) (Command, error) {
	if shellPath != "" {
		line := p.Command
		for _, arg := range p.Args {
			quoted, err := syntax.Quote(arg, syntax.LangBash)
			if err != nil {
				return Command{}, fmt.Errorf("quoting argument %q: %w", arg, err)
			}
			line += " " + quoted
		}
		return Command{Name: shellPath, Args: []string{"-c", line}, Dir: p.Dir}, nil
	}

	fields, err := shell.Fields(p.Command, nil)
	if err != nil {
		return Command{}, fmt.Errorf("parsing command %q: %w", p.Command, err)
	}
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("phase %s has an empty command", p.Name)
	}
	return Command{
		Name: fields[0],
		Args: append(fields[1:], p.Args...),
		Dir:  p.Dir,
	}, nil
}

// Waiter is a started process.
type Waiter interface {
	Wait() error
}

// Starter launches a resolved command. The process must be terminated when
// ctx is done, and its output written to stdout and stderr.
type Starter interface {
	Start(ctx context.Context, cmd Command, stdout, stderr io.Writer) (Waiter, error)
}

// ExecStarter runs commands as child processes.
type ExecStarter struct {
	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
}

// Start implements Starter.
func (s ExecStarter) Start(ctx context.Context, c Command, stdout, stderr io.Writer) (Waiter, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = s.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	configureTermination(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}
