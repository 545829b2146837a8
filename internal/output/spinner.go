package output

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// SpinnerOption configures a spinner.
type SpinnerOption func(*spinnerConfig)

type spinnerConfig struct {
	title string
}

// WithTitle sets the spinner title.
func WithTitle(title string) SpinnerOption {
	return func(c *spinnerConfig) {
		c.title = title
	}
}

// RunWithSpinner executes an action with a spinner.
// The action always runs to completion and its error is the only one
// returned. ctx and SIGINT only stop the animation early; callers observe
// interruption through their own signal handling.
func RunWithSpinner(ctx context.Context, action func() error, opts ...SpinnerOption) error {
	cfg := &spinnerConfig{
		title: "Working...",
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if !IsTTY() {
		return action()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- action()
	}()

	resCh := make(chan error, 1)
	s := spinner.New().Title(cfg.title).Context(ctx)
	if err := s.Action(func() {
		resCh <- <-errCh
	}).Run(); err != nil {
		Debug("spinner stopped early", "title", cfg.title, "err", err)
	}

	select {
	case err := <-resCh:
		return err
	case err := <-errCh:
		return err
	}
}
