// Package confirm asks the operator before a host is modified.
package confirm

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// Prompter asks a yes/no question.
type Prompter interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// Form prompts with a huh confirm field.
type Form struct {
	Input  io.Reader
	Output io.Writer
	// Accessible renders a plain line prompt instead of the TUI.
	Accessible bool
}

var _ Prompter = (*Form)(nil)

// Confirm implements Prompter. Aborting the prompt (Ctrl+C, Esc) is a
// decline, not an error.
func (f *Form) Confirm(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(f.Accessible)
	if f.Input != nil {
		form = form.WithInput(f.Input)
	}
	if f.Output != nil {
		form = form.WithOutput(f.Output)
	}
	return answer(ok, form.RunWithContext(ctx))
}

func answer(ok bool, err error) (bool, error) {
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, huh.ErrUserAborted):
		return false, nil
	default:
		return false, err
	}
}

// Static always gives the same answer; it stands in for the prompt when
// --yes is set and in tests.
type Static bool

// Confirm implements Prompter.
func (s Static) Confirm(context.Context, string, string) (bool, error) { return bool(s), nil }

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
