package trust

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrPromptAborted is returned when the operator aborts a prompt.
var ErrPromptAborted = errors.New("prompt aborted")

// Prompter asks the operator yes/no questions.
type Prompter interface {
	IsInteractive() bool
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// TerminalPrompter prompts on the controlling terminal.
type TerminalPrompter struct {
	in         *os.File
	accessible bool
}

// TerminalPrompterOption configures a TerminalPrompter.
type TerminalPrompterOption func(*TerminalPrompter)

// WithAccessible switches huh to its line-based accessible mode.
func WithAccessible(accessible bool) TerminalPrompterOption {
	return func(p *TerminalPrompter) { p.accessible = accessible }
}

// NewTerminalPrompter creates a new TerminalPrompter reading from stdin.
func NewTerminalPrompter(opts ...TerminalPrompterOption) *TerminalPrompter {
	p := &TerminalPrompter{in: os.Stdin}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsInteractive checks if we're running in an interactive terminal.
func (p *TerminalPrompter) IsInteractive() bool {
	return term.IsTerminal(int(p.in.Fd()))
}

// Confirm shows a yes/no dialog defaulting to no.
func (p *TerminalPrompter) Confirm(ctx context.Context, title, description string) (bool, error) {
	answer := false

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&answer),
	)).WithAccessible(p.accessible)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrPromptAborted
		}
		return false, err
	}
	return answer, nil
}

// StaticPrompter is a headless prompter with a fixed answer.
type StaticPrompter struct {
	Interactive bool
	Answer      bool
	Err         error

	// Prompts records the titles of the questions asked.
	Prompts []string
}

// IsInteractive reports the configured interactivity.
func (p *StaticPrompter) IsInteractive() bool {
	return p.Interactive
}

// Confirm records the question and returns the fixed answer.
func (p *StaticPrompter) Confirm(ctx context.Context, title, _ string) (bool, error) {
	p.Prompts = append(p.Prompts, title)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if p.Err != nil {
		return false, p.Err
	}
	return p.Answer, nil
}
