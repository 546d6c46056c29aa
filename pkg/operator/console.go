// Package operator holds everything deskhand says to, and asks of, the person
// at the keyboard.
package operator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/tcnksm/go-input"
)

type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutopilot Mode = "autopilot"
)

// ErrAborted is returned when the operator leaves a prompt without answering.
var ErrAborted = errors.New("aborted by operator")

// Console prompts on in and prints on out. Rich output (menus, markdown) is
// only used when both ends are terminals.
type Console struct {
	ui          *input.UI
	out         io.Writer
	interactive bool
}

// New returns a plain console, for pipes and tests.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		ui:  &input.UI{Reader: in, Writer: out},
		out: out,
	}
}

// NewStd returns a console on stdin/stdout.
func NewStd() *Console {
	c := New(os.Stdin, os.Stdout)
	c.interactive = isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	return c
}

func (c *Console) Interactive() bool { return c.interactive }

// SelectMode asks for manual or autopilot operation.
func (c *Console) SelectMode() (Mode, error) {
	if c.interactive {
		mode := ModeManual
		err := huh.NewForm(huh.NewGroup(
			huh.NewSelect[Mode]().
				Title("Modo de operação").
				Options(
					huh.NewOption("Manual (você seleciona as conversas)", ModeManual),
					huh.NewOption("Autopilot (o assistente navega e processa sozinho)", ModeAutopilot),
				).
				Value(&mode),
		)).Run()
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		if err != nil {
			return "", errors.Wrap(err, "select mode")
		}
		return mode, nil
	}

	fmt.Fprintln(c.out, "\nMODO DE OPERAÇÃO:")
	fmt.Fprintln(c.out, "1. Manual (você seleciona as conversas)")
	fmt.Fprintln(c.out, "2. Autopilot (o assistente navega e processa sozinho)")
	answer, err := c.ui.Ask("Escolha (1/2)", &input.Options{
		Default:  "1",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch strings.TrimSpace(answer) {
			case "1", "2":
				return nil
			default:
				return errors.Errorf("digite 1 ou 2")
			}
		},
	})
	if err != nil {
		return "", c.askError(err)
	}
	if strings.TrimSpace(answer) == "2" {
		return ModeAutopilot, nil
	}
	return ModeManual, nil
}

// ParseYesNo reads a s/n answer. ok is false for anything else.
func ParseYesNo(answer string) (yes bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "sim", "y", "yes":
		return true, true
	case "n", "nao", "não", "no":
		return false, true
	}
	return false, false
}

// Confirm asks a yes/no question until it gets a valid answer.
func (c *Console) Confirm(question string) (bool, error) {
	answer, err := c.ui.Ask(question+" (s/n)", &input.Options{
		Required:  true,
		Loop:      true,
		HideOrder: true,
		ValidateFunc: func(answer string) error {
			if _, ok := ParseYesNo(answer); !ok {
				return errors.Errorf("digite 's' para sim ou 'n' para não")
			}
			return nil
		},
	})
	if err != nil {
		return false, c.askError(err)
	}
	yes, _ := ParseYesNo(answer)
	return yes, nil
}

// WaitForEnter prints instructions and blocks until a line is entered.
func (c *Console) WaitForEnter(instructions string) error {
	_, err := c.ui.Ask(instructions, &input.Options{HideOrder: true})
	if err != nil && !errors.Is(err, input.ErrEmpty) {
		return c.askError(err)
	}
	return nil
}

func (c *Console) askError(err error) error {
	if errors.Is(err, input.ErrInterrupted) {
		return ErrAborted
	}
	return errors.Wrap(err, "read answer")
}
