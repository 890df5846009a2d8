package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

var errPromptCancelled = errors.New("cancelled")

type promptModel struct {
	label     string
	input     textinput.Model
	done      bool
	cancelled bool
}

func newPromptModel(label string, secret bool) *promptModel {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 256
	if secret {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}
	input.Focus()
	return &promptModel{label: label, input: input}
}

func (m *promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return m.label + "\n" + m.input.View() + "\n"
}

// prompt reads one line from the terminal, hiding it when secret. Piped
// input is read line by line without echo control.
func prompt(label string, secret bool) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return readLine(label)
	}

	m := newPromptModel(label, secret)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	if m.cancelled {
		return "", errPromptCancelled
	}
	return m.input.Value(), nil
}

var stdinReader = bufio.NewReader(os.Stdin)

func readLine(label string) (string, error) {
	fmt.Fprintln(os.Stderr, label)
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(strings.TrimSuffix(label, ":")), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
