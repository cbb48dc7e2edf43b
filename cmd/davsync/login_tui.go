package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openmined/davsync/internal/pairstore"
)

const (
	txtServerPlaceholder = "https://dav.example.com/remote.php/dav"
	txtLoginPlaceholder  = "alice"
	txtVerifying         = "Connecting..."
	txtHelp              = "Tab/Shift+Tab to move. Enter to submit. Esc or Ctrl+C to quit."
	txtEmptyField        = "All fields are required"
)

var (
	ErrLoginCancelled = errors.New("login cancelled")

	focusedStyle     = green
	helpStyle        = gray
	errorTextStyle   = red
	errorHeaderStyle = red.Bold(true)
	spinnerStyle     = cyan
	placeholderStyle = gray
	titleStyle       = cyan.Bold(true)
)

type LoginTUIOpts struct {
	ServerURL     string
	Login         string
	DataDir       string
	SubmitHandler func(pairstore.Credentials) error
}

const (
	fieldServer = iota
	fieldLogin
	fieldPassword
	fieldCount
)

type loginModel struct {
	opts    *LoginTUIOpts
	inputs  []textinput.Model
	focus   int
	spinner spinner.Model

	isLoading    bool
	errorMessage string
	done         bool
}

type credentialsCheckedMsg struct{ err error }

func newLoginModel(opts *LoginTUIOpts) loginModel {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 256
		in.Width = 48
		in.PromptStyle = focusedStyle
		in.TextStyle = focusedStyle
		in.PlaceholderStyle = placeholderStyle
		inputs[i] = in
	}
	inputs[fieldServer].Prompt = "Server   > "
	inputs[fieldServer].Placeholder = txtServerPlaceholder
	inputs[fieldServer].SetValue(opts.ServerURL)
	inputs[fieldLogin].Prompt = "Login    > "
	inputs[fieldLogin].Placeholder = txtLoginPlaceholder
	inputs[fieldLogin].SetValue(opts.Login)
	inputs[fieldPassword].Prompt = "Password > "
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := loginModel{opts: opts, inputs: inputs, spinner: s}
	// start at the first field that still needs a value
	for m.focus < fieldPassword && m.inputs[m.focus].Value() != "" {
		m.focus++
	}
	m.inputs[m.focus].Focus()
	return m
}

func (m loginModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyDown:
			return m.moveFocus(1)
		case tea.KeyShiftTab, tea.KeyUp:
			return m.moveFocus(-1)
		case tea.KeyEnter:
			if m.isLoading {
				return m, nil
			}
			if m.focus < fieldPassword {
				return m.moveFocus(1)
			}
			return m.submit()
		}

		if m.isLoading {
			return m, nil
		}
		m.errorMessage = ""
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case credentialsCheckedMsg:
		m.isLoading = false
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s %s", errorHeaderStyle.Render("ERROR:"), msg.err.Error())
			m.inputs[m.focus].Focus()
			return m, textinput.Blink
		}
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m loginModel) moveFocus(delta int) (tea.Model, tea.Cmd) {
	if m.isLoading {
		return m, nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	m.inputs[m.focus].Focus()
	return m, textinput.Blink
}

func (m loginModel) credentials() pairstore.Credentials {
	return pairstore.Credentials{
		ServerURL: strings.TrimSpace(m.inputs[fieldServer].Value()),
		Login:     strings.TrimSpace(m.inputs[fieldLogin].Value()),
		Password:  m.inputs[fieldPassword].Value(),
	}
}

func (m loginModel) submit() (tea.Model, tea.Cmd) {
	creds := m.credentials()
	if creds.ServerURL == "" || creds.Login == "" || creds.Password == "" {
		m.errorMessage = txtEmptyField
		return m, nil
	}

	m.errorMessage = ""
	m.isLoading = true
	m.inputs[m.focus].Blur()

	handler := m.opts.SubmitHandler
	return m, func() tea.Msg {
		return credentialsCheckedMsg{err: handler(creds)}
	}
}

func (m loginModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("davsync login"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s%s\n\n", gray.Render("Data  "), green.Render(m.opts.DataDir)))

	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	if m.isLoading {
		b.WriteString(fmt.Sprintf("\n%s %s", m.spinner.View(), txtVerifying))
	}
	if m.errorMessage != "" {
		b.WriteString("\n")
		b.WriteString(errorTextStyle.Render(m.errorMessage))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render(txtHelp))
	b.WriteString("\n")
	return b.String()
}

// RunLoginTUI asks for the missing credentials and returns them once
// SubmitHandler accepted them.
func RunLoginTUI(opts LoginTUIOpts) (pairstore.Credentials, error) {
	model, err := tea.NewProgram(newLoginModel(&opts)).Run()
	if err != nil {
		return pairstore.Credentials{}, fmt.Errorf("login form: %w", err)
	}

	fm, ok := model.(loginModel)
	if !ok || !fm.done {
		return pairstore.Credentials{}, ErrLoginCancelled
	}
	return fm.credentials(), nil
}
