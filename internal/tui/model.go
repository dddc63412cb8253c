// internal/tui/model.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/deckster/internal/export"
	"github.com/user/deckster/internal/reconcile"
	"github.com/user/deckster/internal/session"
	"github.com/user/deckster/internal/types"
)

// Session is the part of session.Controller the chat view drives.
type Session interface {
	SessionID() types.SessionID
	Send(ctx context.Context, text string) (types.UserMessageRecord, error)
	Respond(ctx context.Context, actionID types.MessageID, action types.Action) (types.UserMessageRecord, error)
	Subscribe() (<-chan *reconcile.Result, func())
}

var _ Session = (*session.Controller)(nil)

type transcriptMsg struct{ res *reconcile.Result }

type sentMsg struct {
	rec types.UserMessageRecord
	err error
}

// Model is the interactive chat view.
type Model struct {
	ctx     context.Context
	sess    Session
	updates <-chan *reconcile.Result
	cancel  func()

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model
	styles   export.Styles
	status   lipgloss.Style

	entries []export.Entry
	sending bool
	errText string
	ready   bool
}

// New builds the chat view and subscribes to transcript updates.
func New(ctx context.Context, sess Session) Model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = "Describe the presentation you want, or press a number to answer a prompt"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	updates, cancel := sess.Subscribe()
	return Model{
		ctx:      ctx,
		sess:     sess,
		updates:  updates,
		cancel:   cancel,
		input:    input,
		timeline: timeline,
		spinner:  sp,
		styles:   export.NewStyles(lipgloss.DefaultRenderer()),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitTranscript(m.updates))
}

func waitTranscript(ch <-chan *reconcile.Result) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return nil
		}
		return transcriptMsg{res: res}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		rec, err := m.sess.Send(m.ctx, text)
		return sentMsg{rec: rec, err: err}
	}
}

func (m Model) respondCmd(actionID types.MessageID, a export.ActionView) tea.Cmd {
	action := types.Action{Label: a.Label, Value: a.Value, Primary: a.Primary}
	return func() tea.Msg {
		rec, err := m.sess.Respond(m.ctx, actionID, action)
		return sentMsg{rec: rec, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-3, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()

	case transcriptMsg:
		if msg.res != nil {
			m.entries = export.Entries(msg.res.Items)
			m.refresh()
		}
		cmds = append(cmds, waitTranscript(m.updates))

	case sentMsg:
		m.sending = false
		m.errText = ""
		if msg.err != nil {
			m.errText = msg.err.Error()
			if errors.Is(msg.err, session.ErrSendInFlight) {
				m.errText = "still sending the previous message"
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancel()
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			return m, m.sendCmd(text)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.timeline, cmd = m.timeline.Update(msg)
			return m, cmd
		}
		if cmd, ok := m.answerKey(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// answerKey turns a digit typed into an empty input into a click on the
// matching button of the newest unanswered prompt.
func (m *Model) answerKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 || m.input.Value() != "" || m.sending {
		return nil, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return nil, false
	}
	e, ok := m.pendingPrompt()
	if !ok {
		return nil, false
	}
	idx := int(r - '1')
	if idx >= len(e.Actions) {
		return nil, false
	}
	m.sending = true
	return m.respondCmd(e.ActionID, e.Actions[idx]), true
}

func (m Model) pendingPrompt() (export.Entry, bool) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].HasActions() {
			return m.entries[i], true
		}
	}
	return export.Entry{}, false
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	blocks := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		blocks = append(blocks, m.styles.Render(e))
	}
	m.timeline.SetContent(strings.Join(blocks, "\n\n"))
	m.timeline.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	status := fmt.Sprintf("session %s · %d items", m.sess.SessionID(), len(m.entries))
	if m.sending {
		status = m.spinner.View() + " sending · " + status
	}
	if m.errText != "" {
		status += " · error: " + m.errText
	}
	return m.timeline.View() + "\n" + m.status.Render(status) + "\n" + m.input.View()
}

// Run starts the chat view and blocks until the user quits.
func Run(ctx context.Context, sess Session) error {
	p := tea.NewProgram(New(ctx, sess), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
