package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PrepareView ViewState = iota
	StreamView
	ResultView
)

const maxBarWidth = 60

// Creator runs a single entry, reporting progress on the channel.
type Creator interface {
	Create(ctx context.Context, entry models.LicenseEntry, progress chan<- tasks.ProgressUpdate) (*tasks.EntryResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	view         ViewState
	engine       Creator
	entry        models.LicenseEntry
	width        int
	height       int
	spinner      spinner.Model
	bar          progress.Model
	steps        list.Model
	showSteps    bool
	progressChan chan tasks.ProgressUpdate
	outcome      *entryOutcome
	update       tasks.ProgressUpdate
	malformed    int
	result       *tasks.EntryResult
	err          error
	cancelled    bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that will create entry with engine.
func NewModel(ctx context.Context, engine Creator, entry models.LicenseEntry) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    PrepareView,
		engine:  engine,
		entry:   entry,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Run starts the TUI and blocks until the user quits. The returned result and error are the engine's.
func Run(ctx context.Context, engine Creator, entry models.LicenseEntry, opts ...tea.ProgramOption) (*tasks.EntryResult, error) {
	m := NewModel(ctx, engine, entry)
	defer m.cancel()

	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return nil, fmt.Errorf("TUI failed: %w", err)
	}
	if m.outcome == nil {
		return nil, context.Canceled
	}
	return m.result, m.err
}

// Init starts the entry and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startEntry())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		if m.view == ResultView && m.showSteps {
			m.steps.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		if m.view == ResultView {
			return m.handleResultKeys(msg)
		}
		return m.handleRunningKeys(msg)

	case spinner.TickMsg:
		if m.view == ResultView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			u := msg.data.(tasks.ProgressUpdate)
			m.update = u
			switch u.Phase {
			case tasks.PhaseStreaming, tasks.PhaseComplete:
				m.view = StreamView
			case tasks.PhaseMalformed:
				m.malformed++
			}
			return m, m.waitForProgress()

		case MsgEntryComplete:
			out := msg.data.(entryOutcome)
			m.result = out.result
			m.err = out.err
			m.view = ResultView
			if m.result != nil {
				m.steps = newEventList(m.result.Events, max(m.width-4, 20), max(m.height-12, 8))
			}
			if m.cancelled {
				return m, tea.Quit
			}
			return m, nil
		}
	}

	if m.view == ResultView && m.showSteps {
		var cmd tea.Cmd
		m.steps, cmd = m.steps.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PrepareView:
		return m.renderPrepare()
	case StreamView:
		return m.renderStream()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Cancelled reports whether the user cancelled the operation.
func (m *Model) Cancelled() bool {
	return m.cancelled
}

func (m *Model) handleRunningKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && !m.cancelled {
		m.cancelled = true
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.log) && m.result != nil:
		m.showSteps = !m.showSteps
		return m, nil
	}

	if m.showSteps {
		var cmd tea.Cmd
		m.steps, cmd = m.steps.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) startEntry() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	ch := m.progressChan

	go func() {
		result, err := m.engine.Create(m.ctx, m.entry, ch)
		m.outcome = &entryOutcome{result: result, err: err}
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	ch := m.progressChan
	return func() tea.Msg {
		update, ok := <-ch
		if !ok {
			return entryCompleteMsg(m.outcome.result, m.outcome.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) title() string {
	return styles.title.Render(fmt.Sprintf("Creating license entry for %s", m.entry.Username))
}

func (m *Model) renderPrepare() string {
	message := m.update.Message
	if message == "" {
		message = "Starting..."
	}
	if m.cancelled {
		message = "Cancelling..."
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.cancel})
	return fmt.Sprintf("%s\n%s %s\n\n%s", m.title(), m.spinner.View(), message, helpView)
}

func (m *Model) renderStream() string {
	var b strings.Builder
	b.WriteString(m.title())
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.update.Percent / 100))
	b.WriteString("\n\n")

	message := m.update.Message
	if m.cancelled {
		message = "Cancelling..."
	}
	b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), message))

	if m.malformed > 0 {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render(fmt.Sprintf("Skipped %d malformed frame(s)", m.malformed)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.quit}
	if m.result != nil {
		helpKeys = append(helpKeys, m.keys.log)
	}
	helpView := m.help.ShortHelpView(helpKeys)

	var are *shared.ApplicationReportedError
	var body string
	switch {
	case m.err == nil && m.result != nil:
		body = styles.box.Render(styles.ok.Render("✓ " + m.result.Message()))
		body += fmt.Sprintf("\n\nFinished in %s", m.result.Duration.Round(time.Millisecond))
		if n := len(m.result.Malformed); n > 0 {
			body += "\n" + styles.warn.Render(fmt.Sprintf("Skipped %d malformed frame(s)", n))
		}
	case errors.Is(m.err, context.Canceled):
		body = styles.warn.Render("Cancelled")
	case errors.As(m.err, &are):
		body = styles.err.Render(are.Message)
	case m.err != nil:
		body = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	default:
		body = styles.err.Render("No result available")
	}

	if m.showSteps && m.result != nil {
		body += "\n\n" + m.steps.View()
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.title(), body, helpView)
}
