package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/depicts/internal/jobs"
	"github.com/desertthunder/depicts/internal/models"
)

const pollInterval = 200 * time.Millisecond

// ViewState represents the current view in the TUI.
type ViewState int

const (
	HistoryView ViewState = iota
	InputView
	ProgressView
	ResultView
)

// Store is the slice of the repository layer the TUI reads from.
type Store interface {
	ListByCategory(category string) ([]models.FileRecord, error)
	ListCategories() ([]models.CategorySummary, error)
	DeleteCategory(category string) (int, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	engine   *jobs.Engine
	registry *jobs.Registry
	store    Store

	width  int
	height int

	categoryList list.Model
	fileList     list.Model
	input        textinput.Model

	jobID    string
	progress jobs.Snapshot
	status   string
	err      error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, engine *jobs.Engine, registry *jobs.Registry, store Store) *Model {
	input := textinput.New()
	input.Placeholder = "Category name, e.g. Cats of Istanbul"
	input.CharLimit = 255

	return &Model{
		ctx:      ctx,
		view:     HistoryView,
		engine:   engine,
		registry: registry,
		store:    store,
		input:    input,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init initializes the TUI by loading analysis history.
func (m *Model) Init() tea.Cmd {
	return m.fetchHistory()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.categoryList.Width() == 0 {
			m.categoryList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.fileList.Width() == 0 {
			m.fileList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case HistoryView:
			return m.handleHistoryKeys(msg)
		case InputView:
			return m.handleInputKeys(msg)
		case ProgressView:
			return m.handleProgressKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case historyFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.summaries))
		for i, summary := range msg.summaries {
			items[i] = categoryItem{summary: summary}
		}
		m.categoryList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.categoryList.Title = "Analyzed Categories"
		m.categoryList.SetSize(m.width-4, m.height-8)
		m.view = HistoryView
		return m, nil

	case resultsFetchedMsg:
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Failed to load results: %v", msg.err))
			return m, nil
		}
		items := make([]list.Item, len(msg.files))
		for i, record := range msg.files {
			items[i] = fileItem{record: record}
		}
		m.fileList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.fileList.Title = fmt.Sprintf("Files in '%s'", msg.category)
		m.fileList.SetSize(m.width-4, m.height-8)
		m.view = ResultView
		return m, nil

	case jobStartedMsg:
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Could not start analysis: %v", msg.err))
			m.view = HistoryView
			return m, nil
		}
		m.jobID = msg.snapshot.ID
		m.progress = msg.snapshot
		m.view = ProgressView
		return m, m.pollProgress()

	case progressTickMsg:
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Lost track of job: %v", msg.err))
			m.view = HistoryView
			return m, m.fetchHistory()
		}
		m.progress = msg.snapshot
		switch msg.snapshot.Phase {
		case "done":
			m.status = styles.ok.Render(fmt.Sprintf("Analyzed %s", msg.snapshot.Category))
			return m, m.fetchResults(msg.snapshot.Category)
		case "error":
			m.status = styles.err.Render(fmt.Sprintf("Analysis failed: %s", msg.snapshot.Error))
			m.view = HistoryView
			return m, m.fetchHistory()
		case "cancelled":
			m.status = styles.warn.Render("Analysis cancelled")
			m.view = HistoryView
			return m, m.fetchHistory()
		}
		return m, m.pollProgress()

	case categoryDeletedMsg:
		if msg.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("Delete failed: %v", msg.err))
			return m, nil
		}
		m.status = styles.warn.Render(fmt.Sprintf("Deleted %d rows for %s", msg.deleted, msg.category))
		return m, m.fetchHistory()
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case HistoryView:
		return m.renderHistory()
	case InputView:
		return m.renderInput()
	case ProgressView:
		return m.renderProgress()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "a":
		m.input.SetValue("")
		m.input.Focus()
		m.view = InputView
		return m, textinput.Blink
	case "d":
		if selected, ok := m.categoryList.SelectedItem().(categoryItem); ok {
			return m, m.deleteCategory(selected.summary.Category)
		}
	case "enter":
		if selected, ok := m.categoryList.SelectedItem().(categoryItem); ok {
			return m, m.fetchResults(selected.summary.Category)
		}
	}

	var cmd tea.Cmd
	m.categoryList, cmd = m.categoryList.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = HistoryView
		return m, nil
	case "enter":
		category := m.input.Value()
		if category == "" {
			return m, nil
		}
		return m, m.startAnalysis(category)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleProgressKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		if m.jobID != "" {
			m.registry.Cancel(m.jobID)
		}
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "r":
		m.status = ""
		return m, m.fetchHistory()
	}

	var cmd tea.Cmd
	m.fileList, cmd = m.fileList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case HistoryView:
		m.categoryList, cmd = m.categoryList.Update(msg)
	case ResultView:
		m.fileList, cmd = m.fileList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		summaries, err := m.store.ListCategories()
		return historyFetchedMsg{summaries: summaries, err: err}
	}
}

func (m *Model) fetchResults(category string) tea.Cmd {
	return func() tea.Msg {
		files, err := m.store.ListByCategory(category)
		return resultsFetchedMsg{category: category, files: files, err: err}
	}
}

func (m *Model) startAnalysis(category string) tea.Cmd {
	return func() tea.Msg {
		snapshot, err := m.engine.Submit(m.ctx, category)
		return jobStartedMsg{snapshot: snapshot, err: err}
	}
}

func (m *Model) pollProgress() tea.Cmd {
	jobID := m.jobID
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		snapshot, err := m.registry.Snapshot(jobID)
		return progressTickMsg{snapshot: snapshot, err: err}
	})
}

func (m *Model) deleteCategory(category string) tea.Cmd {
	return func() tea.Msg {
		deleted, err := m.store.DeleteCategory(category)
		return categoryDeletedMsg{category: category, deleted: deleted, err: err}
	}
}

func (m *Model) renderHistory() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.analyze, m.keys.delete, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	view := fmt.Sprintf("%s\n\n%s", m.categoryList.View(), helpView)
	if m.status != "" {
		view = fmt.Sprintf("%s\n\n%s", m.status, view)
	}
	return view
}

func (m *Model) renderInput() string {
	title := styles.title.Render("Analyze a category")
	hint := styles.help.Render("enter to start, esc to go back")
	return fmt.Sprintf("%s\n%s\n\n%s", title, m.input.View(), hint)
}

func (m *Model) renderProgress() string {
	title := styles.title.Render(fmt.Sprintf("Analyzing '%s'", m.progress.Category))
	bar := renderBar(m.progress.Percent, 40)
	detail := fmt.Sprintf("%s %d%%\nPhase: %s\n%s", bar, m.progress.Percent, m.progress.Phase, m.progress.Message)

	helpKeys := []key.Binding{m.keys.cancel, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s", title, detail, helpView)
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	view := fmt.Sprintf("%s\n\n%s", m.fileList.View(), helpView)
	if m.status != "" {
		view = fmt.Sprintf("%s\n\n%s", m.status, view)
	}
	return view
}

func renderBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := width * percent / 100
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}
