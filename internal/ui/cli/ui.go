package cli

import (
	"assettree/internal/core/ports"
	"assettree/internal/ui/report/formats"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type panelMode int

const (
	panelTrees panelMode = iota
	panelRender
)

type model struct {
	svc        ports.TreeService
	treeList   list.Model
	view       viewport.Model
	mode       panelMode
	trees      []ports.TreeSummary
	formats    []formats.Format
	formatIdx  int
	lastUpdate time.Time

	selected    ports.SessionRef
	hasSelected bool
	rendered    ports.RenderResult
	renderErr   string
	status      string
}

type treesMsg struct {
	trees []ports.TreeSummary
	err   error
}

type renderMsg struct {
	ref    ports.SessionRef
	result ports.RenderResult
	err    error
}

type pushMsg struct {
	report ports.PushReport
	err    error
}

type tickMsg time.Time

func (m model) Init() tea.Cmd {
	return tea.Batch(loadTreesCmd(m.svc), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 6
		if height < 5 {
			height = 5
		}
		m.treeList.SetSize(width, height)
		m.view.Width = width
		m.view.Height = height
	case tickMsg:
		return m, tea.Batch(loadTreesCmd(m.svc), tickCmd())
	case treesMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("List failed: " + msg.err.Error())
			return m, nil
		}
		m.trees = msg.trees
		m.lastUpdate = time.Now()
		items := make([]list.Item, 0, len(m.trees))
		for _, t := range m.trees {
			items = append(items, item{
				title: t.TreeName + "::" + t.WorkbookName,
				desc:  fmt.Sprintf("nodes=%d revision=%d updated=%s", t.Nodes, t.Revision, t.UpdatedAt.Format("15:04:05")),
			})
		}
		cmd := m.treeList.SetItems(items)
		if m.hasSelected && m.mode == panelRender {
			return m, tea.Batch(cmd, renderCmd(m.svc, m.selected, m.format()))
		}
		return m, cmd
	case renderMsg:
		if msg.ref != m.selected {
			return m, nil
		}
		if msg.err != nil {
			m.renderErr = msg.err.Error()
			return m, nil
		}
		m.renderErr = ""
		if m.rendered.Tree != nil && msg.result.Tree != nil && m.rendered.Tree.Revision == msg.result.Tree.Revision &&
			m.rendered.Format == msg.result.Format {
			return m, nil
		}
		m.rendered = msg.result
		content := msg.result.Content
		if !msg.result.Found {
			content = statusStyle.Render("Session no longer exists.")
		}
		m.view.SetContent(content)
		return m, nil
	case pushMsg:
		if msg.err != nil {
			m.status = errorStyle.Render("Push failed: " + msg.err.Error())
		} else if len(msg.report.Failed) > 0 {
			m.status = errorStyle.Render(fmt.Sprintf("Pushed %d/%d items, %d rejected (first: %s)",
				msg.report.Succeeded, msg.report.Submitted, len(msg.report.Failed), msg.report.Failed[0].Path))
		} else {
			m.status = successStyle.Render(fmt.Sprintf("Pushed %d items to the remote store", msg.report.Succeeded))
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.mode == panelTrees {
		m.treeList, cmd = m.treeList.Update(msg)
	} else {
		m.view, cmd = m.view.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d trees | format: %s",
		m.lastUpdate.Format("15:04:05"), len(m.trees), m.format()))
	header := fmt.Sprintf("%s\n%s\n", titleStyle("Asset Tree Explorer"), status)

	body := m.treeList.View()
	if m.mode == panelRender {
		body = renderTreePanel(m)
	}
	if m.status != "" {
		body += "\n\n" + m.status
	}
	return docStyle.Render(header + "\n" + renderHelp(m) + "\n\n" + body)
}

func (m model) format() formats.Format {
	if len(m.formats) == 0 {
		return formats.FormatText
	}
	return m.formats[m.formatIdx%len(m.formats)]
}

func initialModel(svc ports.TreeService) model {
	treeList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	treeList.Title = "Sessions"
	treeList.SetShowStatusBar(false)
	treeList.SetFilteringEnabled(true)

	return model{
		svc:        svc,
		treeList:   treeList,
		view:       viewport.New(0, 0),
		mode:       panelTrees,
		formats:    formats.All(),
		lastUpdate: time.Now(),
	}
}
