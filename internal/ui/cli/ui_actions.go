package cli

import (
	"assettree/internal/core/ports"
	"assettree/internal/ui/report/formats"
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	if m.mode == panelTrees && m.treeList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.treeList, cmd = m.treeList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.mode == panelTrees && m.hasSelected {
			m.mode = panelRender
		} else {
			m.mode = panelTrees
		}
		return m, nil
	case "r":
		cmds := []tea.Cmd{loadTreesCmd(m.svc)}
		if m.hasSelected {
			cmds = append(cmds, renderCmd(m.svc, m.selected, m.format()))
		}
		return m, tea.Batch(cmds...)
	case "f":
		m.formatIdx = (m.formatIdx + 1) % len(m.formats)
		if !m.hasSelected {
			return m, nil
		}
		return m, renderCmd(m.svc, m.selected, m.format())
	case "p":
		if !m.hasSelected {
			return m, nil
		}
		m.status = statusStyle.Render("Pushing " + m.selected.TreeName + "::" + m.selected.WorkbookName + "...")
		return m, pushCmd(m.svc, m.selected)
	}

	if m.mode == panelRender {
		switch msg.String() {
		case "esc", "backspace":
			m.mode = panelTrees
			return m, nil
		}
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		return m, cmd
	}

	if msg.String() == "enter" {
		return openSelected(m)
	}
	var cmd tea.Cmd
	m.treeList, cmd = m.treeList.Update(msg)
	return m, cmd
}

func openSelected(m model) (model, tea.Cmd) {
	if len(m.trees) == 0 {
		return m, nil
	}
	selected, ok := m.treeList.SelectedItem().(item)
	if !ok {
		return m, nil
	}
	for _, t := range m.trees {
		if t.TreeName+"::"+t.WorkbookName != selected.title {
			continue
		}
		m.selected = ports.SessionRef{TreeName: t.TreeName, WorkbookName: t.WorkbookName}
		m.hasSelected = true
		m.rendered = ports.RenderResult{}
		m.renderErr = ""
		m.mode = panelRender
		m.view.SetContent(statusStyle.Render("Rendering..."))
		m.view.GotoTop()
		return m, renderCmd(m.svc, m.selected, m.format())
	}
	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadTreesCmd(svc ports.TreeService) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return treesMsg{}
		}
		trees, err := svc.List(context.Background())
		return treesMsg{trees: trees, err: err}
	}
}

func renderCmd(svc ports.TreeService, ref ports.SessionRef, format formats.Format) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return renderMsg{ref: ref}
		}
		res, err := svc.Search(context.Background(), ports.RenderRequest{SessionRef: ref, Format: string(format)})
		return renderMsg{ref: ref, result: res, err: err}
	}
}

func pushCmd(svc ports.TreeService, ref ports.SessionRef) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return pushMsg{}
		}
		report, err := svc.Push(context.Background(), ref)
		return pushMsg{report: report, err: err}
	}
}
