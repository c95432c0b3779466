package cli

import (
	"fmt"
	"strings"
)

func renderHelp(m model) string {
	keys := "Keys: enter open | / filter | f format | r refresh | p push | tab panel | q quit"
	if m.mode == panelRender {
		keys = "Keys: up/down scroll | f format | r refresh | p push | esc back | q quit"
	}
	return statusStyle.Render(keys)
}

func renderTreePanel(m model) string {
	if m.renderErr != "" {
		return errorStyle.Render("Render error: " + m.renderErr)
	}
	lines := []string{fmt.Sprintf("Session: %s::%s", m.selected.TreeName, m.selected.WorkbookName)}
	if t := m.rendered.Tree; t != nil {
		lines = append(lines, statusStyle.Render(fmt.Sprintf("  %d nodes | revision %d | %s%s",
			t.Nodes, t.Revision, m.rendered.Format, cachedSuffix(m.rendered.Cached))))
	}
	return strings.Join(lines, "\n") + "\n\n" + m.view.View()
}

func cachedSuffix(cached bool) string {
	if cached {
		return " (cached)"
	}
	return ""
}
