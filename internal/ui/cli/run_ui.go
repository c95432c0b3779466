package cli

import (
	"assettree/internal/core/ports"
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

func runUI(ctx context.Context, svc ports.TreeService) error {
	p := tea.NewProgram(initialModel(svc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
