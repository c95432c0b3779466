package cli

import (
	coreapp "assettree/internal/core/app"
	"assettree/internal/core/config"
	"fmt"
	"log/slog"
)

type appFactory interface {
	New(cfg *config.Config, paths config.ResolvedPaths) (*coreapp.App, error)
}

type coreAppFactory struct{}

func (coreAppFactory) New(cfg *config.Config, paths config.ResolvedPaths) (*coreapp.App, error) {
	return coreapp.NewWithDependencies(cfg, coreapp.Dependencies{
		Logger: slog.Default(),
		Paths:  &paths,
	})
}

func initializeApp(cfg *config.Config, paths config.ResolvedPaths, factory appFactory) (*coreapp.App, error) {
	if factory == nil {
		return nil, fmt.Errorf("app factory is required")
	}
	return factory.New(cfg, paths)
}
