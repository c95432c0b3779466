package app

import (
	"assettree/internal/shared/util"
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	status.Components["sessions"] = fmt.Sprintf("ok (%d active)", s.app.sessions.Len())
	status.Components["templates"] = fmt.Sprintf("ok (%d loaded)", len(s.app.templates.List()))

	if s.app.ledger != nil {
		if _, err := s.app.ledger.ListPushes("", "", 1); err != nil {
			status.Status = "degraded"
			status.Components["ledger"] = "error: " + err.Error()
		} else {
			status.Components["ledger"] = "ok"
		}
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["ledger"] = "missing but enabled in config"
	} else {
		status.Components["ledger"] = "disabled"
	}
	if s.app.writeQueue != nil {
		status.Components["ledger_queue"] = fmt.Sprintf("ok (%d pending)", s.app.writeQueue.Len())
	}

	if s.app.remote == nil {
		status.Status = "degraded"
		status.Components["remote"] = "missing"
	} else {
		status.Components["remote"] = "ok (" + s.app.Config.Remote.Mode + ")"
	}

	mem := util.ReadMemory()
	status.Components["heap_mb"] = fmt.Sprintf("%d", mem.HeapAllocMB)
	status.Components["goroutines"] = fmt.Sprintf("%d", mem.Goroutines)
	return status
}
