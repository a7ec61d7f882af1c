package service

import (
	"focusflow/internal/view"
)

// DashboardService builds the home page summary from a session's views.
type DashboardService struct{}

func NewDashboardService() *DashboardService {
	return &DashboardService{}
}

func (s *DashboardService) Build(ws *view.Workspace) Summary {
	return summarize(ws.Tasks.Items(), ws.Notes.Items(), ws.Journal.Items())
}
