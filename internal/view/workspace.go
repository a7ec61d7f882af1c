package view

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"focusflow/internal/model"
)

// Stores bundles the per-kind persistence a workspace is built on.
type Stores struct {
	Tasks      Store[model.Task]
	Notes      Store[model.Note]
	Journal    Store[model.JournalEntry]
	Categories Store[model.Category]
}

// Workspace is one signed-in session's set of views.
type Workspace struct {
	SessionID string
	OwnerID   string

	Tasks      *RecordView[model.Task]
	Notes      *RecordView[model.Note]
	Journal    *RecordView[model.JournalEntry]
	Categories *CategoryRegistry
}

func NewWorkspace(sessionID, ownerID string, stores Stores, log *logrus.Entry) *Workspace {
	log = log.WithField("session_id", sessionID)
	return &Workspace{
		SessionID:  sessionID,
		OwnerID:    ownerID,
		Tasks:      NewRecordView("tasks", ownerID, stores.Tasks, log),
		Notes:      NewRecordView("notes", ownerID, stores.Notes, log),
		Journal:    NewRecordView("journal", ownerID, stores.Journal, log),
		Categories: NewCategoryRegistry(ownerID, stores.Categories, log),
	}
}

// FetchAll loads every view concurrently. Each view keeps its own failure;
// the first one is returned.
func (w *Workspace) FetchAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return w.Tasks.Fetch(ctx) })
	g.Go(func() error { return w.Notes.Fetch(ctx) })
	g.Go(func() error { return w.Journal.Fetch(ctx) })
	g.Go(func() error { return w.Categories.Fetch(ctx) })
	return g.Wait()
}

func (w *Workspace) Close() {
	w.Tasks.Close()
	w.Notes.Close()
	w.Journal.Close()
	w.Categories.Close()
}
