package service

import (
	"sort"

	"focusflow/internal/model"
)

const (
	taskPreviewSize = 3
	notePreviewSize = 2
)

// Summary is the condensed state of one user's records.
type Summary struct {
	OpenTasks     int                 `json:"open_tasks"`
	TaskPreview   []model.Task        `json:"task_preview"`
	NoteCount     int                 `json:"note_count"`
	RecentNotes   []string            `json:"recent_notes"`
	LatestJournal *model.JournalEntry `json:"latest_journal,omitempty"`
}

func summarize(tasks []model.Task, notes []model.Note, journal []model.JournalEntry) Summary {
	s := Summary{
		TaskPreview: []model.Task{},
		NoteCount:   len(notes),
		RecentNotes: []string{},
	}

	for _, t := range tasks {
		if t.Done {
			continue
		}
		s.OpenTasks++
		if len(s.TaskPreview) < taskPreviewSize {
			s.TaskPreview = append(s.TaskPreview, t)
		}
	}

	recent := append([]model.Note{}, notes...)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	for i := 0; i < len(recent) && i < notePreviewSize; i++ {
		s.RecentNotes = append(s.RecentNotes, noteTitle(recent[i]))
	}

	for i := range journal {
		if s.LatestJournal == nil || journal[i].Date.After(s.LatestJournal.Date) {
			entry := journal[i]
			s.LatestJournal = &entry
		}
	}
	return s
}

func noteTitle(n model.Note) string {
	if n.Title != "" {
		return n.Title
	}
	return "Untitled"
}
