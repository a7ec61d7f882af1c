package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"focusflow/internal/model"
)

// Lister reads every record of one kind owned by a user.
type Lister[T any] interface {
	ListByOwner(ctx context.Context, ownerID string) ([]T, error)
}

// DigestService builds the periodic summary sent to Telegram.
type DigestService struct {
	tasks   Lister[model.Task]
	notes   Lister[model.Note]
	journal Lister[model.JournalEntry]
}

func NewDigestService(tasks Lister[model.Task], notes Lister[model.Note], journal Lister[model.JournalEntry]) *DigestService {
	return &DigestService{tasks: tasks, notes: notes, journal: journal}
}

// DailySummary renders the user's digest as Telegram HTML.
func (s *DigestService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	tasks, err := s.tasks.ListByOwner(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list tasks: %w", err)
	}
	notes, err := s.notes.ListByOwner(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list notes: %w", err)
	}
	journal, err := s.journal.ListByOwner(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list journal: %w", err)
	}

	var open []model.Task
	for _, t := range tasks {
		if !t.Done {
			open = append(open, t)
		}
	}
	sum := summarize(tasks, notes, journal)

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatTask(task))
		}
	}

	builder.WriteString(fmt.Sprintf("\n📝 <b>Notes</b>: %d\n", sum.NoteCount))
	for _, title := range sum.RecentNotes {
		builder.WriteString(fmt.Sprintf("   • %s\n", html.EscapeString(title)))
	}

	builder.WriteString("\n📔 <b>Journal</b>\n")
	if sum.LatestJournal == nil {
		builder.WriteString("— no entries yet\n")
	} else {
		entry := sum.LatestJournal
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = "Untitled"
		}
		builder.WriteString(fmt.Sprintf("%s · %s\n", html.EscapeString(title), entry.Date.In(now.Location()).Format("2006-01-02")))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatTask(task model.Task) string {
	var sb strings.Builder
	sb.WriteString("🟢 ")
	sb.WriteString(html.EscapeString(strings.TrimSpace(task.Text)))
	if cat := strings.TrimSpace(task.Category); cat != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(cat)))
	}
	sb.WriteByte('\n')
	return sb.String()
}
