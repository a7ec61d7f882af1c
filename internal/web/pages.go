package web

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"focusflow/internal/model"
	"focusflow/internal/view"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"eq":   func(a, b string) bool { return a == b },
	"lines": func(s string) []string {
		return strings.Split(strings.TrimSpace(s), "\n")
	},
}

type pageData struct {
	Title      string
	Active     string
	User       *model.User
	Query      string
	Category   string
	Categories []string
	Status     view.Status
	Error      string
	Items      any
	Summary    any
}

func (s *server) page(c *gin.Context, ws *view.Workspace, active, title string) pageData {
	return pageData{
		Title:      title,
		Active:     active,
		User:       identity(c).User,
		Query:      c.Query("q"),
		Category:   c.Query("category"),
		Categories: ws.Categories.Names(),
	}
}

func (s *server) homePage(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.mount(c, ws.FetchAll)
	data := s.page(c, ws, "home", "Home")
	data.Summary = s.Dashboard.Build(ws)
	c.HTML(http.StatusOK, "home.html", data)
}

func (s *server) tasksPage(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.mount(c, ws.Tasks.Fetch, ws.Categories.Fetch)
	renderList(c, s.page(c, ws, "tasks", "Tasks"), ws.Tasks)
}

func (s *server) notesPage(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.mount(c, ws.Notes.Fetch, ws.Categories.Fetch)
	renderList(c, s.page(c, ws, "notes", "Notes"), ws.Notes)
}

func (s *server) journalPage(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.mount(c, ws.Journal.Fetch, ws.Categories.Fetch)
	renderList(c, s.page(c, ws, "journal", "Journal"), ws.Journal)
}

func renderList[T model.Record](c *gin.Context, data pageData, v *view.RecordView[T]) {
	snap := v.Snapshot(data.Query, data.Category)
	data.Status = snap.Status
	data.Error = snap.Error
	data.Items = snap.Items
	c.HTML(http.StatusOK, data.Active+".html", data)
}
