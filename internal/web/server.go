// Package web is the HTTP surface: auth views, the navigation shell and
// the JSON API behind it.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"focusflow/internal/service"
	"focusflow/internal/session"
	"focusflow/internal/storage"
	"focusflow/internal/view"
)

// CookieName carries the session token for browser clients.
const CookieName = "focusflow_session"

//go:embed templates/*.html
var templateFS embed.FS

// Sessions is the session provider surface the handlers use.
type Sessions interface {
	Signup(ctx context.Context, email, password string) (*session.Session, error)
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) session.Identity
}

// ProfileStore updates per-user settings.
type ProfileStore interface {
	SetTelegramChatID(ctx context.Context, userID string, chatID *int64) error
}

// Deps is everything the router needs.
type Deps struct {
	Sessions   Sessions
	Workspaces *view.Manager
	Attacher   *storage.Attacher
	// Blobs serves /files when the blob store is local. Nil disables the route.
	Blobs     storage.Opener
	Profiles  ProfileStore
	Dashboard *service.DashboardService
	Metrics   *Metrics
	Log       *logrus.Entry

	SecureCookies bool
	CookieTTL     time.Duration
	MaxUpload     int64
}

type server struct {
	Deps
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Metrics == nil {
		d.Metrics = NewMetrics()
	}
	if d.Dashboard == nil {
		d.Dashboard = service.NewDashboardService()
	}
	if d.MaxUpload <= 0 {
		d.MaxUpload = 10 << 20
	}
	s := &server{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log), d.Metrics.Middleware(), s.resolveIdentity())
	r.MaxMultipartMemory = 32 << 20
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	r.GET("/login", s.loginPage)
	r.POST("/login", s.loginSubmit)
	r.GET("/signup", s.signupPage)
	r.POST("/signup", s.signupSubmit)
	r.POST("/logout", s.logoutSubmit)

	pages := r.Group("/", pageGuard())
	pages.GET("/", s.homePage)
	pages.GET("/tasks", s.tasksPage)
	pages.GET("/notes", s.notesPage)
	pages.GET("/journal", s.journalPage)

	r.POST("/api/session/signup", s.apiSignup)
	r.POST("/api/session/login", s.apiLogin)

	api := r.Group("/api", apiGuard())
	api.POST("/session/logout", s.apiLogout)
	api.GET("/me", s.me)
	api.PUT("/profile/telegram", s.setTelegram)

	api.GET("/categories", s.listCategories)
	api.POST("/categories", s.addCategory)
	api.DELETE("/categories/:name", s.deleteCategory)

	registerKind(api.Group("/tasks"), s, taskKind)
	registerKind(api.Group("/notes"), s, noteKind)
	registerKind(api.Group("/journal"), s, journalKind)

	if d.Blobs != nil {
		r.GET("/files/*key", apiGuard(), s.serveFile)
	}
	return r
}

// workspace returns the caller's workspace. Guards run first, so the
// identity is present.
// mount re-queries the given views the way opening a screen does. A failed
// fetch keeps the last loaded list and surfaces through the snapshot error.
func (s *server) mount(c *gin.Context, fetches ...func(context.Context) error) {
	var g errgroup.Group
	for _, fetch := range fetches {
		fetch := fetch
		g.Go(func() error { return fetch(c.Request.Context()) })
	}
	if err := g.Wait(); err != nil {
		s.Log.WithError(err).WithField("path", c.FullPath()).Warn("refresh on mount failed")
	}
}

func (s *server) workspace(c *gin.Context) (*view.Workspace, bool) {
	ws, err := s.Workspaces.Workspace(c.Request.Context(), identity(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	return ws, true
}
