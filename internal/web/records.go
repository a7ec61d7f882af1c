package web

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"focusflow/internal/apperr"
	"focusflow/internal/model"
	"focusflow/internal/repository"
	"focusflow/internal/storage"
	"focusflow/internal/view"
)

// recordKind describes how one record kind is decoded and patched.
type recordKind[T model.Record] struct {
	name string
	view func(*view.Workspace) *view.RecordView[T]
	// decode builds a new record from the request body.
	decode func(c *gin.Context) (T, error)
	// patch turns the request body into a mutation.
	patch func(c *gin.Context) (func(*T), error)
	// files exposes the record's attachments; nil when the kind has none.
	files func(*T) *model.AttachedFiles
}

func registerKind[T model.Record](g *gin.RouterGroup, s *server, k recordKind[T]) {
	g.GET("", func(c *gin.Context) { listRecords(c, s, k) })
	g.POST("", func(c *gin.Context) { createRecord(c, s, k) })
	g.POST("/reload", func(c *gin.Context) { reloadRecords(c, s, k) })
	g.PATCH("/:id", func(c *gin.Context) { updateRecord(c, s, k) })
	g.DELETE("/:id", func(c *gin.Context) { deleteRecord(c, s, k) })
	if k.files != nil {
		g.POST("/:id/files", func(c *gin.Context) { attachFiles(c, s, k) })
		g.DELETE("/:id/files/:index", func(c *gin.Context) { detachFile(c, s, k) })
	}
}

func listRecords[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	v := k.view(ws)
	s.mount(c, v.Fetch)
	c.JSON(http.StatusOK, v.Snapshot(c.Query("q"), c.Query("category")))
}

func reloadRecords[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	v := k.view(ws)
	if err := v.Fetch(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Snapshot("", ""))
}

func createRecord[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.limitBody(c)
	rec, err := k.decode(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := rec.Validate(); err != nil {
		respondError(c, err)
		return
	}

	var uploaded model.AttachedFiles
	if k.files != nil {
		uploads, err := formUploads(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		if uploaded, err = s.Attacher.Attach(c.Request.Context(), ws.OwnerID, k.name, uploads); err != nil {
			respondError(c, err)
			return
		}
		*k.files(&rec) = uploaded
	}

	created, err := k.view(ws).Create(c.Request.Context(), rec)
	if err != nil {
		if len(uploaded) > 0 {
			s.Attacher.Discard(uploaded)
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func updateRecord[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	mutate, err := k.patch(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	updated, err := k.view(ws).Update(c.Request.Context(), c.Param("id"), mutate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func deleteRecord[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	if err := k.view(ws).Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// attachFiles uploads a batch and appends the descriptors to the record.
// A failed batch leaves the record untouched.
func attachFiles[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	v := k.view(ws)
	id := c.Param("id")
	if _, ok := v.Get(id); !ok {
		respondError(c, apperr.NotFound("attach files", repository.ErrNotFound))
		return
	}

	s.limitBody(c)
	uploads, err := formUploads(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if len(uploads) == 0 {
		respondError(c, apperr.Invalid("attach files", "no files in request"))
		return
	}
	added, err := s.Attacher.Attach(c.Request.Context(), ws.OwnerID, k.name, uploads)
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := v.Update(c.Request.Context(), id, func(rec *T) {
		files := k.files(rec)
		*files = append(append(model.AttachedFiles{}, *files...), added...)
	})
	if err != nil {
		s.Attacher.Discard(added)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// detachFile drops one descriptor. The blob itself is kept.
func detachFile[T model.Record](c *gin.Context, s *server, k recordKind[T]) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	v := k.view(ws)
	id := c.Param("id")
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, err)
		return
	}

	current, ok := v.Get(id)
	if !ok {
		respondError(c, apperr.NotFound("detach file", repository.ErrNotFound))
		return
	}
	remaining, err := k.files(&current).Without(index)
	if err != nil {
		respondError(c, apperr.Validation("detach file", err))
		return
	}

	updated, err := v.Update(c.Request.Context(), id, func(rec *T) { *k.files(rec) = remaining })
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// maxBatchFiles bounds a multipart body to this many files of the
// per-file limit.
const maxBatchFiles = 10

func (s *server) limitBody(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.MaxUpload*maxBatchFiles)
	}
}

// formUploads collects the "files" parts of a multipart body. Other
// content types carry no files.
func formUploads(c *gin.Context) ([]storage.Upload, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	headers := form.File["files"]
	uploads := make([]storage.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, uploadFromHeader(fh))
	}
	return uploads, nil
}

func uploadFromHeader(fh *multipart.FileHeader) storage.Upload {
	return storage.Upload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	}
}

type taskBody struct {
	Text     *string `form:"text" json:"text"`
	Done     *bool   `form:"done" json:"done"`
	Category *string `form:"category" json:"category"`
}

type noteBody struct {
	Title    *string `form:"title" json:"title"`
	Content  *string `form:"content" json:"content"`
	Category *string `form:"category" json:"category"`
}

type journalBody struct {
	Title    *string    `form:"title" json:"title"`
	Content  *string    `form:"content" json:"content"`
	Category *string    `form:"category" json:"category"`
	Date     *time.Time `form:"date" time_format:"2006-01-02" json:"date"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

var taskKind = recordKind[model.Task]{
	name: "tasks",
	view: func(ws *view.Workspace) *view.RecordView[model.Task] { return ws.Tasks },
	decode: func(c *gin.Context) (model.Task, error) {
		var b taskBody
		if err := c.ShouldBind(&b); err != nil {
			return model.Task{}, err
		}
		t := model.Task{Text: str(b.Text), Category: str(b.Category)}
		if b.Done != nil {
			t.Done = *b.Done
		}
		return t, nil
	},
	patch: func(c *gin.Context) (func(*model.Task), error) {
		var b taskBody
		if err := c.ShouldBind(&b); err != nil {
			return nil, err
		}
		return func(t *model.Task) {
			if b.Text != nil {
				t.Text = *b.Text
			}
			if b.Done != nil {
				t.Done = *b.Done
			}
			if b.Category != nil {
				t.Category = *b.Category
			}
		}, nil
	},
}

var noteKind = recordKind[model.Note]{
	name: "notes",
	view: func(ws *view.Workspace) *view.RecordView[model.Note] { return ws.Notes },
	decode: func(c *gin.Context) (model.Note, error) {
		var b noteBody
		if err := c.ShouldBind(&b); err != nil {
			return model.Note{}, err
		}
		return model.Note{Title: str(b.Title), Content: str(b.Content), Category: str(b.Category)}, nil
	},
	patch: func(c *gin.Context) (func(*model.Note), error) {
		var b noteBody
		if err := c.ShouldBind(&b); err != nil {
			return nil, err
		}
		return func(n *model.Note) {
			if b.Title != nil {
				n.Title = *b.Title
			}
			if b.Content != nil {
				n.Content = *b.Content
			}
			if b.Category != nil {
				n.Category = *b.Category
			}
		}, nil
	},
	files: func(n *model.Note) *model.AttachedFiles { return &n.Files },
}

var journalKind = recordKind[model.JournalEntry]{
	name: "journal",
	view: func(ws *view.Workspace) *view.RecordView[model.JournalEntry] { return ws.Journal },
	decode: func(c *gin.Context) (model.JournalEntry, error) {
		var b journalBody
		if err := c.ShouldBind(&b); err != nil {
			return model.JournalEntry{}, err
		}
		j := model.JournalEntry{Title: str(b.Title), Content: str(b.Content), Category: str(b.Category)}
		if b.Date != nil {
			j.Date = *b.Date
		}
		return j, nil
	},
	patch: func(c *gin.Context) (func(*model.JournalEntry), error) {
		var b journalBody
		if err := c.ShouldBind(&b); err != nil {
			return nil, err
		}
		return func(j *model.JournalEntry) {
			if b.Title != nil {
				j.Title = *b.Title
			}
			if b.Content != nil {
				j.Content = *b.Content
			}
			if b.Category != nil {
				j.Category = *b.Category
			}
			if b.Date != nil {
				j.Date = *b.Date
			}
		}, nil
	},
	files: func(j *model.JournalEntry) *model.AttachedFiles { return &j.Files },
}
