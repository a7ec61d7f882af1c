package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"focusflow/internal/logger"
	"focusflow/internal/model"
	"focusflow/internal/repository"
	"focusflow/internal/repository/repotest"
	"focusflow/internal/session"
	"focusflow/internal/storage"
	"focusflow/internal/view"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// flakyRevocations fails revocation checks while down is set.
type flakyRevocations struct {
	*session.MemoryRevocations
	down atomic.Bool
}

func (f *flakyRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	if f.down.Load() {
		return false, errors.New("redis unreachable")
	}
	return f.MemoryRevocations.IsRevoked(ctx, id)
}

type harness struct {
	router      *gin.Engine
	manager     *view.Manager
	revocations *flakyRevocations
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.NewDB(t)
	log := logger.Discard()

	users := repository.NewUserRepository(db)
	revocations := &flakyRevocations{MemoryRevocations: session.NewMemoryRevocations()}
	provider := session.NewProvider(users, session.Options{
		Secret:      []byte("test-secret"),
		TTL:         time.Hour,
		Revocations: revocations,
		BcryptCost:  bcrypt.MinCost,
	}, log)

	manager := view.NewManager(view.Stores{
		Tasks:      repository.NewTaskRepository(db),
		Notes:      repository.NewNoteRepository(db),
		Journal:    repository.NewJournalRepository(db),
		Categories: repository.NewCategoryRepository(db),
	}, log)
	t.Cleanup(provider.Subscribe(manager.Observe))

	blobs := storage.NewDiskStore(t.TempDir(), "http://localhost:8080")
	router := NewRouter(Deps{
		Sessions:   provider,
		Workspaces: manager,
		Attacher:   storage.NewAttacher(blobs, storage.Policy{MaxBytes: 1 << 20}, log),
		Blobs:      blobs,
		Profiles:   users,
		Log:        log,
	})
	return &harness{router: router, manager: manager, revocations: revocations}
}

func (h *harness) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) json(method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return h.do(method, path, r, "application/json", token)
}

func (h *harness) signup(t *testing.T, email string) string {
	t.Helper()
	w := h.json(http.MethodPost, "/api/session/signup", `{"email":"`+email+`","password":"secret123"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

type snapshot[T any] struct {
	Status string `json:"status"`
	Items  []T    `json:"items"`
	Error  string `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestGuardRedirectsAbsentIdentity(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/", "/tasks", "/notes", "/journal"} {
		w := h.do(http.MethodGet, path, nil, "", "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}

	w := h.do(http.MethodGet, "/api/tasks", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(http.MethodGet, "/tasks", nil, "", "not-a-token")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestGuardWaitsWhileIdentityUnknown(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")

	h.revocations.down.Store(true)
	w := h.do(http.MethodGet, "/tasks", nil, "", token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("Location"))

	w = h.do(http.MethodGet, "/api/tasks", nil, "", token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.revocations.down.Store(false)
	w = h.do(http.MethodGet, "/tasks", nil, "", token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWrongPasswordStaysOnLogin(t *testing.T) {
	h := newHarness(t)
	h.signup(t, "ada@example.com")
	h.manager.CloseAll()

	form := url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}}
	w := h.do(http.MethodPost, "/login", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid email or password")
	assert.Empty(t, w.Header().Get("Set-Cookie"))
	assert.Zero(t, h.manager.Len(), "no workspace is opened for a failed login")

	w = h.do(http.MethodGet, "/", nil, "", "")
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestFormLoginSetsCookie(t *testing.T) {
	h := newHarness(t)

	form := url.Values{"email": {"ada@example.com"}, "password": {"secret123"}}
	w := h.do(http.MethodPost, "/signup", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", "")
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ada@example.com")

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code, "signed-in users skip the login view")

	req = httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, h.manager.Len())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code, "revoked cookie no longer admits")
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")

	w := h.json(http.MethodPost, "/api/tasks", `{"text":"Buy milk","category":"Errands"}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decode[model.Task](t, w)
	assert.False(t, task.Done)

	w = h.json(http.MethodPost, "/api/tasks", `{"text":"   "}`, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.json(http.MethodGet, "/api/tasks?q=MILK&category=Errands", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[snapshot[model.Task]](t, w)
	assert.Equal(t, "ready", list.Status)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Buy milk", list.Items[0].Text)

	w = h.json(http.MethodPatch, "/api/tasks/"+task.ID, `{"done":true}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[model.Task](t, w).Done)

	w = h.json(http.MethodPost, "/api/tasks/reload", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	reloaded := decode[snapshot[model.Task]](t, w)
	require.Len(t, reloaded.Items, 1)
	assert.True(t, reloaded.Items[0].Done, "toggle survives a re-fetch")

	w = h.json(http.MethodPatch, "/api/tasks/missing", `{"done":true}`, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.json(http.MethodDelete, "/api/tasks/"+task.ID, "", token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.json(http.MethodPost, "/api/tasks/reload", "", token)
	assert.Empty(t, decode[snapshot[model.Task]](t, w).Items)
}

func TestOwnersAreIsolated(t *testing.T) {
	h := newHarness(t)
	ada := h.signup(t, "ada@example.com")
	bob := h.signup(t, "bob@example.com")

	w := h.json(http.MethodPost, "/api/tasks", `{"text":"private"}`, ada)
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[model.Task](t, w)

	w = h.json(http.MethodGet, "/api/tasks", "", bob)
	assert.Empty(t, decode[snapshot[model.Task]](t, w).Items)

	w = h.json(http.MethodDelete, "/api/tasks/"+task.ID, "", bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (h *harness) login(t *testing.T, email string) string {
	t.Helper()
	w := h.json(http.MethodPost, "/api/session/login", `{"email":"`+email+`","password":"secret123"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](t, w).Token
}

func TestSecondSessionSeesWritesOnReopen(t *testing.T) {
	h := newHarness(t)
	phone := h.signup(t, "ada@example.com")
	laptop := h.login(t, "ada@example.com")
	require.NotEqual(t, phone, laptop)

	w := h.json(http.MethodGet, "/api/tasks", "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[snapshot[model.Task]](t, w).Items)

	w = h.json(http.MethodPost, "/api/tasks", `{"text":"Buy milk"}`, phone)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.json(http.MethodPost, "/api/categories", `{"name":"Errands"}`, phone)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.json(http.MethodGet, "/api/tasks", "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[snapshot[model.Task]](t, w)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Buy milk", list.Items[0].Text)

	w = h.do(http.MethodGet, "/tasks", nil, "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Buy milk")
	assert.Contains(t, w.Body.String(), "Errands", "the category filter reloads too")

	w = h.json(http.MethodPost, "/api/tasks", `{"text":"Call mum"}`, phone)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.do(http.MethodGet, "/", nil, "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Call mum")

	w = h.json(http.MethodGet, "/api/categories", "", laptop)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[snapshot[model.Category]](t, w).Items, 1)
}

func TestCategories(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")

	w := h.json(http.MethodPost, "/api/categories", `{"name":"Work"}`, token)
	require.Equal(t, http.StatusCreated, w.Code)
	w = h.json(http.MethodPost, "/api/tasks", `{"text":"Report","category":"Work"}`, token)
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.json(http.MethodDelete, "/api/categories/Work", "", token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.json(http.MethodDelete, "/api/categories/Work", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.json(http.MethodGet, "/api/categories", "", token)
	assert.Empty(t, decode[snapshot[model.Category]](t, w).Items)

	w = h.json(http.MethodGet, "/api/tasks?category=Work", "", token)
	assert.Len(t, decode[snapshot[model.Task]](t, w).Items, 1, "tasks keep the deleted tag")
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestNoteWithAttachments(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")
	other := h.signup(t, "bob@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "Trip", "content": "packing list"}, map[string]string{"list.txt": "socks"})
	w := h.do(http.MethodPost, "/api/notes", body, ct, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := decode[model.Note](t, w)
	require.Len(t, note.Files, 1)
	assert.Equal(t, "list.txt", note.Files[0].Name)

	w = h.do(http.MethodGet, "/files/"+note.Files[0].Key, nil, "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "socks", w.Body.String())

	w = h.do(http.MethodGet, "/files/"+note.Files[0].Key, nil, "", other)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body, ct = multipartBody(t, nil, map[string]string{"more.txt": "boots"})
	w = h.do(http.MethodPost, "/api/notes/"+note.ID+"/files", body, ct, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode[model.Note](t, w).Files, 2)

	body, ct = multipartBody(t, nil, map[string]string{"tool.exe": "MZ"})
	w = h.do(http.MethodPost, "/api/notes/"+note.ID+"/files", body, ct, token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "attach files")

	w = h.json(http.MethodDelete, "/api/notes/"+note.ID+"/files/0", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[model.Note](t, w).Files
	require.Len(t, files, 1)
	assert.Equal(t, "more.txt", files[0].Name)

	w = h.json(http.MethodDelete, "/api/notes/"+note.ID+"/files/5", "", token)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodGet, "/files/"+note.Files[0].Key, nil, "", token)
	assert.Equal(t, http.StatusOK, w.Code, "detaching keeps the blob")
}

func TestFileNamesWithDots(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")
	other := h.signup(t, "bob@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "Report"}, map[string]string{"report..v2.txt": "draft"})
	w := h.do(http.MethodPost, "/api/notes", body, ct, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := decode[model.Note](t, w)
	require.Len(t, note.Files, 1)
	key := note.Files[0].Key
	assert.True(t, strings.HasSuffix(key, "_0_report..v2.txt"), key)

	w = h.do(http.MethodGet, "/files/"+key, nil, "", token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "draft", w.Body.String())

	otherBody, otherCT := multipartBody(t, map[string]string{"title": "Secret"}, map[string]string{"secret.txt": "bob only"})
	w = h.do(http.MethodPost, "/api/notes", otherBody, otherCT, other)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	otherKey := decode[model.Note](t, w).Files[0].Key
	owner := strings.SplitN(key, "/", 2)[0]

	w = h.do(http.MethodGet, "/files/"+owner+"/../"+otherKey, nil, "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOwnedKey(t *testing.T) {
	assert.True(t, ownedKey("u1/notes/1_0_report..v2.txt", "u1"))
	assert.True(t, ownedKey("u1/notes/1_0_..hidden", "u1"))
	assert.False(t, ownedKey("u1/../u2/notes/1_0_a.txt", "u1"))
	assert.False(t, ownedKey("u1/notes/./a.txt", "u1"))
	assert.False(t, ownedKey("u1//a.txt", "u1"))
	assert.False(t, ownedKey("u2/notes/a.txt", "u1"))
	assert.False(t, ownedKey("u1/a.txt", ""))
}

func TestJournalPageFilters(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "Hike", "content": "mountain day", "date": "2024-03-10"}, nil)
	w := h.do(http.MethodPost, "/api/journal", body, ct, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = h.json(http.MethodPost, "/api/journal", `{"title":"Rest","content":"sofa"}`, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/journal?q=mountain", nil, "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hike")
	assert.NotContains(t, w.Body.String(), "Rest")
	assert.Contains(t, w.Body.String(), "Mar 10, 2024")
}

func TestProfileAndMe(t *testing.T) {
	h := newHarness(t)
	token := h.signup(t, "ada@example.com")

	w := h.json(http.MethodGet, "/api/me", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[session.Identity](t, w)
	assert.Equal(t, session.StatusPresent, me.Status)
	assert.Equal(t, "ada@example.com", me.User.Email)

	w = h.json(http.MethodPut, "/api/profile/telegram", `{"chat_id":4242}`, token)
	assert.Equal(t, http.StatusOK, w.Code)

	other := h.signup(t, "bob@example.com")
	w = h.json(http.MethodPut, "/api/profile/telegram", `{"chat_id":4242}`, other)
	assert.Equal(t, http.StatusConflict, w.Code, "a chat linked to ada cannot move to bob")
	w = h.json(http.MethodPut, "/api/profile/telegram", `{"chat_id":5151}`, other)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.json(http.MethodPost, "/api/session/logout", "", token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.json(http.MethodGet, "/api/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/healthz", nil, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "focusflow_http_requests_total")
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractToken(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", extractToken(req))

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", extractToken(req))
}
