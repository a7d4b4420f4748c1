package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"atelier/internal/model"
	"atelier/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	srv *Server
	h   http.Handler
	st  store.Store
	// cookies carries the session cookie between requests.
	cookies []*http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0", Dir: dir, Workspace: "test", ActorID: "act-test"})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, h: srv.Handler(), st: store.Store{Dir: dir}}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	for _, c := range e.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	if cs := rr.Result().Cookies(); len(cs) > 0 {
		e.cookies = cs
	}
	return rr
}

func (e *testEnv) create(t *testing.T, resource string, fields map[string]string) model.Record {
	t.Helper()
	r, err := e.st.CreateRecord(context.Background(), "act-test", resource, fields)
	require.NoError(t, err)
	return r
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok\n", rr.Body.String())
}

func TestDuplicateEndpoint_Created(t *testing.T) {
	env := newTestEnv(t)
	src := env.create(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	rr := env.do(t, http.MethodPost, "/admin/tags/1/duplicate", nil, map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEqual(t, src.ID, body.Data.ID)

	copyRec, err := env.st.GetRecord(context.Background(), "tags", body.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, "print-copy", copyRec.Field("slug"))
}

func TestDuplicateEndpoint_ValidationProblem(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": strings.Repeat("x", 58), "slug": "long"})

	rr := env.do(t, http.MethodPost, "/admin/tags/1/duplicate", nil, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, problemContentType, rr.Header().Get("Content-Type"))

	var p struct {
		Type   string            `json:"type"`
		Status int               `json:"status"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, "validation_error", p.Type)
	assert.Equal(t, http.StatusUnprocessableEntity, p.Status)
	assert.Equal(t, map[string]string{"name": "Name must be at most 60 characters"}, p.Errors)
}

func TestDuplicateEndpoint_NotFound(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodPost, "/admin/tags/99/duplicate", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"not_found"`)
}

func TestDestroy(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "brands", map[string]string{"name": "Acme", "slug": "acme"})

	rr := env.do(t, http.MethodDelete, "/admin/brands/1", nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/admin/brands/1", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUnknownResourceIsNotRouted(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/admin/widgets", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateForm(t *testing.T) {
	env := newTestEnv(t)
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	rr := env.do(t, http.MethodPost, "/admin/theme-colors", strings.NewReader("name=Ink&hex=%231b1f23&active=true"), form)
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Equal(t, "/admin/theme-colors", rr.Header().Get("Location"))

	page, err := env.st.ListRecords(context.Background(), "theme-colors", store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "true", page.Records[0].Field("active"))

	rr = env.do(t, http.MethodPost, "/admin/theme-colors", strings.NewReader("name=&hex=blue"), form)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Name is required")
	assert.Contains(t, rr.Body.String(), `value="blue"`)
}

func TestUpdateForm_UncheckedBoolClears(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "theme-colors", map[string]string{"name": "Ink", "hex": "#000000", "active": "true"})
	form := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	rr := env.do(t, http.MethodPost, "/admin/theme-colors/1", strings.NewReader("name=Ink&hex=%23000000"), form)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rec, err := env.st.GetRecord(context.Background(), "theme-colors", 1)
	require.NoError(t, err)
	assert.Equal(t, "false", rec.Field("active"))
}

func TestListAndFilter(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "Branding", "slug": "branding"})
	env.create(t, "tags", map[string]string{"name": "Motion", "slug": "motion"})

	rr := env.do(t, http.MethodGet, "/admin/tags", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Branding")
	assert.Contains(t, rr.Body.String(), "Motion")
	assert.Contains(t, rr.Body.String(), `id="duplicate-modals"`)

	rr = env.do(t, http.MethodGet, "/admin/tags?q=mot", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Branding")
	assert.Contains(t, rr.Body.String(), "Motion")
}

func TestEditPageRendersMarkdownPreview(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "posts", map[string]string{"title": "Hello", "slug": "hello", "body": "Some **bold** text"})

	rr := env.do(t, http.MethodGet, "/admin/posts/1/edit", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<strong>bold</strong>")

	rr = env.do(t, http.MethodGet, "/admin/posts/2/edit", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMove_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "A", "slug": "a"})
	env.create(t, "tags", map[string]string{"name": "B", "slug": "b"})

	rr := env.do(t, http.MethodPost, "/admin/tags/2/move?before=1", nil, map[string]string{"Accept": "application/json"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	page, err := env.st.ListRecords(context.Background(), "tags", store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, "B", page.Records[0].Title)

	rr = env.do(t, http.MethodPost, "/admin/tags/2/move", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDashboardCounts(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "A", "slug": "a"})

	rr := env.do(t, http.MethodGet, "/admin", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-count="1"`)
}

func workflowPost(t *testing.T, env *testEnv, resource string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	return env.do(t, http.MethodPost, "/admin/"+resource+"/workflow?"+params.Encode(), nil, map[string]string{"Datastar-Request": "true"})
}

func TestWorkflow_DuplicateThenUndo(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	rr := workflowPost(t, env, "tags", url.Values{"action": {"request"}, "id": {"1"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `data-modal="confirm" open`)
	assert.NotContains(t, rr.Body.String(), `data-modal="success" open`)
	require.NotEmpty(t, env.cookies, "workflow requests issue a session cookie")

	rr = workflowPost(t, env, "tags", url.Values{"action": {"confirm"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := rr.Body.String()
	assert.Contains(t, body, `data-modal="success" open`)
	assert.Contains(t, body, "#records", "success reloads the table")

	counts, err := env.st.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, counts["tags"])

	// A full page load of the same session still shows the success modal.
	rr = env.do(t, http.MethodGet, "/admin/tags", nil, nil)
	assert.Contains(t, rr.Body.String(), `data-modal="success" open`)

	rr = workflowPost(t, env, "tags", url.Values{"action": {"undo"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-modal="undo" open`)

	rr = workflowPost(t, env, "tags", url.Values{"action": {"undo-confirm"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `data-state="idle"`)

	counts, err = env.st.CountRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["tags"])
}

func TestWorkflow_FailureShowsFieldErrors(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": strings.Repeat("x", 58), "slug": "long"})

	require.Equal(t, http.StatusOK, workflowPost(t, env, "tags", url.Values{"action": {"request"}, "id": {"1"}}).Code)
	rr := workflowPost(t, env, "tags", url.Values{"action": {"confirm"}})
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `data-state="idle"`)
	assert.Contains(t, body, "Name must be at most 60 characters")
}

func TestWorkflow_InvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	rr := workflowPost(t, env, "tags", url.Values{"action": {"confirm"}})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid_transition")

	rr = workflowPost(t, env, "tags", url.Values{"action": {"explode"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWorkflow_EditNavigatesAndDiscards(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	workflowPost(t, env, "tags", url.Values{"action": {"request"}, "id": {"1"}})
	workflowPost(t, env, "tags", url.Values{"action": {"confirm"}})
	rr := workflowPost(t, env, "tags", url.Values{"action": {"edit"}})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `window.location.assign("/admin/tags/2/edit")`)

	// The workflow was discarded, so a new request is accepted.
	rr = workflowPost(t, env, "tags", url.Values{"action": {"request"}, "id": {"1"}})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWorkflow_SessionsAreIndependent(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "tags", map[string]string{"name": "Print", "slug": "print"})

	require.Equal(t, http.StatusOK, workflowPost(t, env, "tags", url.Values{"action": {"request"}, "id": {"1"}}).Code)

	other := &testEnv{srv: env.srv, h: env.h, st: env.st}
	rr := workflowPost(t, other, "tags", url.Values{"action": {"request"}, "id": {"1"}})
	assert.Equal(t, http.StatusOK, rr.Code, "a second browser gets its own workflow")
}

func TestRenderMarkdownHTML_EscapesRawHTML(t *testing.T) {
	out := string(renderMarkdownHTML("<script>alert(1)</script>\n\n**hi** :smile:"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<strong>hi</strong>")
	assert.Equal(t, "", string(renderMarkdownHTML("   ")))
}

func TestMarkdownExcerpt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"# Shelf impact\n\nPackaging has **three seconds**.", "Shelf impact"},
		{"Packaging has **three** seconds\nto make its case.", "Packaging has three seconds to make its case."},
		{"- Logo\n- Palette", "Logo"},
		{strings.Repeat("é", 100), strings.Repeat("é", 79) + "…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, markdownExcerpt(tt.in), tt.in)
	}
}
