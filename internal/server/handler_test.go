package server

import (
	"bytes"
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/kilupskalvis/entryrev/internal/app"
	"github.com/kilupskalvis/entryrev/internal/config"
	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/kilupskalvis/entryrev/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app    *app.App
	srv    *httptest.Server
	editor string
	viewer string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := discardLogger()

	cfg, err := config.Initialize(t.TempDir(), config.Config{
		TokenSecret:  "secret",
		Capabilities: map[string][]string{"u-1": {security.CapabilityEditEntries}},
	})
	require.NoError(t, err)

	a, err := app.New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	gate, err := a.Gate()
	require.NoError(t, err)

	tokens := NewFileTokenStore(filepath.Join(t.TempDir(), "tokens.json"), logger)
	editor, _, err := tokens.CreateToken("editor", "u-1")
	require.NoError(t, err)
	viewer, _, err := tokens.CreateToken("viewer", "u-2")
	require.NoError(t, err)

	h := Handler(Deps{
		Entries:  a.Entries,
		Manager:  a.Manager,
		Restorer: a.Restorer,
		Renderer: a.Renderer,
		Gate:     gate,
		Auth:     security.StaticAuthorizer(cfg.Capabilities),
		Tokens:   tokens,
	}, nil, logger)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{app: a, srv: srv, editor: editor, viewer: viewer}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func (ts *testServer) entryWithRevision(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	id, err := ts.app.Entries.CreateRecord(ctx, &models.Record{FormID: "f", Fields: models.FieldMap{"name": "Alice"}})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPatch, "/entries/"+id, ts.editor, map[string]interface{}{
		"fields": map[string]interface{}{"name": "Alicia"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ids, err := ts.app.Manager.ListRevisionIDs(ctx, id)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return id, ids[0]
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/entries/x/revisions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/entries/x/revisions", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPatchCapturesRevision(t *testing.T) {
	ts := newTestServer(t)
	id, revID := ts.entryWithRevision(t)

	rev, err := ts.app.Manager.GetRevision(context.Background(), revID)
	require.NoError(t, err)
	assert.Equal(t, "u-1", rev.Meta.CreatedBy)
	assert.Equal(t, models.FieldMap{"name": "Alicia"}, rev.Meta.ChangedFields)

	resp := ts.do(t, http.MethodGet, "/entries/"+id+"/revisions", ts.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `class="entry-revisions"`)
	assert.Contains(t, body, "/entries/"+id+"/revisions/"+revID)
}

func TestPatchRequiresCapability(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.app.Entries.CreateRecord(context.Background(), &models.Record{FormID: "f", Fields: models.FieldMap{"name": "Alice"}})
	require.NoError(t, err)

	resp := ts.do(t, http.MethodPatch, "/entries/"+id, ts.viewer, map[string]interface{}{
		"fields": map[string]interface{}{"name": "Mallory"},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPatchUnknownEntry(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPatch, "/entries/missing", ts.editor, map[string]interface{}{
		"fields": map[string]interface{}{"name": "x"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

var restoreAction = regexp.MustCompile(`action="([^"]+)"`)

func TestShowAndRestore(t *testing.T) {
	ts := newTestServer(t)
	id, revID := ts.entryWithRevision(t)

	resp := ts.do(t, http.MethodGet, "/entries/"+id+"/revisions/"+revID, ts.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `<table class="diff">`)

	m := restoreAction.FindStringSubmatch(body)
	require.Len(t, m, 2)
	action, err := url.Parse(html.UnescapeString(m[1]))
	require.NoError(t, err)

	restorePath := action.Path + "?" + action.RawQuery
	resp = ts.do(t, http.MethodPost, restorePath, ts.editor, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/entries/"+id+"/revisions", resp.Header.Get("Location"))

	rec, err := ts.app.Entries.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Fields["name"])

	resp = ts.do(t, http.MethodPost, restorePath, ts.editor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "restore tokens are single use")
}

func TestShowHidesRestoreFromViewer(t *testing.T) {
	ts := newTestServer(t)
	id, revID := ts.entryWithRevision(t)

	resp := ts.do(t, http.MethodGet, "/entries/"+id+"/revisions/"+revID, ts.viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, readBody(t, resp), "entry-revision-restore")
}

func TestShowWrongParent(t *testing.T) {
	ts := newTestServer(t)
	_, revID := ts.entryWithRevision(t)

	resp := ts.do(t, http.MethodGet, "/entries/other/revisions/"+revID, ts.editor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRestoreDenied(t *testing.T) {
	ts := newTestServer(t)
	id, revID := ts.entryWithRevision(t)

	viewerToken, err := ts.app.Tokens.Issue("u-2", id, revID)
	require.NoError(t, err)

	q := url.Values{"revision": {revID}, "token": {viewerToken}}
	resp := ts.do(t, http.MethodPost, "/entries/"+id+"/restore?"+q.Encode(), ts.viewer, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	q = url.Values{"revision": {revID}, "token": {"forged"}}
	resp = ts.do(t, http.MethodPost, "/entries/"+id+"/restore?"+q.Encode(), ts.editor, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	rec, err := ts.app.Entries.GetRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", rec.Fields["name"])
}

func TestDeleteRevisions(t *testing.T) {
	ts := newTestServer(t)
	id, revID := ts.entryWithRevision(t)

	resp := ts.do(t, http.MethodDelete, "/entries/"+id+"/revisions/"+revID, ts.editor, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/entries/"+id+"/revisions/"+revID, ts.editor, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPatch, "/entries/"+id, ts.editor, map[string]interface{}{
		"fields": map[string]interface{}{"name": "Bob"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/entries/"+id+"/revisions", ts.editor, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Results map[string]string `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	for _, status := range out.Results {
		assert.Equal(t, "deleted", status)
	}

	ids, err := ts.app.Manager.ListRevisionIDs(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
