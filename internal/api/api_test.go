package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ta21cos/thread-type-note-app/internal/models"
	"github.com/ta21cos/thread-type-note-app/internal/noteservice"
	"github.com/ta21cos/thread-type-note-app/internal/testutil"
)

// testEnv sets up a temp SQLite store, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*noteservice.Service, http.Handler) {
	t.Helper()
	st := testutil.TestStore(t)
	svc := noteservice.NewService(st, noteservice.WithIndexer(testutil.SyncIndexer{Store: st}))
	router := NewRouter(svc, authToken != "", authToken)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, content, parent string) models.Note {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"content": content, "parentId": parent})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	return e.Code
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "hello", "")
	if len(n.ID) != 6 || n.Depth != 0 || n.Checksum == "" {
		t.Fatalf("created = %+v", n)
	}

	w := do(t, router, http.MethodGet, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var resp NoteDetailResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Note.Content != "hello" || resp.Thread != nil {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetNote_IncludeThread(t *testing.T) {
	_, router := testEnv(t, "")
	root := createNote(t, router, "root", "")
	reply := createNote(t, router, "reply to @"+root.ID, root.ID)

	w := do(t, router, http.MethodGet, "/notes/"+reply.ID+"?includeThread=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp NoteDetailResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Thread) != 2 || resp.Thread[0].ID != root.ID || resp.Thread[1].ID != reply.ID {
		t.Errorf("thread = %+v", resp.Thread)
	}
	if resp.Thread[1].Depth != 1 {
		t.Errorf("reply depth = %d", resp.Thread[1].Depth)
	}
}

func TestCreateNote_ErrorCodes(t *testing.T) {
	_, router := testEnv(t, "")
	tests := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"empty content", map[string]string{"content": ""}, http.StatusBadRequest, codeContentLength},
		{"too long", map[string]string{"content": strings.Repeat("a", 1001)}, http.StatusBadRequest, codeContentLength},
		{"bad parent id", map[string]string{"content": "x", "parentId": "not-an-id"}, http.StatusBadRequest, codeValidation},
		{"missing parent", map[string]string{"content": "x", "parentId": "ZZZZZZ"}, http.StatusNotFound, codeInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/notes", tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
			if c := errCode(t, w); c != tt.code {
				t.Errorf("code = %q, want %q", c, tt.code)
			}
		})
	}
}

func TestCreateNote_InvalidJSON(t *testing.T) {
	_, router := testEnv(t, "")
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpdateNote_CircularReference(t *testing.T) {
	_, router := testEnv(t, "")
	a := createNote(t, router, "hello", "")
	b := createNote(t, router, "reply to @"+a.ID, a.ID)

	w := do(t, router, http.MethodPut, "/notes/"+a.ID, map[string]string{"content": "see @" + b.ID})
	if w.Code != http.StatusBadRequest || errCode(t, w) != codeCircular {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "v1", "")

	w := do(t, router, http.MethodPut, "/notes/"+n.ID, map[string]string{"content": "v2"}, "If-Match", `"`+n.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with matching checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Old checksum is now stale.
	w = do(t, router, http.MethodPut, "/notes/"+n.ID, map[string]string{"content": "v3"}, "If-Match", n.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	n := createNote(t, router, "v1", "")

	w := do(t, router, http.MethodPut, "/notes/"+n.ID, map[string]string{"content": "v2"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/notes/ZZZZZZ", map[string]string{"content": "x"})
	if w.Code != http.StatusNotFound || errCode(t, w) != codeNotFound {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestDeleteNote_Cascades(t *testing.T) {
	_, router := testEnv(t, "")
	root := createNote(t, router, "root", "")
	reply := createNote(t, router, "reply", root.ID)

	w := do(t, router, http.MethodDelete, "/notes/"+root.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", w.Code)
	}
	for _, id := range []string{root.ID, reply.ID} {
		if w := do(t, router, http.MethodGet, "/notes/"+id, nil); w.Code != http.StatusNotFound {
			t.Errorf("get %s after delete = %d, want 404", id, w.Code)
		}
	}
	if w := do(t, router, http.MethodDelete, "/notes/"+root.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestGetNote_InvalidID(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	a := createNote(t, router, "a", "")
	createNote(t, router, "b", "")
	createNote(t, router, "reply", a.ID)

	w := do(t, router, http.MethodGet, "/notes?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || !resp.HasMore || len(resp.Notes) != 1 {
		t.Errorf("resp = %+v", resp)
	}

	if w := do(t, router, http.MethodGet, "/notes?limit=500", nil); w.Code != http.StatusBadRequest {
		t.Errorf("oversized limit = %d, want 400", w.Code)
	}
}

func TestMentionsEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	target := createNote(t, router, "target", "")
	src := createNote(t, router, "hi @"+target.ID, "")

	w := do(t, router, http.MethodGet, "/notes/"+target.ID+"/mentions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp MentionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Mentions) != 1 || resp.Mentions[0].Note.ID != src.ID || resp.Mentions[0].Position != 3 {
		t.Errorf("mentions = %+v", resp.Mentions)
	}

	if w := do(t, router, http.MethodGet, "/notes/ZZZZZZ/mentions", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note mentions = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	target := createNote(t, router, "uniquetoken here", "")
	src := createNote(t, router, "about @"+target.ID, "")

	w := do(t, router, http.MethodGet, "/notes/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Results[0].ID != target.ID {
		t.Errorf("content search = %+v", resp)
	}

	w = do(t, router, http.MethodGet, "/notes/search?type=mention&q="+target.ID, nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != src.ID {
		t.Errorf("mention search = %+v", resp.Results)
	}
}

func TestSearchValidation(t *testing.T) {
	_, router := testEnv(t, "")
	for _, target := range []string{
		"/notes/search",
		"/notes/search?q=x&type=fuzzy",
		"/notes/search?q=x&limit=0",
	} {
		if w := do(t, router, http.MethodGet, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", target, w.Code)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/notes", map[string]string{"content": "test"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("disabled auth = %d, want 200", w.Code)
	}
}
