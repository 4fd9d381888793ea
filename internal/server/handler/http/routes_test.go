package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/GTDKeeper/internal/models"
	"github.com/atinyakov/GTDKeeper/internal/repository"
	handler "github.com/atinyakov/GTDKeeper/internal/server/handler/http"
	"github.com/atinyakov/GTDKeeper/internal/service"
)

// client is a browser-like test client keeping cookies per user.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	tasks := repository.NewFileTaskRepository(dir)
	auth := service.NewAuthService(
		repository.NewFileCredentialRepository(dir),
		repository.NewFileSessionRepository(dir),
		tasks,
		nil,
	)
	if err := auth.Init(context.Background(), "admin"); err != nil {
		t.Fatalf("init auth: %v", err)
	}

	router := handler.NewRouter(
		&handler.AuthHandler{AuthService: auth, SessionMaxAge: time.Hour},
		&handler.TaskHandler{TaskService: service.NewTaskService(tasks)},
		auth,
		nil,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func newClient(t *testing.T, base string) *client {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &client{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string, out any) int {
	c.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type envelope struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	IsAdmin bool   `json:"isAdmin"`
}

func TestRouter_IndexPage(t *testing.T) {
	base := newServer(t)
	resp, err := http.Get(base + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("index: %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(string(page), "<html") {
		t.Errorf("index body is not a page")
	}
}

func TestRouter_RequiresSession(t *testing.T) {
	base := newServer(t)
	c := newClient(t, base)

	var env envelope
	if code := c.do(http.MethodGet, "/api/data", "", &env); code != http.StatusUnauthorized || env.Status != "AUTH_REQUIRED" {
		t.Errorf("anonymous /api/data = %d %+v", code, env)
	}

	var sess map[string]any
	c.do(http.MethodGet, "/api/check-session", "", &sess)
	if sess["authenticated"] != false {
		t.Errorf("anonymous session = %v", sess)
	}
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	base := newServer(t)
	resp, err := http.Post(base+"/api/login", "text/plain", strings.NewReader("admin:admin"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d; want 415", resp.StatusCode)
	}
}

func TestRouter_TaskFlow(t *testing.T) {
	base := newServer(t)
	c := newClient(t, base)

	var env envelope
	if code := c.do(http.MethodPost, "/api/login", `{"username":"admin","password":"admin"}`, &env); code != http.StatusOK || !env.IsAdmin {
		t.Fatalf("login = %d %+v", code, env)
	}

	var p models.Project
	if code := c.do(http.MethodPost, "/api/projects", `{"name":"Garden"}`, &p); code != http.StatusCreated || p.Status != "active" {
		t.Fatalf("create project = %d %+v", code, p)
	}

	for _, title := range []string{"dig", "plant", "water", "weed", "rest"} {
		var it models.Item
		body := `{"title":"` + title + `","projectId":1,"status":"projects"}`
		if code := c.do(http.MethodPost, "/api/items", body, &it); code != http.StatusCreated {
			t.Fatalf("create item = %d", code)
		}
	}

	var batch struct {
		Updated int `json:"updated"`
	}
	c.do(http.MethodPut, "/api/items/batch", `[{"id":5,"position":3},{"id":9999,"position":1}]`, &batch)
	if batch.Updated != 1 {
		t.Errorf("batch updated = %d; want 1", batch.Updated)
	}

	var it models.Item
	c.do(http.MethodPost, "/api/items/1/toggle", "", &it)
	if it.Status != models.StatusDone {
		t.Errorf("toggle = %+v", it)
	}
	c.do(http.MethodPut, "/api/items/1", `{"done":false}`, &it)
	if it.Status != models.StatusProjects || it.PreviousStatus != nil {
		t.Errorf("undone = %+v", it)
	}

	var next []models.NextAction
	c.do(http.MethodGet, "/api/next-actions", "", &next)
	if len(next) != 1 || next[0].Item.ID != 1 {
		t.Errorf("next actions = %+v", next)
	}

	if code := c.do(http.MethodDelete, "/api/projects/1", "", nil); code != http.StatusNoContent {
		t.Fatalf("delete project = %d", code)
	}
	var d models.AccountData
	c.do(http.MethodGet, "/api/data", "", &d)
	if len(d.Projects) != 0 || len(d.Items) != 5 {
		t.Fatalf("after cascade: %+v", d)
	}
	for _, it := range d.Items {
		if it.ProjectID != nil || it.Status != models.StatusInbox {
			t.Errorf("item %d not returned to inbox: %+v", it.ID, it)
		}
	}

	if code := c.do(http.MethodPut, "/api/items/42", `{"title":"x"}`, &env); code != http.StatusNotFound {
		t.Errorf("update missing item = %d", code)
	}

	c.do(http.MethodPost, "/api/logout", "", &env)
	if code := c.do(http.MethodGet, "/api/data", "", nil); code != http.StatusUnauthorized {
		t.Errorf("after logout /api/data = %d; want 401", code)
	}
}

func TestRouter_AdminFlow(t *testing.T) {
	base := newServer(t)
	admin := newClient(t, base)
	bob := newClient(t, base)

	var env envelope
	admin.do(http.MethodPost, "/api/login", `{"username":"admin","password":"admin"}`, &env)
	if code := admin.do(http.MethodPost, "/api/admin/create-user", `{"username":"bob"}`, &env); code != http.StatusCreated {
		t.Fatalf("create-user = %d %+v", code, env)
	}
	if code := admin.do(http.MethodPost, "/api/admin/create-user", `{"username":"bob"}`, &env); code != http.StatusConflict {
		t.Errorf("duplicate create-user = %d", code)
	}

	if code := bob.do(http.MethodPost, "/api/login", `{"username":"bob","password":"guess"}`, &env); code != http.StatusUnauthorized {
		t.Errorf("pending login with password = %d %+v", code, env)
	}
	bob.do(http.MethodPost, "/api/login", `{"username":"bob","password":""}`, &env)
	if env.Status != "NEEDS_SETUP" {
		t.Fatalf("pending login = %+v", env)
	}
	if code := bob.do(http.MethodGet, "/api/data", "", nil); code != http.StatusUnauthorized {
		t.Errorf("NEEDS_SETUP must not open a session, got %d", code)
	}
	if code := bob.do(http.MethodPost, "/api/set-password", `{"username":"bob","password":"pw"}`, &env); code != http.StatusOK {
		t.Fatalf("set-password = %d %+v", code, env)
	}

	if code := bob.do(http.MethodGet, "/api/admin/users", "", &env); code != http.StatusForbidden || env.Status != "AUTH_FORBIDDEN" {
		t.Errorf("non-admin listing = %d %+v", code, env)
	}

	var list struct {
		Users []models.AccountSummary `json:"users"`
	}
	admin.do(http.MethodGet, "/api/admin/users", "", &list)
	if len(list.Users) != 2 || list.Users[0].Username != "admin" || list.Users[1].Username != "bob" {
		t.Errorf("users = %+v", list.Users)
	}

	if code := admin.do(http.MethodPost, "/api/admin/delete-user", `{"username":"admin"}`, &env); code != http.StatusBadRequest || env.Status != "CANNOT_DELETE_ADMIN" {
		t.Errorf("delete admin = %d %+v", code, env)
	}
	if code := admin.do(http.MethodPost, "/api/admin/delete-user", `{"username":"bob"}`, &env); code != http.StatusOK {
		t.Fatalf("delete bob = %d %+v", code, env)
	}
	if code := bob.do(http.MethodGet, "/api/data", "", nil); code != http.StatusUnauthorized {
		t.Errorf("deleted account kept its session: %d", code)
	}
}
