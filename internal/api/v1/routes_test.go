package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/configs"
	"teamboard/internal/config"
)

type testServer struct {
	t    *testing.T
	app  *fiber.App
	deps *config.Dependencies
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	deps, err := config.NewMemoryDependencies(configs.Config{
		JWTSecret:   "test-secret",
		TokenTTL:    time.Hour,
		UploadDir:   filepath.Join(t.TempDir(), "uploads"),
		CORSOrigins: "*",
	})
	require.NoError(t, err)
	return &testServer{t: t, app: NewApp(deps), deps: deps}
}

func (s *testServer) do(method, path, token string, body interface{}) (*http.Response, map[string]interface{}) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	return resp, decode(s.t, resp)
}

func (s *testServer) list(path, token string) (*http.Response, []map[string]interface{}) {
	s.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	var out []map[string]interface{}
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return out
}

// register creates a user and returns its token and id.
func (s *testServer) register(name string) (string, string) {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, body)
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func TestEndToEndBoard(t *testing.T) {
	s := newTestServer(t)

	_, aID := s.register("alice")
	resp, body := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tokenA := body["token"].(string)
	assert.NotEmpty(t, body["expiresAt"])

	resp, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]interface{}{"name": "Eng"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, project)
	owner := project["owner"].(map[string]interface{})
	assert.Equal(t, aID, owner["id"])
	assert.Equal(t, "alice@example.com", owner["email"])
	assert.Empty(t, project["members"])
	projectID := project["id"].(string)

	resp, task := s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "Write brief"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, task)
	assert.Equal(t, "To Do", task["status"])
	taskID := task["id"].(string)

	resp, task = s.do(http.MethodPut, "/api/tasks/"+taskID, tokenA, map[string]string{"status": "Done"})
	require.Equal(t, http.StatusOK, resp.StatusCode, task)
	assert.Equal(t, "Done", task["status"])

	tokenB, _ := s.register("bob")
	resp, body = s.do(http.MethodPut, "/api/tasks/"+taskID, tokenB, map[string]string{"status": "To Do"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not authorized", body["message"])
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)
	s.register("alice")

	resp, body := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "alice@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "User already exists", body["message"])

	resp, body = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", body["message"])

	resp, body = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "A", "email": "not-an-email", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid email format", body["message"])

	resp, body = s.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token, authorization denied", body["message"])

	resp, body = s.do(http.MethodGet, "/api/projects", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token is not valid", body["message"])
}

func TestProjectOwnershipOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.register("alice")
	tokenB, bID := s.register("bob")

	resp, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]interface{}{
		"name": "Eng", "members": []string{bID, "unknown-user"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	members := project["members"].([]interface{})
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0].(map[string]interface{})["name"])
	projectID := project["id"].(string)

	resp, list := s.list("/api/projects", tokenB)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)

	resp, body := s.do(http.MethodPut, "/api/projects/"+projectID, tokenB, map[string]string{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Not authorized", body["message"])

	resp, _ = s.do(http.MethodDelete, "/api/projects/"+projectID, tokenB, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(http.MethodPut, "/api/projects/"+projectID, tokenA, map[string]interface{}{"members": []string{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["members"])

	resp, body = s.do(http.MethodGet, "/api/projects/"+projectID, tokenB, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(http.MethodDelete, "/api/projects/"+projectID, tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Project deleted", body["message"])

	resp, body = s.do(http.MethodGet, "/api/projects/"+projectID, tokenA, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Project not found", body["message"])
}

func TestTaskRules(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.register("alice")
	tokenB, bID := s.register("bob")
	_, cID := s.register("carol")

	_, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]interface{}{"name": "Eng", "members": []string{bID}})
	projectID := project["id"].(string)

	resp, body := s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"title": "No project"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Project ID required", body["message"])

	resp, body = s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "T", "assignee": cID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Assignee must be a project member", body["message"])

	resp, body = s.do(http.MethodPost, "/api/tasks", tokenB, map[string]string{
		"project": projectID, "title": "First", "assignee": bID, "dueDate": "2026-12-01",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assignee := body["assignee"].(map[string]interface{})
	assert.Equal(t, "bob@example.com", assignee["email"])
	firstID := body["id"].(string)

	resp, _ = s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "Second"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "Bad", "dueDate": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid due date", body["message"])

	resp, list := s.list("/api/tasks/project/"+projectID, tokenB)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 2)
	assert.Equal(t, "First", list[0]["title"])
	assert.Equal(t, "Second", list[1]["title"])

	resp, body = s.do(http.MethodPost, "/api/tasks/"+firstID+"/comments", tokenB, map[string]string{"text": "on it"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Len(t, body["comments"], 1)

	resp, body = s.do(http.MethodPut, "/api/tasks/"+firstID, tokenA, map[string]string{"status": "Blocked"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status", body["message"])

	resp, body = s.do(http.MethodDelete, "/api/tasks/"+firstID, tokenB, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Task deleted", body["message"])

	resp, body = s.do(http.MethodGet, "/api/tasks/"+firstID, tokenB, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Task not found", body["message"])
}

func TestOrphanedTaskAfterProjectDelete(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.register("alice")

	_, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]string{"name": "Eng"})
	projectID := project["id"].(string)
	_, task := s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "Orphan"})
	taskID := task["id"].(string)

	resp, _ := s.do(http.MethodDelete, "/api/projects/"+projectID, tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(http.MethodGet, "/api/tasks/"+taskID, tokenA, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Project not found", body["message"])
}

func TestAttachmentUpload(t *testing.T) {
	s := newTestServer(t)
	tokenA, _ := s.register("alice")
	_, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]string{"name": "Eng"})
	_, task := s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": project["id"].(string), "title": "Docs"})
	taskID := task["id"].(string)

	upload := func(filename string, content []byte) (*http.Response, map[string]interface{}) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+taskID+"/attachments", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+tokenA)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		return resp, decode(t, resp)
	}

	resp, body := upload("notes.txt", []byte("hello"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	attachments := body["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	ref := attachments[0].(string)

	req := httptest.NewRequest(http.MethodGet, ref, nil)
	req.Header.Set("Authorization", "Bearer "+tokenA)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(data))

	resp, body = upload("script.exe", []byte("MZ"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "File type not allowed", body["message"])

	resp, body = upload("huge.pdf", make([]byte, 5<<20+1))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "File size exceeds the limit of 5MB", body["message"])
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, body := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["store"])
}
