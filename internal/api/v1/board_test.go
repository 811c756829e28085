package v1

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves the app on a loopback port with the hub running and returns
// the address.
func (s *testServer) listen() string {
	s.t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(s.t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.deps.Hub.Run(ctx)
	go func() { _ = s.app.Listener(ln) }()
	s.t.Cleanup(func() {
		cancel()
		_ = s.app.Shutdown()
	})
	return ln.Addr().String()
}

func boardURL(addr, projectID, token string) string {
	return fmt.Sprintf("ws://%s/ws/projects/%s?token=%s", addr, projectID, token)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev map[string]interface{}
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestBoardFeedRejectsOutsiders(t *testing.T) {
	s := newTestServer(t)
	addr := s.listen()

	tokenA, _ := s.register("alice")
	tokenC, _ := s.register("carol")
	_, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]interface{}{"name": "Eng"})
	projectID := project["id"].(string)

	_, resp, err := websocket.DefaultDialer.Dial(boardURL(addr, projectID, ""), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(boardURL(addr, projectID, "not-a-jwt"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(boardURL(addr, projectID, tokenC), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(boardURL(addr, "missing", tokenA), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	plain, err := http.Get(fmt.Sprintf("http://%s/ws/projects/%s", addr, projectID))
	require.NoError(t, err)
	plain.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, plain.StatusCode)
}

func TestBoardFeedDeliversAndRevokes(t *testing.T) {
	s := newTestServer(t)
	addr := s.listen()

	tokenA, _ := s.register("alice")
	tokenB, bID := s.register("bob")
	_, project := s.do(http.MethodPost, "/api/projects", tokenA, map[string]interface{}{"name": "Eng", "members": []string{bID}})
	projectID := project["id"].(string)

	bob, _, err := websocket.DefaultDialer.Dial(boardURL(addr, projectID, tokenB), nil)
	require.NoError(t, err)
	defer bob.Close()
	require.Eventually(t, func() bool { return s.deps.Hub.Subscribers(projectID) == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, task := s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "secret plan"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	taskID := task["id"].(string)

	ev := readEvent(t, bob)
	assert.Equal(t, "task.created", ev["type"])
	assert.Equal(t, projectID, ev["project"])
	assert.Equal(t, taskID, ev["taskId"])
	assert.Equal(t, "secret plan", ev["task"].(map[string]interface{})["title"])

	// other requests in between must not disturb the ids carried by events
	s.list("/api/tasks/project/"+projectID, tokenA)
	resp, _ = s.do(http.MethodDelete, "/api/tasks/"+taskID, tokenA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev = readEvent(t, bob)
	assert.Equal(t, "task.deleted", ev["type"])
	assert.Equal(t, taskID, ev["taskId"])

	// owner removes bob; the feed is closed before any further event
	resp, _ = s.do(http.MethodPut, "/api/projects/"+projectID, tokenA, map[string]interface{}{"members": []string{}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return s.deps.Hub.Subscribers(projectID) == 0 }, 2*time.Second, 10*time.Millisecond)

	resp, _ = s.do(http.MethodPost, "/api/tasks", tokenA, map[string]string{"project": projectID, "title": "after removal"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := bob.ReadMessage()
	require.Error(t, err, "unexpected message %s", data)
	var netErr net.Error
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "feed was not closed")
	}
}
