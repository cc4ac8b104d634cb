package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskflow/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestHub(t *testing.T) (*Hub, *auth.TokenManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens := auth.NewTokenManager(testSecret, time.Hour, "taskflow")
	hub := NewHub(rdb, tokens, []string{"*"})

	r := gin.New()
	r.GET("/ws", hub.Handler())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, tokens, srv
}

func dial(t *testing.T, srv *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHub_DeliversOnlyToTheAddressedUser(t *testing.T) {
	hub, tokens, srv := newTestHub(t)

	ann := auth.Identity{ID: uuid.New(), Email: "ann@example.com"}
	bob := auth.Identity{ID: uuid.New(), Email: "bob@example.com"}
	annTok, err := tokens.Issue(ann)
	require.NoError(t, err)
	bobTok, err := tokens.Issue(bob)
	require.NoError(t, err)

	annConn := dial(t, srv, "?token="+annTok, nil)
	bobConn := dial(t, srv, "", http.Header{"Authorization": {"Bearer " + bobTok}})

	require.Equal(t, EventConnected, readEvent(t, annConn).Type)
	require.Equal(t, EventConnected, readEvent(t, bobConn).Type)

	require.NoError(t, hub.Publish(context.Background(), ann.ID, "notification", map[string]string{"title": "hi"}))

	ev := readEvent(t, annConn)
	require.Equal(t, "notification", ev.Type)
	require.Equal(t, map[string]any{"title": "hi"}, ev.Data)

	// bob gets nothing
	require.NoError(t, bobConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = bobConn.ReadMessage()
	require.Error(t, err)
}

func TestHub_RejectsUnauthenticatedHandshake(t *testing.T) {
	_, _, srv := newTestHub(t)

	cases := map[string]string{
		"no token":  "",
		"bad token": "?token=garbage",
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestHub_PublishWithoutListenersIsFine(t *testing.T) {
	hub, _, _ := newTestHub(t)
	require.NoError(t, hub.Publish(context.Background(), uuid.New(), "notification", nil))
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	strict := checkOrigin([]string{"https://app.example.com/"})
	require.True(t, strict(req("https://app.example.com")))
	require.True(t, strict(req("")), "non-browser clients send no Origin")
	require.False(t, strict(req("https://evil.example.com")))

	require.True(t, checkOrigin([]string{"*"})(req("https://anything.example")))
}
