package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/diayouth/internal/auth"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWs(t *testing.T, ta *testApp, header http.Header) (*websocket.Conn, *http.Response, error) {
	srv := httptest.NewServer(ta.mux.Handler)
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func Test_serveWs(t *testing.T) {
	ta := newTestApp(t)

	header := http.Header{}
	header.Set("Cookie", auth.TokenCookieKey+"="+testToken(t, testUserId))
	conn, _, err := dialWs(t, ta, header)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(feed.ClientMessage{
		BaseMessage: feed.BaseMessage{Id: 1},
		Subscribe:   &feed.Subscribe{Topic: "event_join"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg feed.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Response)
	assert.Equal(t, http.StatusOK, msg.Response.ResponseCode)

	// A join through the API reaches the subscriber.
	rr := ta.do(t, http.MethodPut, "/api/associations/event-join/7", nil, otherUserId)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	require.NotNil(t, msg.Change)
	assert.Equal(t, "event_join", msg.Change.Topic)
	assert.Equal(t, int64(7), msg.Change.RecordId)
	assert.Equal(t, feed.Insert, msg.Change.Type)
	assert.Equal(t, otherUserId, msg.Change.ActorId)
}

func Test_serveWs_Unauthorized(t *testing.T) {
	ta := newTestApp(t)

	_, resp, err := dialWs(t, ta, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func Test_serveWs_ForbiddenOrigin(t *testing.T) {
	ta := newTestApp(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+testToken(t, testUserId))
	header.Set("Origin", "https://evil.example")
	_, resp, err := dialWs(t, ta, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
