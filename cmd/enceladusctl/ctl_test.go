package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"enceladus/pkg/api/auth"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	cmd := newTokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--user", "12", "--secret", "k", "--ttl", "1m"})
	require.NoError(t, cmd.Execute())

	claims, err := auth.ParseToken([]byte("k"), strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
}

func TestTokenCommandNeedsUser(t *testing.T) {
	cmd := newTokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--secret", "k"})
	assert.Error(t, cmd.Execute())
}

func TestFetchMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meta" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"2.1.0","version_major":2,"repository":"https://example.invalid/enceladus"}`))
	}))
	defer srv.Close()

	m, err := fetchMeta(srv.URL+"/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", m.Version)
	assert.Equal(t, 2, m.VersionMajor)
}

func TestWatchSendsJoinAndPrints(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		joined <- string(msg)
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"room":"user","action":"create"}`))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var out bytes.Buffer
	require.NoError(t, watch(conn, []string{"user", "thread:3"}, &out))
	assert.JSONEq(t, `{"join":["user","thread:3"]}`, <-joined)
	assert.Contains(t, out.String(), `"action":"create"`)
}
