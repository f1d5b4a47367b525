package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"enceladus/pkg/api/auth"
	"enceladus/pkg/cache"
	"enceladus/pkg/controller"
	"enceladus/pkg/models"
	"enceladus/pkg/rooms"
	"enceladus/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

var secret = []byte("test-secret")

type published struct {
	mu   sync.Mutex
	msgs []rooms.Message
}

func (p *published) Publish(m rooms.Message) {
	p.mu.Lock()
	p.msgs = append(p.msgs, m)
	p.mu.Unlock()
}

type env struct {
	t      *testing.T
	client *fasthttp.Client
	ctl    *controller.Controller
	pub    *published
}

func newEnv(t *testing.T, debug bool) *env {
	t.Helper()
	st, err := store.OpenInMemory()
	require.NoError(t, err)
	caches := cache.NewCaches(cache.Sizes{Threads: 8, Sections: 8, Events: 8, Users: 8})
	pub := &published{}
	ctl := controller.New(controller.Options{Store: st, Caches: caches, Publisher: pub})

	gw := auth.NewGateway(auth.SecConfig{RPS: 1000, Burst: 1000, JWTSecret: secret})
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: Handler(Options{
		Controller:  ctl,
		Gateway:     gw,
		DebugRoutes: debug,
		Version:     "1.4.2",
	})}
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		_ = srv.Shutdown()
		gw.Close()
		caches.Close()
		_ = st.Close()
	})

	return &env{
		t:      t,
		client: &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }},
		ctl:    ctl,
		pub:    pub,
	}
}

func (e *env) token(userID int64) string {
	tok, err := auth.SignToken(secret, userID, time.Now(), time.Hour)
	require.NoError(e.t, err)
	return tok
}

// do sends a request and returns status, body and the Location header.
func (e *env) do(method, path, token, body string) (int, []byte, string) {
	e.t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://enceladus.test" + path)
	req.Header.SetMethod(method)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.SetContentType("application/json")
		req.SetBodyString(body)
	}
	require.NoError(e.t, e.client.Do(req, resp))
	return resp.StatusCode(), append([]byte{}, resp.Body()...), string(resp.Header.Peek("Location"))
}

func (e *env) user(name string, admin bool) models.User {
	e.t.Helper()
	u, err := e.ctl.CreateUser(context.Background(), models.UserInsert{RedditUsername: name, IsGlobalAdmin: admin})
	require.NoError(e.t, err)
	return u
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestMetaAndHealth(t *testing.T) {
	e := newEnv(t, false)

	status, body, _ := e.do("GET", "/meta", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	meta := decode[map[string]any](t, body)
	assert.Equal(t, "1.4.2", meta["version"])
	assert.Equal(t, float64(1), meta["version_major"])

	status, _, _ = e.do("GET", "/healthz", "", "")
	assert.Equal(t, fasthttp.StatusOK, status)
}

func TestMutationsRequireAuth(t *testing.T) {
	e := newEnv(t, false)

	status, _, _ := e.do("POST", "/v1/thread", "", `{"thread_name":"x"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	status, _, _ = e.do("POST", "/v1/thread", "garbage", `{"thread_name":"x"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	// valid token for a user that does not exist
	status, _, _ = e.do("POST", "/v1/thread", e.token(99), `{"thread_name":"x"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	// reads are anonymous
	status, _, _ = e.do("GET", "/v1/thread", "", "")
	assert.Equal(t, fasthttp.StatusOK, status)
}

func TestThreadLifecycle(t *testing.T) {
	e := newEnv(t, false)
	owner := e.user("owner", false)
	other := e.user("other", false)
	tok := e.token(owner.ID)

	status, body, loc := e.do("POST", "/v1/thread", tok,
		`{"thread_name":"Launch","display_name":"Launch","event_column_headers":["UTC","Event"],"space__utc_col_index":0,"space__t0":1700000000}`)
	require.Equal(t, fasthttp.StatusCreated, status, string(body))
	th := decode[models.Thread](t, body)
	assert.Equal(t, fmt.Sprintf("/v1/thread/%d", th.ID), loc)

	status, body, _ = e.do("GET", loc, "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	raw := decode[map[string]any](t, body)
	assert.NotContains(t, raw, "space__t0", "gated fields hidden without features")

	status, body, _ = e.do("GET", loc+"?features=space", "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	raw = decode[map[string]any](t, body)
	assert.Equal(t, float64(1700000000), raw["space__t0"])
	assert.NotContains(t, raw, "spacex__api_id")

	status, _, _ = e.do("PATCH", loc, e.token(other.ID), `{"display_name":"mine now"}`)
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	status, _, _ = e.do("PATCH", loc, tok, `{"display_name":"x","bogus":1}`)
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, body, _ = e.do("PATCH", loc, tok, `{"display_name":"Launch thread"}`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	assert.Equal(t, "Launch thread", decode[models.Thread](t, body).DisplayName)

	status, _, _ = e.do("PATCH", loc+"/approve", tok, "")
	assert.Equal(t, fasthttp.StatusPreconditionFailed, status)

	status, _, _ = e.do("DELETE", loc, tok, "")
	assert.Equal(t, fasthttp.StatusNoContent, status)
	status, _, _ = e.do("GET", loc, "", "")
	assert.Equal(t, fasthttp.StatusNotFound, status)
}

func TestSectionPatchUnion(t *testing.T) {
	e := newEnv(t, false)
	owner := e.user("owner", false)
	admin := e.user("admin", true)
	tok := e.token(owner.ID)

	_, body, _ := e.do("POST", "/v1/thread", tok, `{"thread_name":"t"}`)
	th := decode[models.Thread](t, body)
	status, body, loc := e.do("POST", "/v1/section", tok, fmt.Sprintf(`{"name":"Intro","content":"hi","in_thread_id":%d}`, th.ID))
	require.Equal(t, fasthttp.StatusCreated, status, string(body))

	// lock-set variant
	status, body, _ = e.do("PATCH", loc, tok, fmt.Sprintf(`{"lock_held_by_user_id":%d}`, owner.ID))
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	sec := decode[models.Section](t, body)
	require.NotNil(t, sec.LockHeldByUserID)
	assert.Equal(t, owner.ID, *sec.LockHeldByUserID)

	// a different permitted user cannot take a held, unexpired lock
	status, _, _ = e.do("PATCH", loc, e.token(admin.ID), fmt.Sprintf(`{"lock_held_by_user_id":%d}`, admin.ID))
	assert.Equal(t, fasthttp.StatusForbidden, status)

	// field update variant; the lock key mixed with fields is a field update and is rejected
	status, _, _ = e.do("PATCH", loc, tok, `{"lock_held_by_user_id":null,"name":"x"}`)
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, body, _ = e.do("PATCH", loc, tok, `{"content":"updated"}`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	assert.Equal(t, "updated", decode[models.Section](t, body).Content)

	// release
	status, body, _ = e.do("PATCH", loc, tok, `{"lock_held_by_user_id":null}`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	assert.Nil(t, decode[models.Section](t, body).LockHeldByUserID)

	status, _, _ = e.do("PATCH", "/v1/section/9999", tok, `{"content":"x"}`)
	assert.Equal(t, fasthttp.StatusNotFound, status)
}

func TestEventPatchUnion(t *testing.T) {
	e := newEnv(t, false)
	owner := e.user("owner", false)
	tok := e.token(owner.ID)

	_, body, _ := e.do("POST", "/v1/thread", tok, `{"thread_name":"t","event_column_headers":["UTC","Event"],"space__utc_col_index":0}`)
	th := decode[models.Thread](t, body)

	status, _, _ := e.do("POST", "/v1/event", tok, fmt.Sprintf(`{"in_thread_id":%d,"cols":["00:00","x"]}`, th.ID))
	assert.Equal(t, fasthttp.StatusUnprocessableEntity, status)

	status, body, loc := e.do("POST", "/v1/event", tok, fmt.Sprintf(`{"in_thread_id":%d,"posted":true,"cols":[60,"liftoff"]}`, th.ID))
	require.Equal(t, fasthttp.StatusCreated, status, string(body))

	status, body, _ = e.do("PATCH", loc, tok, `[[1,"liftoff confirmed"]]`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	ev := decode[models.Event](t, body)
	assert.JSONEq(t, `"liftoff confirmed"`, string(ev.Cols[1]))

	status, _, _ = e.do("PATCH", loc, tok, `[[5,"nope"]]`)
	assert.Equal(t, fasthttp.StatusUnprocessableEntity, status)

	status, body, _ = e.do("PATCH", loc, tok, `{"posted":false}`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	assert.False(t, decode[models.Event](t, body).Posted)

	status, _, _ = e.do("PATCH", loc, tok, `"neither"`)
	assert.Equal(t, fasthttp.StatusBadRequest, status)

	status, body, _ = e.do("GET", fmt.Sprintf("/v1/thread/%d/full", th.ID), "", "")
	require.Equal(t, fasthttp.StatusOK, status)
	full := decode[controller.ThreadFull](t, body)
	assert.Len(t, full.Events, 1)
}

func TestDebugUserRoutes(t *testing.T) {
	e := newEnv(t, false)
	status, _, _ := e.do("POST", "/v1/user", "", `{"reddit_username":"u"}`)
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, status)

	e = newEnv(t, true)
	status, body, loc := e.do("POST", "/v1/user", "", `{"reddit_username":"u","spacex__is_host":true}`)
	require.Equal(t, fasthttp.StatusCreated, status, string(body))
	u := decode[map[string]any](t, body)
	assert.Equal(t, "en", u["lang"])
	assert.NotContains(t, u, "spacex__is_host")

	status, body, _ = e.do("PATCH", loc, "", `{"lang":"de"}`)
	require.Equal(t, fasthttp.StatusOK, status, string(body))
	status, _, _ = e.do("DELETE", loc, "", "")
	assert.Equal(t, fasthttp.StatusNoContent, status)

	e.pub.mu.Lock()
	defer e.pub.mu.Unlock()
	require.Len(t, e.pub.msgs, 3)
	assert.Equal(t, rooms.Users, e.pub.msgs[0].Room)
	assert.Equal(t, rooms.ActionDelete, e.pub.msgs[2].Action)
}

func TestAdminDebugRoutesRequireGlobalAdmin(t *testing.T) {
	e := newEnv(t, false)

	for _, p := range []string{"/admin/debug/prometheus", "/admin/debug/pprof/cmdline", "/admin/debug/pprof/"} {
		status, body, _ := e.do("GET", p, "", "")
		assert.Equal(t, fasthttp.StatusUnauthorized, status, p)
		assert.NotContains(t, string(body), "go_heap_alloc_bytes")
	}

	plain := e.user("plain", false)
	status, _, _ := e.do("GET", "/admin/debug/pprof/cmdline", e.token(plain.ID), "")
	assert.Equal(t, fasthttp.StatusForbidden, status)

	// a valid token for a user that does not exist
	status, _, _ = e.do("GET", "/admin/debug/prometheus", e.token(9999), "")
	assert.Equal(t, fasthttp.StatusUnauthorized, status)

	root := e.user("root", true)
	status, body, _ := e.do("GET", "/admin/debug/prometheus", e.token(root.ID), "")
	require.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(body), "go_heap_alloc_bytes")
}
