package controller

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"enceladus/pkg/cache"
	"enceladus/pkg/locks"
	"enceladus/pkg/models"
	"enceladus/pkg/rooms"
	"enceladus/pkg/store"
	"enceladus/pkg/store/db/storedb"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []rooms.Message
}

func (r *recorder) Publish(m rooms.Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) last() rooms.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

// flakyBackend fails every write once failWrites is set.
type flakyBackend struct {
	store.Backend
	failWrites atomic.Bool
}

var errDisk = errors.New("disk unavailable")

func (f *flakyBackend) Set(key string, value []byte) error {
	if f.failWrites.Load() {
		return errDisk
	}
	return f.Backend.Set(key, value)
}

func (f *flakyBackend) Delete(key string) error {
	if f.failWrites.Load() {
		return errDisk
	}
	return f.Backend.Delete(key)
}

type fakeMirror struct {
	mu      sync.Mutex
	postID  string
	edits   []string
	approve int
	sticky  []bool
}

func (m *fakeMirror) Submit(context.Context, models.User, string, string) (string, error) {
	return m.postID, nil
}

func (m *fakeMirror) Edit(_ context.Context, _ models.Thread, md string) error {
	m.mu.Lock()
	m.edits = append(m.edits, md)
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) Approve(context.Context, models.Thread) error {
	m.mu.Lock()
	m.approve++
	m.mu.Unlock()
	return nil
}

func (m *fakeMirror) SetSticky(_ context.Context, _ models.Thread, sticky bool) error {
	m.mu.Lock()
	m.sticky = append(m.sticky, sticky)
	m.mu.Unlock()
	return nil
}

type fixture struct {
	ctl     *Controller
	pub     *recorder
	backend *flakyBackend
	mirror  *fakeMirror
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storedb.OpenInMemory()
	require.NoError(t, err)
	f := &fixture{
		pub:     &recorder{},
		backend: &flakyBackend{Backend: db},
		mirror:  &fakeMirror{},
		clock:   time.Unix(1_700_000_000, 0),
	}
	st := store.New(f.backend)
	t.Cleanup(func() { _ = st.Close() })
	f.ctl = New(Options{
		Store:        st,
		Caches:       cache.NewCaches(cache.Sizes{Threads: 10, Sections: 10, Events: 10, Users: 10}),
		Publisher:    f.pub,
		Mirror:       f.mirror,
		LockDuration: locks.DefaultDuration,
		Now:          func() time.Time { return f.clock },
	})
	return f
}

var ctx = context.Background()

func (f *fixture) user(t *testing.T, name string, admin bool) models.User {
	t.Helper()
	u, err := f.ctl.CreateUser(ctx, models.UserInsert{RedditUsername: name, IsGlobalAdmin: admin})
	require.NoError(t, err)
	return u
}

func (f *fixture) thread(t *testing.T, owner models.User, headers []string, utcCol *int) models.Thread {
	t.Helper()
	th, err := f.ctl.CreateThread(ctx, owner, models.ThreadInsert{
		ThreadName:         "launch",
		DisplayName:        "Launch",
		EventColumnHeaders: headers,
		SpaceUTCColIndex:   utcCol,
	})
	require.NoError(t, err)
	return th
}

func (f *fixture) section(t *testing.T, owner models.User, threadID int64, name string, events bool) models.Section {
	t.Helper()
	sec, err := f.ctl.CreateSection(ctx, owner, models.SectionInsert{Name: name, Content: "body", IsEventsSection: events, InThreadID: threadID})
	require.NoError(t, err)
	return sec
}

func raw(vals ...any) []json.RawMessage {
	out := make([]json.RawMessage, len(vals))
	for i, v := range vals {
		b, _ := json.Marshal(v)
		out[i] = b
	}
	return out
}

func intPtr(v int) *int       { return &v }
func idPtr(v int64) *int64    { return &v }
func strPtr(v string) *string { return &v }

func TestCreateSectionAttachesToThread(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, nil, nil)
	before := f.pub.count()

	sec := f.section(t, owner, th.ID, "Intro", false)

	got, err := f.ctl.Thread(th.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sec.ID}, got.SectionsID)

	require.Equal(t, before+2, f.pub.count())
	f.pub.mu.Lock()
	created, updated := f.pub.msgs[before], f.pub.msgs[before+1]
	f.pub.mu.Unlock()
	assert.Equal(t, rooms.ActionCreate, created.Action)
	assert.Equal(t, models.KindSection, created.DataType)
	assert.Equal(t, rooms.ThreadRoom(th.ID), created.Room)
	assert.Equal(t, rooms.ActionUpdate, updated.Action)
	assert.Equal(t, models.KindThread, updated.DataType)
	body, err := json.Marshal(updated)
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":"thread:1","action":"update","data_type":"thread","data":{"id":1,"sections_id":[1]}}`, string(body))
}

func TestThreadCreateGoesToCreationRoom(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	f.thread(t, owner, nil, nil)
	assert.Equal(t, rooms.ThreadCreate, f.pub.last().Room)
	assert.Equal(t, rooms.ActionCreate, f.pub.last().Action)
}

func TestOnlyPermittedUsersModify(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	stranger := f.user(t, "stranger", false)
	admin := f.user(t, "admin", true)
	th := f.thread(t, owner, nil, nil)

	_, err := f.ctl.CreateSection(ctx, stranger, models.SectionInsert{InThreadID: th.ID})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = f.ctl.UpdateThread(ctx, admin, th.ID, models.ThreadUpdate{DisplayName: strPtr("by admin")})
	assert.NoError(t, err)

	_, err = f.ctl.UpdateThread(ctx, owner, 999, models.ThreadUpdate{})
	assert.True(t, errors.Is(err, ErrNotFound))

	host := f.user(t, "host", false)
	_, err = f.ctl.UpdateUser(ctx, host.ID, models.UserUpdate{SpaceXIsHost: boolPtr(true)})
	require.NoError(t, err)
	host, err = f.ctl.User(host.ID)
	require.NoError(t, err)
	hosted, err := f.ctl.CreateThread(ctx, stranger, models.ThreadInsert{ThreadName: "x", Subreddit: strPtr("SpaceX")})
	require.NoError(t, err)
	_, err = f.ctl.UpdateThread(ctx, host, hosted.ID, models.ThreadUpdate{IsLive: boolPtr(true)})
	assert.NoError(t, err)
}

func boolPtr(v bool) *bool { return &v }

func TestThreadReorderOnly(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, nil, nil)
	a := f.section(t, owner, th.ID, "a", false)
	b := f.section(t, owner, th.ID, "b", false)

	reordered := []int64{b.ID, a.ID}
	got, err := f.ctl.UpdateThread(ctx, owner, th.ID, models.ThreadUpdate{SectionsID: &reordered})
	require.NoError(t, err)
	assert.Equal(t, reordered, got.SectionsID)

	for _, bad := range [][]int64{{a.ID}, {a.ID, b.ID, 77}, {a.ID, a.ID}} {
		bad := bad
		_, err := f.ctl.UpdateThread(ctx, owner, th.ID, models.ThreadUpdate{SectionsID: &bad})
		assert.True(t, errors.Is(err, ErrPreconditionFailed), "ids %v", bad)
	}
	noEvents := []int64{1}
	_, err = f.ctl.UpdateThread(ctx, owner, th.ID, models.ThreadUpdate{EventsID: &noEvents})
	assert.True(t, errors.Is(err, ErrPreconditionFailed))
}

func TestSectionLockProtocol(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a", true)
	b := f.user(t, "b", true)
	th := f.thread(t, a, nil, nil)
	sec := f.section(t, a, th.ID, "s", false)

	got, err := f.ctl.SetSectionLock(ctx, a, sec.ID, models.LockRequest{HolderID: idPtr(a.ID)})
	require.NoError(t, err)
	assert.True(t, got.Lock().HeldBy(a.ID))
	assert.Equal(t, f.clock.Unix(), got.LockAssignedAtUTC)
	assert.Equal(t, models.KindSection, f.pub.last().DataType)

	published := f.pub.count()
	_, err = f.ctl.SetSectionLock(ctx, b, sec.ID, models.LockRequest{HolderID: idPtr(b.ID)})
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, published, f.pub.count())
	cached, err := f.ctl.Section(sec.ID)
	require.NoError(t, err)
	assert.True(t, cached.Lock().HeldBy(a.ID))

	f.clock = f.clock.Add(locks.DefaultDuration)
	got, err = f.ctl.SetSectionLock(ctx, b, sec.ID, models.LockRequest{HolderID: idPtr(b.ID)})
	require.NoError(t, err)
	assert.True(t, got.Lock().HeldBy(b.ID))

	got, err = f.ctl.SetSectionLock(ctx, b, sec.ID, models.LockRequest{HolderID: nil})
	require.NoError(t, err)
	assert.False(t, got.Lock().Held())

	_, err = f.ctl.SetSectionLock(ctx, b, 4242, models.LockRequest{HolderID: idPtr(b.ID)})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentFirstAcquireHasOneWinner(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", true)
	th := f.thread(t, owner, nil, nil)
	sec := f.section(t, owner, th.ID, "s", false)

	const contenders = 8
	users := make([]models.User, contenders)
	for i := range users {
		users[i] = f.user(t, "u", true)
	}
	var wins, rejects atomic.Int64
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u models.User) {
			defer wg.Done()
			_, err := f.ctl.SetSectionLock(ctx, u, sec.ID, models.LockRequest{HolderID: idPtr(u.ID)})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrForbidden):
				rejects.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()
	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, int64(contenders-1), rejects.Load())
}

func TestNoNotificationWithoutCommit(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, []string{"time", "what"}, intPtr(0))
	sec := f.section(t, owner, th.ID, "s", false)
	before := f.pub.count()

	f.backend.failWrites.Store(true)
	_, err := f.ctl.UpdateThread(ctx, owner, th.ID, models.ThreadUpdate{DisplayName: strPtr("changed")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errDisk))
	_, err = f.ctl.UpdateSection(ctx, owner, sec.ID, models.SectionUpdate{Name: strPtr("changed")})
	require.Error(t, err)
	_, err = f.ctl.SetSectionLock(ctx, owner, sec.ID, models.LockRequest{HolderID: idPtr(owner.ID)})
	require.Error(t, err)
	require.Error(t, f.ctl.DeleteSection(ctx, owner, sec.ID))

	assert.Equal(t, before, f.pub.count())
	cached, err := f.ctl.Thread(th.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", cached.DisplayName)
	cachedSec, err := f.ctl.Section(sec.ID)
	require.NoError(t, err)
	assert.Equal(t, "s", cachedSec.Name)
	assert.False(t, cachedSec.Lock().Held())
}

func TestEventColumnsValidated(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, []string{"UTC", "Event"}, intPtr(0))

	cases := []struct {
		name string
		cols []json.RawMessage
		ok   bool
	}{
		{"valid", raw(3600, "liftoff"), true},
		{"too short", raw(3600), false},
		{"utc not number", raw("3600", "liftoff"), false},
		{"text not string", raw(3600, 5), false},
		{"missing", nil, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.ctl.CreateEvent(ctx, owner, models.EventInsert{InThreadID: th.ID, Cols: c.cols})
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrUnprocessable))
			}
		})
	}
	got, err := f.ctl.Thread(th.ID)
	require.NoError(t, err)
	assert.Len(t, got.EventsID, 1)
}

func TestPatchEventColumns(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, []string{"UTC", "Event"}, intPtr(0))
	ev, err := f.ctl.CreateEvent(ctx, owner, models.EventInsert{InThreadID: th.ID, Cols: raw(0, "a")})
	require.NoError(t, err)

	got, err := f.ctl.PatchEventColumns(ctx, owner, ev.ID, []models.ColumnPatch{{Index: 1, Value: json.RawMessage(`"b"`)}})
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(got.Cols[1]))
	assert.Equal(t, `0`, string(got.Cols[0]))
	body, err := json.Marshal(f.pub.last())
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":"thread:1","action":"update","data_type":"event","data":{"id":1,"cols":[0,"b"]}}`, string(body))

	_, err = f.ctl.PatchEventColumns(ctx, owner, ev.ID, []models.ColumnPatch{{Index: 5, Value: json.RawMessage(`"x"`)}})
	assert.True(t, errors.Is(err, ErrUnprocessable))
	_, err = f.ctl.PatchEventColumns(ctx, owner, ev.ID, []models.ColumnPatch{{Index: 0, Value: json.RawMessage(`"noon"`)}})
	assert.True(t, errors.Is(err, ErrUnprocessable))

	stored, err := f.ctl.Event(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, `"b"`, string(stored.Cols[1]))
}

func TestDeleteDetachesChildren(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, []string{"Event"}, nil)
	sec := f.section(t, owner, th.ID, "s", true)
	ev, err := f.ctl.CreateEvent(ctx, owner, models.EventInsert{InThreadID: th.ID, Cols: raw("x")})
	require.NoError(t, err)

	require.NoError(t, f.ctl.DeleteEvent(ctx, owner, ev.ID))
	require.NoError(t, f.ctl.DeleteSection(ctx, owner, sec.ID))
	got, err := f.ctl.Thread(th.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SectionsID)
	assert.Empty(t, got.EventsID)

	_, err = f.ctl.Event(ev.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, f.ctl.DeleteThread(ctx, owner, th.ID))
	_, err = f.ctl.Thread(th.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, rooms.ActionDelete, f.pub.last().Action)
}

func TestThreadFull(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	th := f.thread(t, owner, []string{"Event"}, nil)
	sec := f.section(t, owner, th.ID, "s", true)
	_, err := f.ctl.SetSectionLock(ctx, owner, sec.ID, models.LockRequest{HolderID: idPtr(owner.ID)})
	require.NoError(t, err)
	_, err = f.ctl.CreateEvent(ctx, owner, models.EventInsert{InThreadID: th.ID, Cols: raw("x")})
	require.NoError(t, err)

	full, err := f.ctl.ThreadFull(th.ID)
	require.NoError(t, err)
	require.NotNil(t, full.CreatedByUser)
	assert.Equal(t, owner.ID, full.CreatedByUser.ID)
	require.Len(t, full.Sections, 1)
	require.NotNil(t, full.Sections[0].LockHeldByUser)
	assert.Equal(t, owner.ID, full.Sections[0].LockHeldByUser.ID)
	assert.Len(t, full.Events, 1)

	body, err := json.Marshal(full)
	require.NoError(t, err)
	var tree map[string]any
	require.NoError(t, json.Unmarshal(body, &tree))
	assert.Equal(t, "launch", tree["thread_name"])
	assert.Contains(t, tree, "sections")
}

func TestModeratorActions(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner", false)
	mod := f.user(t, "mod", false)
	_, err := f.ctl.UpdateUser(ctx, mod.ID, models.UserUpdate{SpaceXIsMod: boolPtr(true)})
	require.NoError(t, err)
	mod, err = f.ctl.User(mod.ID)
	require.NoError(t, err)

	unposted := f.thread(t, owner, nil, nil)
	assert.True(t, errors.Is(f.ctl.ApproveThread(ctx, mod, unposted.ID), ErrPreconditionFailed))
	assert.True(t, errors.Is(f.ctl.ApproveThread(ctx, mod, 404), ErrNotFound))

	f.mirror.postID = "abc"
	posted, err := f.ctl.CreateThread(ctx, owner, models.ThreadInsert{ThreadName: "p", Subreddit: strPtr("spacex")})
	require.NoError(t, err)
	require.True(t, posted.Posted())

	assert.True(t, errors.Is(f.ctl.ApproveThread(ctx, owner, posted.ID), ErrUnauthorized))
	require.NoError(t, f.ctl.ApproveThread(ctx, mod, posted.ID))
	require.NoError(t, f.ctl.SetThreadSticky(ctx, mod, posted.ID, true))
	require.NoError(t, f.ctl.SetThreadSticky(ctx, mod, posted.ID, false))
	assert.Equal(t, 1, f.mirror.approve)
	assert.Equal(t, []bool{true, false}, f.mirror.sticky)

	f.section(t, owner, posted.ID, "Intro", false)
	require.NotEmpty(t, f.mirror.edits)
	assert.Equal(t, "# Intro\n\nbody\n\n", f.mirror.edits[len(f.mirror.edits)-1])
}
